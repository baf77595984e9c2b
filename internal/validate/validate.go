// Package validate implements structural validation of every wire payload
// (spec §4.3). Validators are first-class generic values so callers can
// compose them, e.g. Envelope(QuoteRequest).
package validate

import (
	"fmt"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// FieldError names one structurally invalid field.
type FieldError struct {
	Field string
	Msg   string
}

func (e FieldError) String() string { return fmt.Sprintf("%s:%s", e.Field, e.Msg) }

// Result is the outcome of a structural validation pass.
type Result struct {
	OK     bool
	Errors []FieldError
}

func ok() Result { return Result{OK: true} }

func fail(errs ...FieldError) Result {
	return Result{OK: false, Errors: errs}
}

func require(cond bool, errs *[]FieldError, field, msg string) {
	if !cond {
		*errs = append(*errs, FieldError{Field: field, Msg: msg})
	}
}

func result(errs []FieldError) Result {
	if len(errs) == 0 {
		return ok()
	}
	return Result{OK: false, Errors: errs}
}

// Validator checks the structural shape of a decoded value. It never
// checks business rules (e.g. whether a node exists) — only type,
// required-key, and enum-literal shape (spec §4.3).
type Validator[T any] func(v T) Result

// Envelope runs the outer envelope shape check then the inner validator,
// prefixing inner errors with "payload:" (spec §4.3).
func Envelope[T any](inner Validator[T]) Validator[wire.Envelope[T]] {
	return func(e wire.Envelope[T]) Result {
		var errs []FieldError
		require(e.Nonce != "", &errs, "nonce", "required")
		require(e.KeyID != "", &errs, "keyId", "required")
		require(e.TsMs > 0, &errs, "ts", "required")
		require(e.Sig != "", &errs, "sig", "required")

		inner := inner(e.Payload)
		if !inner.OK {
			for _, e := range inner.Errors {
				errs = append(errs, FieldError{Field: "payload:" + e.Field, Msg: e.Msg})
			}
		}
		return result(errs)
	}
}
