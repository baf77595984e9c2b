package httpapi

import (
	"time"

	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func signAt[T any](s *Server, payload T, now time.Time) (wire.Envelope[T], error) {
	return envelope.Sign(s.Signer, payload, now)
}
