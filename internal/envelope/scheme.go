package envelope

// Scheme identifies which signature algorithm a keyId encodes.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeEd25519
	SchemeSchnorr
)

// DetectScheme classifies a keyId by its encoding: a Bech32 npub/nsec
// prefix selects Schnorr-over-secp256k1, a non-empty even-length hex
// string selects Ed25519, and anything else is SchemeUnknown. PKCS8-wrapped
// Ed25519 keys are not recognised or decoded.
func DetectScheme(keyID string) Scheme {
	if len(keyID) >= 4 && (keyID[:4] == "npub" || keyID[:4] == "nsec") {
		return SchemeSchnorr
	}
	if looksHex(keyID) {
		return SchemeEd25519
	}
	return SchemeUnknown
}

func looksHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
