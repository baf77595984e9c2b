package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// handleNodeAdmit is the signed-manifest intake Node's "created by signed
// announce" (spec §3) needs: a node operator posts a signed
// Envelope<NodeManifest>, it runs the declared JSON Schema check, then the
// same structural/signature/replay gate every other envelope route uses,
// and on success is admitted into the live registry (SPEC_FULL §4.4).
func (s *Server) handleNodeAdmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeErr(w, r, apierr.EnvelopeMalformed, "reading request body: "+err.Error())
		return
	}

	var schemaProbe struct {
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(body, &schemaProbe); err != nil {
		s.writeErr(w, r, apierr.EnvelopeMalformed, "invalid JSON body: "+err.Error())
		return
	}
	if err := validate.NodeManifestSchema(schemaProbe.Payload); err != nil {
		s.writeErr(w, r, apierr.EnvelopeMalformed, "manifest schema: "+err.Error())
		return
	}

	var env wire.Envelope[wire.NodeManifest]
	if err := json.Unmarshal(body, &env); err != nil {
		s.writeErr(w, r, apierr.EnvelopeMalformed, "invalid JSON body: "+err.Error())
		return
	}
	if _, ok := acceptEnvelope(s, w, r, env, validate.NodeManifest); !ok {
		return
	}

	manifest := env.Payload
	canon, err := envelope.CanonicalValue(manifest)
	if err != nil {
		s.writeErr(w, r, apierr.Internal, err.Error())
		return
	}
	sum := sha256.Sum256(canon)
	manifestHash := hex.EncodeToString(sum[:])

	admission := wire.NodeAdmission{Eligible: true}
	s.Registry.Admit(manifest, admission, manifestHash)
	if s.Store != nil {
		s.Store.RequestSave()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"admission":    admission,
		"manifestHash": manifestHash,
	})
}
