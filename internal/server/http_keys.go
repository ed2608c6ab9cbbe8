package server

import (
	"encoding/hex"
	"net/http"

	"github.com/oakmere/vaultd/internal/keycustody"
)

// handleGenerateAgentKey handles POST /v1/agents/keys. It mints an ephemeral
// signing keypair for use as a session agent. The private half is sealed
// under the server's key-encryption key before it leaves the process; the
// caller stores the sealed blob and the agent address.
func (s *VaultServer) handleGenerateAgentKey(w http.ResponseWriter, r *http.Request) {
	if s.keySecret == "" {
		writeError(w, http.StatusForbidden, "key custody is not enabled")
		return
	}

	pub, priv, err := keycustody.GenerateAgentKey()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sealed, err := keycustody.Seal(priv, s.keySecret)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"agent":      hex.EncodeToString(pub),
		"sealed_key": sealed,
	})
}
