package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adstudio/internal/infra/credentials"
	"adstudio/internal/providers"
)

type setCredentialRequest struct {
	Token     string `json:"token"`
	Region    string `json:"region,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// SetCredential stores or rotates the credential for one provider. The token
// value is never echoed back or logged.
func (a *App) SetCredential(w http.ResponseWriter, r *http.Request) {
	provider, ok := knownProvider(chi.URLParam(r, "provider"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown provider")
		return
	}
	var req setCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	err := a.Credentials.Set(r.Context(), credentials.Credential{
		Provider:  provider,
		Token:     req.Token,
		Region:    req.Region,
		AccountID: req.AccountID,
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "token is required")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"provider": provider, "configured": true})
}

// CredentialStatus reports which providers have a credential configured,
// without revealing any secret material.
func (a *App) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]bool{}
	for _, provider := range []providers.Provider{
		providers.ProviderOpenAI,
		providers.ProviderGemini,
		providers.ProviderDashScope,
		providers.ProviderElevenLabs,
	} {
		status[string(provider)] = a.Credentials.Has(r.Context(), provider)
	}
	a.json(w, http.StatusOK, map[string]any{"providers": status})
}

// DeleteCredential removes the credential for one provider.
func (a *App) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	provider, ok := knownProvider(chi.URLParam(r, "provider"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown provider")
		return
	}
	if err := a.Credentials.Delete(r.Context(), provider); err != nil {
		a.Logger.Error().Err(err).Str("provider", string(provider)).Msg("delete credential failed")
		a.error(w, http.StatusInternalServerError, "internal", "delete failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"provider": provider, "configured": false})
}

func knownProvider(name string) (providers.Provider, bool) {
	switch providers.Provider(strings.ToLower(strings.TrimSpace(name))) {
	case providers.ProviderOpenAI:
		return providers.ProviderOpenAI, true
	case providers.ProviderGemini:
		return providers.ProviderGemini, true
	case providers.ProviderDashScope:
		return providers.ProviderDashScope, true
	case providers.ProviderElevenLabs:
		return providers.ProviderElevenLabs, true
	default:
		return "", false
	}
}
