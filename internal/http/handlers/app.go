package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"adstudio/internal/chain"
	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/pipeline"
	"adstudio/internal/providers"
)

// App bundles the dependencies shared by every handler.
type App struct {
	Logger       zerolog.Logger
	SQL          infra.SQLExecutor
	Orchestrator *pipeline.Orchestrator
	Sessions     domain.SessionRepository
	Credentials  *credentials.Store
}

func NewApp(logger zerolog.Logger, sql infra.SQLExecutor, orchestrator *pipeline.Orchestrator, sessions domain.SessionRepository, creds *credentials.Store) *App {
	return &App{
		Logger:       logger,
		SQL:          sql,
		Orchestrator: orchestrator,
		Sessions:     sessions,
		Credentials:  creds,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{"error": slug, "message": message})
}

// currentUserID identifies the caller. Authentication proper is fronted by
// the gateway; here a user id arrives as a header or query value.
func (a *App) currentUserID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-User-ID")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

type attemptDiagnostic struct {
	Candidate string `json:"candidate"`
	Kind      string `json:"kind"`
}

// providerError translates a classified generation failure into an HTTP
// response. Credential problems name the offending provider so the user
// knows what to reconfigure; exhaustion lists every attempted candidate.
func (a *App) providerError(w http.ResponseWriter, err error) {
	var exhausted *chain.ExhaustedError
	if errors.As(err, &exhausted) {
		attempts := make([]attemptDiagnostic, 0, len(exhausted.Attempts))
		for _, attempt := range exhausted.Attempts {
			attempts = append(attempts, attemptDiagnostic{
				Candidate: attempt.Candidate.String(),
				Kind:      string(attempt.Kind),
			})
		}
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":    "chain_exhausted",
			"message":  "every candidate failed",
			"attempts": attempts,
		})
		return
	}

	kind := providers.KindOf(err)
	provider := ""
	var perr *providers.Error
	if errors.As(err, &perr) {
		provider = string(perr.Provider)
	}
	switch kind {
	case providers.KindMissingCredential:
		a.json(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "missing_credential",
			"message":  "configure a credential for this provider and try again",
			"provider": provider,
		})
	case providers.KindPermissionDenied:
		a.json(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "permission_denied",
			"message":  "the provider rejected the configured credential",
			"provider": provider,
		})
	case providers.KindCancelled:
		a.error(w, http.StatusConflict, "cancelled", "the session was stopped")
	case providers.KindRateLimited:
		a.error(w, http.StatusTooManyRequests, "rate_limited", "the provider is rate limiting requests")
	default:
		a.error(w, http.StatusBadGateway, "generation_failed", err.Error())
	}
}
