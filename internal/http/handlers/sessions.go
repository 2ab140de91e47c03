package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adstudio/internal/chain"
	"adstudio/internal/domain"
	"adstudio/internal/middleware"
	"adstudio/internal/pipeline"
	"adstudio/internal/providers"
)

type createSessionRequest struct {
	pipeline.Brief
	ReferenceImageB64  string `json:"reference_image_b64,omitempty"`
	ReferenceImageMIME string `json:"reference_image_mime,omitempty"`
}

type sessionResponse struct {
	ID          string           `json:"id"`
	State       pipeline.State   `json:"state"`
	Transitions []pipeline.State `json:"transitions"`
	Variations  int              `json:"variations"`
	Error       any              `json:"error,omitempty"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	brief := req.Brief
	brief.UserID = userID
	if brief.Market == "" {
		brief.Market = middleware.MarketFromContext(r.Context())
	}
	if brief.Locale == "" {
		brief.Locale = middleware.LocaleFromContext(r.Context())
	}
	if req.ReferenceImageB64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ReferenceImageB64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "reference_image_b64 is not valid base64")
			return
		}
		brief.ReferenceImage = data
		brief.ReferenceImageMIME = req.ReferenceImageMIME
	}

	session, err := a.Orchestrator.SubmitBrief(brief)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_brief", err.Error())
		return
	}
	a.json(w, http.StatusAccepted, sessionResponse{
		ID:          session.ID,
		State:       session.State(),
		Transitions: session.Transitions(),
	})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := a.Orchestrator.Session(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	resp := sessionResponse{
		ID:          session.ID,
		State:       session.State(),
		Transitions: session.Transitions(),
		Variations:  len(session.Variations()),
	}
	if err := session.Err(); err != nil {
		resp.Error = diagnosticsFor(err)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) GetStrategy(w http.ResponseWriter, r *http.Request) {
	session, ok := a.Orchestrator.Session(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	strategy, ok := session.Strategy()
	if !ok {
		if err := session.Err(); err != nil {
			a.providerError(w, err)
			return
		}
		a.json(w, http.StatusOK, map[string]any{"state": session.State(), "pending": true})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"state": session.State(), "strategy": strategy})
}

func (a *App) GetVariations(w http.ResponseWriter, r *http.Request) {
	session, ok := a.Orchestrator.Session(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	variations := session.Variations()
	failures := map[int]any{}
	for i := 0; i < session.Brief.VariationsCount; i++ {
		if err := session.VariationError(i); err != nil {
			failures[i] = diagnosticsFor(err)
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"state":      session.State(),
		"variations": variations,
		"failures":   failures,
	})
}

func (a *App) StopSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Orchestrator.Stop(id) {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"id": id, "status": "stopping"})
}

// PersistSession snapshots the session into the relational store so it shows
// up in the user's history.
func (a *App) PersistSession(w http.ResponseWriter, r *http.Request) {
	session, ok := a.Orchestrator.Session(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	record := &domain.SessionRecord{
		ID:          session.ID,
		UserID:      session.Brief.UserID,
		BrandName:   session.Brief.BrandName,
		ProductName: session.Brief.ProductName,
		Market:      session.Brief.Market,
		Locale:      session.Brief.Locale,
		State:       string(session.State()),
	}
	if strategy, ok := session.Strategy(); ok {
		raw, err := json.Marshal(strategy)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "encode strategy")
			return
		}
		record.Strategy = raw
	}
	if variations := session.Variations(); len(variations) > 0 {
		raw, err := json.Marshal(variations)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "encode variations")
			return
		}
		record.Variations = raw
	}
	id, err := a.Sessions.Persist(r.Context(), record)
	if err != nil {
		a.Logger.Error().Err(err).Str("session", session.ID).Msg("persist session failed")
		a.error(w, http.StatusInternalServerError, "internal", "persist failed")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"record_id": id})
}

// diagnosticsFor flattens a classified failure into a JSON-friendly shape.
func diagnosticsFor(err error) any {
	var exhausted *chain.ExhaustedError
	if errors.As(err, &exhausted) {
		attempts := make([]attemptDiagnostic, 0, len(exhausted.Attempts))
		for _, attempt := range exhausted.Attempts {
			attempts = append(attempts, attemptDiagnostic{
				Candidate: attempt.Candidate.String(),
				Kind:      string(attempt.Kind),
			})
		}
		return map[string]any{"kind": "chain_exhausted", "attempts": attempts}
	}
	out := map[string]any{"kind": string(providers.KindOf(err)), "message": err.Error()}
	var perr *providers.Error
	if errors.As(err, &perr) && perr.Provider != "" {
		out["provider"] = string(perr.Provider)
	}
	return out
}
