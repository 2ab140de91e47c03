package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"adstudio/internal/providers"
)

type mediaRequest struct {
	Variation int    `json:"variation"`
	Scene     int    `json:"scene"`
	Kind      string `json:"kind"`

	// Optional pin to a single provider instead of the configured chain.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// RequestMedia generates one asset for one scene and returns its reference.
func (a *App) RequestMedia(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	kind, ok := mediaKind(req.Kind)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "kind must be image, video or audio")
		return
	}
	var override *providers.Candidate
	if req.Provider != "" || req.Model != "" {
		if req.Provider == "" || req.Model == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "provider override needs both provider and model")
			return
		}
		override = &providers.Candidate{
			Provider: providers.Provider(strings.ToLower(req.Provider)),
			Model:    req.Model,
		}
	}

	ref, err := a.Orchestrator.RequestMedia(r.Context(), sessionID, req.Variation, req.Scene, kind, override)
	if err != nil {
		a.providerError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"reference": ref})
}

// GetMedia returns the latest materialized reference for a scene asset.
func (a *App) GetMedia(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	q := r.URL.Query()
	kind, ok := mediaKind(q.Get("kind"))
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "kind must be image, video or audio")
		return
	}
	variation := intQuery(q.Get("variation"))
	scene := intQuery(q.Get("scene"))
	ref, ok := a.Orchestrator.MediaReference(sessionID, variation, scene, kind)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "no asset materialized for this scene")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"reference": ref})
}

// mediaKind maps the wire names onto capabilities; "audio" is the public name
// for speech synthesis.
func mediaKind(kind string) (providers.Capability, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "image":
		return providers.CapabilityImage, true
	case "video":
		return providers.CapabilityVideo, true
	case "audio", "speech":
		return providers.CapabilitySpeech, true
	default:
		return "", false
	}
}

func intQuery(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
