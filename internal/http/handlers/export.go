package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adstudio/pkg/zip"
)

// ExportAssets bundles every asset generated for a session into a zip
// download.
func (a *App) ExportAssets(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, ok := a.Orchestrator.Session(sessionID); !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	stored, err := a.Orchestrator.ExportAssets(r.Context(), sessionID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "export_failed", "could not collect session assets")
		return
	}
	if len(stored) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no assets materialized for this session")
		return
	}
	entries := make([]zip.Asset, 0, len(stored))
	for _, asset := range stored {
		entries = append(entries, zip.Asset{Filename: asset.Name, MIME: asset.MIME, Data: asset.Data})
	}
	archive, err := zip.ArchiveAssets(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("session", sessionID).Msg("asset archive failed")
		a.error(w, http.StatusInternalServerError, "export_failed", "could not build the archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+"-assets.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
