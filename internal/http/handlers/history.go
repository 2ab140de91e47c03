package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"adstudio/internal/domain"
)

// History lists the caller's persisted sessions, newest first.
func (a *App) History(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, offset := paging(r.URL.Query())
	summaries, err := a.Sessions.History(r.Context(), userID, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("history query failed")
		a.error(w, http.StatusInternalServerError, "internal", "history unavailable")
		return
	}
	if summaries == nil {
		summaries = []domain.SessionSummary{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": summaries})
}

// DeleteHistory removes one persisted session record.
func (a *App) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no such record")
			return
		}
		a.Logger.Error().Err(err).Str("record", id).Msg("delete history failed")
		a.error(w, http.StatusInternalServerError, "internal", "delete failed")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"deleted": id})
}

func paging(q url.Values) (limit, offset int) {
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}
