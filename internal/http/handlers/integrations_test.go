package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"adstudio/internal/infra/credentials"
)

type credExecutor struct {
	execCount int
	lastArgs  []any
}

func (s *credExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execCount++
	s.lastArgs = args
	return pgconn.CommandTag{}, nil
}

func (s *credExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return noRow{}
}

func (s *credExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

type noRow struct{}

func (noRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func credRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/integrations", app.CredentialStatus)
	r.Put("/v1/integrations/{provider}", app.SetCredential)
	r.Delete("/v1/integrations/{provider}", app.DeleteCredential)
	return r
}

func TestSetCredentialUnknownProvider(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil, nil, credentials.NewStore(&credExecutor{}))
	rec := httptest.NewRecorder()
	credRouter(app).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/integrations/midjourney",
		strings.NewReader(`{"token":"sk-x"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSetCredentialStoresToken(t *testing.T) {
	exec := &credExecutor{}
	app := NewApp(zerolog.Nop(), nil, nil, nil, credentials.NewStore(exec))
	rec := httptest.NewRecorder()
	credRouter(app).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/integrations/openai",
		strings.NewReader(`{"token":"sk-x","account_id":"org-1"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if exec.execCount != 1 {
		t.Fatalf("exec count = %d", exec.execCount)
	}
	// The token must never be echoed back.
	if strings.Contains(rec.Body.String(), "sk-x") {
		t.Fatalf("response leaks token: %s", rec.Body.String())
	}
}

func TestCredentialStatusReportsAbsent(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil, nil, credentials.NewStore(&credExecutor{}))
	rec := httptest.NewRecorder()
	credRouter(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/integrations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"openai":false`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
