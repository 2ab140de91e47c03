package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"adstudio/internal/providers"
)

type stubExecutor struct {
	token string
	props []byte
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, props: s.props, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	props []byte
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) < 2 {
		return errors.New("unexpected dest count")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid token dest")
	}
	*ptr = r.token
	raw, ok := dest[1].(*[]byte)
	if !ok {
		return errors.New("invalid props dest")
	}
	*raw = r.props
	return nil
}

func TestGetTrimsTokenAndDecodesProps(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 ", props: []byte(`{"region":"us-east-1","account_id":"acct-9"}`)})
	cred, err := store.Get(context.Background(), providers.ProviderOpenAI)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if cred.Token != "abc123" {
		t.Fatalf("token = %q, want abc123", cred.Token)
	}
	if cred.Region != "us-east-1" || cred.AccountID != "acct-9" {
		t.Fatalf("props = %q/%q", cred.Region, cred.AccountID)
	}
}

func TestGetMissingRow(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	_, err := store.Get(context.Background(), providers.ProviderGemini)
	if !Missing(err) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
}

func TestGetBlankTokenIsMissing(t *testing.T) {
	store := NewStore(&stubExecutor{token: "   "})
	_, err := store.Get(context.Background(), providers.ProviderGemini)
	if !Missing(err) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
}

func TestHasUnknownProviderReturnsFalse(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	if store.Has(context.Background(), providers.Provider("made-up")) {
		t.Fatal("Has must report absent for unrecognized providers, not error")
	}
}

func TestSetRequiresToken(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Set(context.Background(), Credential{Provider: providers.ProviderOpenAI}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSetUpsertsTrimmedToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), Credential{Provider: providers.ProviderElevenLabs, Token: " sk-x "}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("args = %v", exec.exec.args)
	}
	if exec.exec.args[0] != "elevenlabs" || exec.exec.args[1] != "sk-x" {
		t.Fatalf("unexpected upsert args: %v", exec.exec.args)
	}
}

func TestAsProviderErrorClassifiesMissing(t *testing.T) {
	err := AsProviderError(providers.ProviderOpenAI, "gpt-4o-mini", &MissingCredentialError{Provider: providers.ProviderOpenAI})
	if err.Kind != providers.KindMissingCredential {
		t.Fatalf("kind = %v, want missing_credential", err.Kind)
	}
}
