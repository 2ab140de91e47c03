// Package credentials resolves per-provider API credentials from the
// integration_tokens table. The orchestrator reads through this store only;
// tokens are created and rotated by user configuration actions.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"adstudio/internal/infra"
	"adstudio/internal/providers"
	"adstudio/internal/sqlinline"
)

// Credential holds the opaque secret material for one provider plus optional
// auxiliary routing fields. Never log the token.
type Credential struct {
	Provider  providers.Provider
	Token     string
	Region    string
	AccountID string
}

// MissingCredentialError reports an absent credential for a provider. It
// classifies as a missing-credential provider error so chain runs abort
// instead of burning quota elsewhere.
type MissingCredentialError struct {
	Provider providers.Provider
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no credential configured for provider %q", e.Provider)
}

type credentialProps struct {
	Region    string `json:"region,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// Store reads and writes integration tokens through an injected SQL executor.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Has reports whether a non-empty credential exists for the provider. An
// unrecognized provider is simply absent, never an error, so callers can
// prompt the user instead of crashing mid-pipeline.
func (s *Store) Has(ctx context.Context, provider providers.Provider) bool {
	cred, err := s.Get(ctx, provider)
	return err == nil && cred.Token != ""
}

// Get returns the credential for the provider or a MissingCredentialError.
func (s *Store) Get(ctx context.Context, provider providers.Provider) (Credential, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, string(provider))
	var token string
	var rawProps []byte
	if err := row.Scan(&token, &rawProps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, &MissingCredentialError{Provider: provider}
		}
		return Credential{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, &MissingCredentialError{Provider: provider}
	}
	cred := Credential{Provider: provider, Token: token}
	if len(rawProps) > 0 {
		var props credentialProps
		if err := json.Unmarshal(rawProps, &props); err == nil {
			cred.Region = props.Region
			cred.AccountID = props.AccountID
		}
	}
	return cred, nil
}

// Set upserts the credential for a provider.
func (s *Store) Set(ctx context.Context, cred Credential) error {
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return fmt.Errorf("credentials: token is required for provider %q", cred.Provider)
	}
	raw, err := json.Marshal(credentialProps{Region: cred.Region, AccountID: cred.AccountID})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, string(cred.Provider), token, raw)
	return err
}

// Delete removes the credential for a provider.
func (s *Store) Delete(ctx context.Context, provider providers.Provider) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, string(provider))
	return err
}

// Missing reports whether err represents an absent credential.
func Missing(err error) bool {
	var missing *MissingCredentialError
	return errors.As(err, &missing)
}

// AsProviderError converts a resolver failure into the shared error taxonomy
// for use inside adapters.
func AsProviderError(provider providers.Provider, model string, err error) *providers.Error {
	kind := providers.KindNetwork
	if Missing(err) {
		kind = providers.KindMissingCredential
	}
	return &providers.Error{Kind: kind, Provider: provider, Model: model, Err: err}
}
