package domain

import (
	"context"
	"encoding/json"
	"time"
)

// SessionRecord is the persisted form of a completed or in-progress
// generation session. Strategy and Variations are stored as JSON documents;
// their shapes belong to the pipeline package.
type SessionRecord struct {
	ID          string
	UserID      string
	BrandName   string
	ProductName string
	Market      string
	Locale      string
	State       string
	Strategy    json.RawMessage
	Variations  json.RawMessage
	CreatedAt   time.Time
}

// SessionSummary is the history-listing projection of a session.
type SessionSummary struct {
	ID          string    `json:"id"`
	BrandName   string    `json:"brand_name"`
	ProductName string    `json:"product_name"`
	Market      string    `json:"market"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionRepository persists sessions for the history surface.
type SessionRepository interface {
	Persist(ctx context.Context, record *SessionRecord) (string, error)
	Get(ctx context.Context, id string) (*SessionRecord, error)
	History(ctx context.Context, userID string, limit, offset int) ([]SessionSummary, error)
	Delete(ctx context.Context, id string) error
}
