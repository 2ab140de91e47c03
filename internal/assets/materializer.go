package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"adstudio/internal/providers"
)

// ObjectStore is the storage surface the materializer reads and writes
// through.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Key addresses one generated asset inside a session. A scene holds at most
// one asset per capability, so repeated generations for the same key replace
// the previous reference.
type Key struct {
	Session   string
	Variation int
	Scene     int
	Kind      providers.Capability
}

func (k Key) objectKey(ext string) string {
	return fmt.Sprintf("sessions/%s/v%d/scene-%d/%s%s", k.Session, k.Variation, k.Scene, k.Kind, ext)
}

// Reference is the durable handle returned for a materialized asset. Inline
// marks references that fell back to a data URI because storage was
// unavailable.
type Reference struct {
	URL    string `json:"url"`
	MIME   string `json:"mime"`
	Inline bool   `json:"inline,omitempty"`
}

// Materializer turns provider binaries into addressable references and keeps
// a per-key cache so callers can re-read the latest asset for a scene.
type Materializer struct {
	store  ObjectStore
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[Key]entry
}

type entry struct {
	ref       Reference
	objectKey string
}

// NewMaterializer wires a Materializer over the given store. The store may be
// nil, in which case every asset is inlined.
func NewMaterializer(store ObjectStore, logger *zerolog.Logger) *Materializer {
	log := zerolog.New(io.Discard)
	if logger != nil {
		log = *logger
	}
	return &Materializer{
		store:  store,
		logger: log,
		cache:  make(map[Key]entry),
	}
}

// Materialize persists the binary under a deterministic key and records the
// resulting reference. A storage failure does not fail the call: the bytes
// are folded into a data URI so the asset survives, and the degradation is
// logged.
func (m *Materializer) Materialize(ctx context.Context, key Key, bin *providers.BinaryPayload) (Reference, error) {
	if bin == nil || len(bin.Data) == 0 {
		return Reference{}, errors.New("assets: empty binary payload")
	}
	ref := Reference{MIME: bin.MIME}
	objectKey := key.objectKey(extensionFor(bin.MIME))
	url, err := m.put(ctx, objectKey, bin)
	if err != nil {
		if ctx.Err() != nil {
			return Reference{}, ctx.Err()
		}
		m.logger.Warn().
			Err(err).
			Str("session", key.Session).
			Int("variation", key.Variation).
			Int("scene", key.Scene).
			Str("kind", string(key.Kind)).
			Msg("asset storage failed, inlining as data uri")
		ref.URL = dataURI(bin)
		ref.Inline = true
		objectKey = ""
	} else {
		ref.URL = url
	}

	m.mu.Lock()
	m.cache[key] = entry{ref: ref, objectKey: objectKey}
	m.mu.Unlock()
	return ref, nil
}

func (m *Materializer) put(ctx context.Context, objectKey string, bin *providers.BinaryPayload) (string, error) {
	if m.store == nil {
		return "", errors.New("assets: no object store configured")
	}
	url, err := m.store.Put(ctx, objectKey, bin.Data, bin.MIME)
	if err != nil {
		return "", &providers.Error{Kind: providers.KindStorageFailure, Err: err}
	}
	return url, nil
}

// Lookup returns the most recent reference recorded for key.
func (m *Materializer) Lookup(key Key) (Reference, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.cache[key]
	return e.ref, ok
}

// StoredAsset is one exportable asset with its bytes resolved.
type StoredAsset struct {
	Name string
	MIME string
	Data []byte
}

// Export resolves every asset materialized for a session back into bytes,
// reading stored objects from the store and decoding inline references.
// Assets that can no longer be read are skipped.
func (m *Materializer) Export(ctx context.Context, session string) ([]StoredAsset, error) {
	m.mu.RLock()
	entries := make(map[Key]entry)
	for key, e := range m.cache {
		if key.Session == session {
			entries[key] = e
		}
	}
	m.mu.RUnlock()

	var out []StoredAsset
	for key, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset := StoredAsset{
			Name: fmt.Sprintf("v%d-scene-%d-%s%s", key.Variation, key.Scene, key.Kind, extensionFor(e.ref.MIME)),
			MIME: e.ref.MIME,
		}
		if e.ref.Inline {
			data, err := decodeDataURI(e.ref.URL)
			if err != nil {
				m.logger.Warn().Err(err).Str("asset", asset.Name).Msg("skipping undecodable inline asset")
				continue
			}
			asset.Data = data
		} else {
			data, _, err := m.store.Get(ctx, e.objectKey)
			if err != nil {
				m.logger.Warn().Err(err).Str("asset", asset.Name).Msg("skipping unreadable stored asset")
				continue
			}
			asset.Data = data
		}
		out = append(out, asset)
	}
	return out, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, encoded, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, errors.New("assets: not a base64 data uri")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// dataURI encodes a binary payload as an RFC 2397 data URI.
func dataURI(bin *providers.BinaryPayload) string {
	mime := bin.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(bin.Data)
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
