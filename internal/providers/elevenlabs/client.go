// Package elevenlabs adapts the ElevenLabs text-to-speech API to the
// orchestrator's uniform generation contract.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/providers"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// CredentialSource resolves the API key at call time.
type CredentialSource interface {
	Get(ctx context.Context, provider providers.Provider) (credentials.Credential, error)
}

// Options configures the ElevenLabs client.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialSource
	Logger      *infra.Logger
}

// Client performs HTTP calls against the ElevenLabs API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *infra.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		credentials: opts.Credentials,
		logger:      logger,
	}
}

type speechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type apiError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// GenerateSpeech synthesizes the voice-over line and returns mpeg audio. The
// model argument is the ElevenLabs model id; the voice comes from the payload
// or falls back to the default narrator voice.
func (c *Client) GenerateSpeech(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	cred, err := c.credentials.Get(ctx, providers.ProviderElevenLabs)
	if err != nil {
		return nil, credentials.AsProviderError(providers.ProviderElevenLabs, model, err)
	}

	text := strings.TrimSpace(payload.Prompt)
	if text == "" {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderElevenLabs, Model: model, Err: fmt.Errorf("text is required")}
	}
	voice := strings.TrimSpace(payload.Voice)
	if voice == "" {
		voice = defaultVoiceID
	}

	body := speechRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: payload.Speed},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderElevenLabs, Model: model, Err: fmt.Errorf("encode request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderElevenLabs, Model: model, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", cred.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderElevenLabs, model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderElevenLabs, model, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classify(model, resp.StatusCode, raw)
	}
	if len(raw) == 0 {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderElevenLabs, Model: model, Err: fmt.Errorf("empty audio body")}
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Int("bytes", len(raw)).
		Msg("elevenlabs: speech synthesis succeeded")
	return &providers.Result{
		Candidate: providers.Candidate{Provider: providers.ProviderElevenLabs, Model: model},
		Binary:    &providers.BinaryPayload{MIME: mime, Data: raw},
	}, nil
}

func classify(model string, status int, raw []byte) *providers.Error {
	var detail apiError
	message := ""
	if err := json.Unmarshal(raw, &detail); err == nil {
		message = detail.Detail.Message
		switch detail.Detail.Status {
		case "voice_not_found", "model_not_found":
			return &providers.Error{
				Kind:     providers.KindModelNotFound,
				Provider: providers.ProviderElevenLabs,
				Model:    model,
				Err:      fmt.Errorf("status %d: %s", status, message),
			}
		case "quota_exceeded", "too_many_concurrent_requests":
			return &providers.Error{
				Kind:     providers.KindRateLimited,
				Provider: providers.ProviderElevenLabs,
				Model:    model,
				Err:      fmt.Errorf("status %d: %s", status, message),
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return providers.ClassifyStatus(providers.ProviderElevenLabs, model, status, message)
}
