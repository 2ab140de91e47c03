// Package openai adapts the OpenAI chat-completions and speech APIs to the
// orchestrator's uniform generation contract.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adstudio/internal/extract"
	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/providers"
)

// CredentialSource resolves the API key at call time so key rotation takes
// effect without restarting the server.
type CredentialSource interface {
	Get(ctx context.Context, provider providers.Provider) (credentials.Credential, error)
}

// Options configures the OpenAI client.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialSource
	Logger      *infra.Logger
}

// Client performs HTTP calls against the OpenAI API. It holds no retry or
// fallback logic; failures are classified and surfaced to the chain runner.
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
		baseURL = "https://api.openai.com/v1"
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

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// GenerateText calls chat completions and returns the extracted JSON payload.
// A vision payload (inline image bytes) becomes a multi-part user message.
func (c *Client) GenerateText(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	candidate := providers.Candidate{Provider: providers.ProviderOpenAI, Model: model}

	system := payload.System
	if system == "" {
		system = "You are a helpful assistant that only responds with valid JSON."
	}
	messages := []chatMessage{{Role: "system", Content: system}}
	if len(payload.ImageData) > 0 {
		mime := payload.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(payload.ImageData))
		messages = append(messages, chatMessage{Role: "user", Content: []chatContentPart{
			{Type: "text", Text: payload.Prompt},
			{Type: "image_url", ImageURL: &chatImageURL{URL: dataURI}},
		}})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: payload.Prompt})
	}

	body := chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    0.6,
		ResponseFormat: &chatFormat{Type: "json_object"},
	}

	raw, err := c.invoke(ctx, model, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderOpenAI, Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return nil, &providers.Error{Kind: providers.KindExtraction, Provider: providers.ProviderOpenAI, Model: model, Err: fmt.Errorf("empty completion")}
	}

	structured, err := extract.JSON(decoded.Choices[0].Message.Content)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindExtraction, Provider: providers.ProviderOpenAI, Model: model, Err: err}
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Msg("openai: chat completion succeeded")
	return &providers.Result{Candidate: candidate, Structured: structured}, nil
}

// GenerateSpeech calls the speech endpoint and returns the audio bytes.
func (c *Client) GenerateSpeech(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	candidate := providers.Candidate{Provider: providers.ProviderOpenAI, Model: model}

	voice := payload.Voice
	if voice == "" {
		voice = "alloy"
	}
	format := payload.Format
	if format == "" {
		format = "mp3"
	}
	body := speechRequest{
		Model:          model,
		Input:          payload.Prompt,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          payload.Speed,
	}

	raw, err := c.invoke(ctx, model, "/audio/speech", body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderOpenAI, Model: model, Err: fmt.Errorf("empty audio body")}
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Int("bytes", len(raw)).
		Msg("openai: speech synthesis succeeded")
	return &providers.Result{
		Candidate: candidate,
		Binary:    &providers.BinaryPayload{MIME: audioMIME(format), Data: raw},
	}, nil
}

func (c *Client) invoke(ctx context.Context, model, path string, payload any) ([]byte, error) {
	cred, err := c.credentials.Get(ctx, providers.ProviderOpenAI)
	if err != nil {
		return nil, credentials.AsProviderError(providers.ProviderOpenAI, model, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderOpenAI, Model: model, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderOpenAI, Model: model, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	if cred.AccountID != "" {
		req.Header.Set("OpenAI-Organization", cred.AccountID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderOpenAI, model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderOpenAI, model, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classify(model, resp.StatusCode, raw)
	}
	return raw, nil
}

func classify(model string, status int, raw []byte) *providers.Error {
	var detail apiError
	message := ""
	if err := json.Unmarshal(raw, &detail); err == nil {
		message = detail.Error.Message
		if detail.Error.Code == "model_not_found" {
			return &providers.Error{
				Kind:     providers.KindModelNotFound,
				Provider: providers.ProviderOpenAI,
				Model:    model,
				Err:      fmt.Errorf("status %d: %s", status, message),
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return providers.ClassifyStatus(providers.ProviderOpenAI, model, status, message)
}

func audioMIME(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
