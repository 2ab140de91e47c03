// Package gemini adapts the Gemini generateContent API family to the
// orchestrator's uniform generation contract: text and vision analysis plus
// image and video synthesis through inline or file-referenced parts.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
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

// CredentialSource resolves the API key at call time.
type CredentialSource interface {
	Get(ctx context.Context, provider providers.Provider) (credentials.Credential, error)
}

// Options configures the Gemini client.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialSource
	Logger      *infra.Logger
}

// Client performs HTTP calls against the Gemini API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *infra.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 180 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
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

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type tool struct {
	ImageGeneration *struct{} `json:"image_generation,omitempty"`
	VideoGeneration *struct{} `json:"video_generation,omitempty"`
}

type generationConfig struct {
	CandidateCount   int    `json:"candidateCount,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	DurationSeconds  int    `json:"duration_seconds,omitempty"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	Tools            []tool            `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, error) {
	cred, err := c.credentials.Get(ctx, providers.ProviderGemini)
	if err != nil {
		return nil, credentials.AsProviderError(providers.ProviderGemini, model, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("encode request: %w", err)}
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("build request: %w", err)}
	}
	q := req.URL.Query()
	q.Set("key", cred.Token)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderGemini, model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderGemini, model, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classify(model, resp.StatusCode, raw)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &decoded, nil
}

// firstInlineAsset walks candidates and returns the first binary part,
// downloading file-referenced parts when the response carries a URI instead
// of inline bytes.
func (c *Client) firstInlineAsset(ctx context.Context, model string, resp *generateContentResponse) (mime string, data []byte, err error) {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				decoded, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					continue
				}
				return p.InlineData.MimeType, decoded, nil
			}
			if p.FileData != nil && p.FileData.FileURI != "" {
				data, headerMIME, err := c.downloadFile(ctx, model, p.FileData.FileURI)
				if err != nil {
					return "", nil, err
				}
				mime := p.FileData.MimeType
				if mime == "" {
					mime = headerMIME
				}
				return mime, data, nil
			}
		}
	}
	return "", nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("no media content returned")}
}

func (c *Client) downloadFile(ctx context.Context, model, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("build download request: %w", err)}
	}
	if cred, err := c.credentials.Get(ctx, providers.ProviderGemini); err == nil {
		q := req.URL.Query()
		q.Set("key", cred.Token)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", providers.Wrap(providers.ProviderGemini, model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, "", classify(model, resp.StatusCode, raw)
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", providers.Wrap(providers.ProviderGemini, model, err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func classify(model string, status int, raw []byte) *providers.Error {
	var detail errorResponse
	message := ""
	if err := json.Unmarshal(raw, &detail); err == nil {
		message = detail.Error.Message
		kind := providers.ErrorKind("")
		switch detail.Error.Status {
		case "NOT_FOUND":
			kind = providers.KindModelNotFound
		case "PERMISSION_DENIED", "UNAUTHENTICATED":
			kind = providers.KindPermissionDenied
		case "RESOURCE_EXHAUSTED":
			kind = providers.KindRateLimited
		case "UNAVAILABLE":
			kind = providers.KindServiceOverloaded
		case "DEADLINE_EXCEEDED":
			kind = providers.KindTimeout
		}
		if kind != "" {
			return &providers.Error{
				Kind:     kind,
				Provider: providers.ProviderGemini,
				Model:    model,
				Err:      fmt.Errorf("status %d: %s", status, message),
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return providers.ClassifyStatus(providers.ProviderGemini, model, status, message)
}

func textParts(payload providers.Payload) []part {
	parts := []part{{Text: payload.Prompt}}
	if len(payload.ImageData) > 0 {
		mime := payload.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(payload.ImageData),
		}})
	}
	return parts
}
