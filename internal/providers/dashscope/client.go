// Package dashscope adapts the Alibaba Cloud DashScope generation APIs
// (qwen-image and wan video models) to the orchestrator's uniform contract.
package dashscope

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

// CredentialSource resolves the API key at call time.
type CredentialSource interface {
	Get(ctx context.Context, provider providers.Provider) (credentials.Credential, error)
}

// Options configures the DashScope client.
type Options struct {
	BaseURL     string
	DefaultSize string
	Watermark   bool
	HTTPClient  *http.Client
	Credentials CredentialSource
	Logger      *infra.Logger
}

// Client performs HTTP calls against the DashScope API.
type Client struct {
	baseURL     string
	defaultSize string
	watermark   bool
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
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	defaultSize := strings.TrimSpace(opts.DefaultSize)
	if defaultSize == "" {
		defaultSize = "1328*1328"
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
		defaultSize: defaultSize,
		watermark:   opts.Watermark,
		httpClient:  httpClient,
		credentials: opts.Credentials,
		logger:      logger,
	}
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages,omitempty"`
	Prompt   string              `json:"prompt,omitempty"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Text string `json:"text,omitempty"`
}

type generationParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	Duration       int    `json:"duration,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
					Video string `json:"video"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		VideoURL string `json:"video_url"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// GenerateImage calls the multimodal generation endpoint and downloads the
// produced image.
func (c *Client) GenerateImage(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	body := generationRequest{
		Model: model,
		Input: generationInput{
			Messages: []generationMessage{{
				Role:    "user",
				Content: []generationContent{{Text: strings.TrimSpace(payload.Prompt)}},
			}},
		},
		Parameters: generationParams{
			NegativePrompt: strings.TrimSpace(payload.NegativePrompt),
			Size:           sizeForAspect(payload.AspectRatio, c.defaultSize),
		},
	}
	watermark := c.watermark
	body.Parameters.Watermark = &watermark

	decoded, err := c.invoke(ctx, model, "/services/aigc/multimodal-generation/generation", body)
	if err != nil {
		return nil, err
	}
	mediaURL := firstMediaURL(decoded)
	if mediaURL == "" {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("empty image url")}
	}
	data, mime, err := c.download(ctx, model, mediaURL, "image/png")
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", decoded.RequestID).
		Int("bytes", len(data)).
		Msg("dashscope: image generation succeeded")
	return &providers.Result{
		Candidate: providers.Candidate{Provider: providers.ProviderDashScope, Model: model},
		Binary:    &providers.BinaryPayload{MIME: mime, Data: data},
	}, nil
}

// GenerateVideo calls the video synthesis endpoint and downloads the clip.
func (c *Client) GenerateVideo(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	body := generationRequest{
		Model: model,
		Input: generationInput{Prompt: strings.TrimSpace(payload.Prompt)},
		Parameters: generationParams{
			NegativePrompt: strings.TrimSpace(payload.NegativePrompt),
			Duration:       payload.DurationSeconds,
		},
	}

	decoded, err := c.invoke(ctx, model, "/services/aigc/video-generation/video-synthesis", body)
	if err != nil {
		return nil, err
	}
	mediaURL := decoded.Output.VideoURL
	if mediaURL == "" {
		mediaURL = firstMediaURL(decoded)
	}
	if mediaURL == "" {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("empty video url")}
	}
	data, mime, err := c.download(ctx, model, mediaURL, "video/mp4")
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", decoded.RequestID).
		Int("bytes", len(data)).
		Msg("dashscope: video generation succeeded")
	return &providers.Result{
		Candidate: providers.Candidate{Provider: providers.ProviderDashScope, Model: model},
		Binary:    &providers.BinaryPayload{MIME: mime, Data: data},
	}, nil
}

func (c *Client) invoke(ctx context.Context, model, path string, payload generationRequest) (*generationResponse, error) {
	cred, err := c.credentials.Get(ctx, providers.ProviderDashScope)
	if err != nil {
		return nil, credentials.AsProviderError(providers.ProviderDashScope, model, err)
	}
	if strings.TrimSpace(payload.Input.Prompt) == "" && len(payload.Input.Messages) == 0 {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("prompt is required")}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderDashScope, model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(providers.ProviderDashScope, model, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classify(model, resp.StatusCode, raw)
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Code != "" {
		return nil, classifyCode(model, http.StatusOK, decoded.Code, decoded.Message)
	}
	return &decoded, nil
}

func (c *Client) download(ctx context.Context, model, mediaURL, fallbackMIME string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(mediaURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("invalid media url: %s", mediaURL)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", &providers.Error{Kind: providers.KindNetwork, Provider: providers.ProviderDashScope, Model: model, Err: fmt.Errorf("build download request: %w", err)}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", providers.Wrap(providers.ProviderDashScope, model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", providers.ClassifyStatus(providers.ProviderDashScope, model, resp.StatusCode, "media download failed")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", providers.Wrap(providers.ProviderDashScope, model, err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = fallbackMIME
	}
	return data, mime, nil
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func classify(model string, status int, raw []byte) *providers.Error {
	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Code != "" {
		return classifyCode(model, status, detail.Code, detail.Message)
	}
	return providers.ClassifyStatus(providers.ProviderDashScope, model, status, strings.TrimSpace(string(raw)))
}

func classifyCode(model string, status int, code, message string) *providers.Error {
	kind := providers.KindNetwork
	switch {
	case strings.Contains(code, "Throttling"):
		kind = providers.KindRateLimited
	case strings.Contains(code, "ModelNotFound") || strings.Contains(code, "ModelNotExist"):
		kind = providers.KindModelNotFound
	case strings.Contains(code, "InvalidApiKey") || strings.Contains(code, "AccessDenied") || strings.Contains(code, "Unauthorized"):
		kind = providers.KindPermissionDenied
	case strings.Contains(code, "ServiceUnavailable") || strings.Contains(code, "InternalError"):
		kind = providers.KindServiceOverloaded
	default:
		if e := providers.ClassifyStatus(providers.ProviderDashScope, model, status, message); status >= 300 {
			kind = e.Kind
		}
	}
	return &providers.Error{
		Kind:     kind,
		Provider: providers.ProviderDashScope,
		Model:    model,
		Err:      fmt.Errorf("%s (%s)", message, code),
	}
}

func firstMediaURL(resp *generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" {
				return u
			}
			if u := strings.TrimSpace(content.Video); u != "" {
				return u
			}
		}
	}
	return ""
}

// sizeForAspect maps the orchestrator's aspect ratios onto DashScope size
// strings, falling back to the configured default.
func sizeForAspect(aspect, fallback string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "9:16":
		return "928*1664"
	case "4:3":
		return "1472*1140"
	case "3:4":
		return "1140*1472"
	case "1:1":
		return "1328*1328"
	default:
		return fallback
	}
}
