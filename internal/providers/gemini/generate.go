package gemini

import (
	"context"
	"fmt"
	"strings"

	"adstudio/internal/extract"
	"adstudio/internal/providers"
)

// GenerateText runs a text or vision request and returns the extracted JSON
// payload. System instructions are folded into the user prompt; the v1beta
// generateContent surface accepts a single contents list.
func (c *Client) GenerateText(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	prompt := payload.Prompt
	if payload.System != "" {
		prompt = payload.System + "\n\n" + prompt
	}
	shaped := payload
	shaped.Prompt = prompt

	req := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: textParts(shaped)}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	}
	resp, err := c.generateContent(ctx, model, req)
	if err != nil {
		return nil, err
	}

	text := firstText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &providers.Error{Kind: providers.KindExtraction, Provider: providers.ProviderGemini, Model: model, Err: fmt.Errorf("empty completion")}
	}
	structured, err := extract.JSON(text)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindExtraction, Provider: providers.ProviderGemini, Model: model, Err: err}
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Bool("vision", len(payload.ImageData) > 0).
		Msg("gemini: content generation succeeded")
	return &providers.Result{
		Candidate:  providers.Candidate{Provider: providers.ProviderGemini, Model: model},
		Structured: structured,
	}, nil
}

// GenerateImage requests a single image with the image-generation tool and
// returns the raw bytes.
func (c *Client) GenerateImage(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: imagePrompt(payload)}}}},
		Tools:    []tool{{ImageGeneration: &struct{}{}}},
		GenerationConfig: &generationConfig{
			CandidateCount: 1,
			AspectRatio:    payload.AspectRatio,
		},
	}
	resp, err := c.generateContent(ctx, model, req)
	if err != nil {
		return nil, err
	}
	mime, data, err := c.firstInlineAsset(ctx, model, resp)
	if err != nil {
		return nil, err
	}
	if mime == "" {
		mime = "image/png"
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Int("bytes", len(data)).
		Msg("gemini: image generation succeeded")
	return &providers.Result{
		Candidate: providers.Candidate{Provider: providers.ProviderGemini, Model: model},
		Binary:    &providers.BinaryPayload{MIME: mime, Data: data},
	}, nil
}

// GenerateVideo requests a clip with the video-generation tool.
func (c *Client) GenerateVideo(ctx context.Context, model string, payload providers.Payload) (*providers.Result, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: videoPrompt(payload)}}}},
		Tools:    []tool{{VideoGeneration: &struct{}{}}},
		GenerationConfig: &generationConfig{
			AspectRatio:     payload.AspectRatio,
			DurationSeconds: payload.DurationSeconds,
		},
	}
	resp, err := c.generateContent(ctx, model, req)
	if err != nil {
		return nil, err
	}
	mime, data, err := c.firstInlineAsset(ctx, model, resp)
	if err != nil {
		return nil, err
	}
	if mime == "" {
		mime = "video/mp4"
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", payload.RequestID).
		Int("bytes", len(data)).
		Msg("gemini: video generation succeeded")
	return &providers.Result{
		Candidate: providers.Candidate{Provider: providers.ProviderGemini, Model: model},
		Binary:    &providers.BinaryPayload{MIME: mime, Data: data},
	}, nil
}

func firstText(resp *generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}

func imagePrompt(payload providers.Payload) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(payload.Prompt))
	if neg := strings.TrimSpace(payload.NegativePrompt); neg != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(neg)
	}
	if aspect := strings.TrimSpace(payload.AspectRatio); aspect != "" {
		b.WriteString("\nAspect ratio: ")
		b.WriteString(aspect)
	}
	return b.String()
}

func videoPrompt(payload providers.Payload) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(payload.Prompt))
	if neg := strings.TrimSpace(payload.NegativePrompt); neg != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(neg)
	}
	return b.String()
}
