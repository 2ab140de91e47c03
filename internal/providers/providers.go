package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Capability enumerates the generation backends the orchestrator can target.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityVision Capability = "vision"
	CapabilityImage  Capability = "image"
	CapabilityVideo  Capability = "video"
	CapabilitySpeech Capability = "speech"
)

// Provider identifies one third-party backend.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
	ProviderDashScope  Provider = "dashscope"
	ProviderElevenLabs Provider = "elevenlabs"
)

// Candidate is one (provider, model) pair in a fallback chain.
type Candidate struct {
	Provider Provider
	Model    string
}

func (c Candidate) String() string {
	return string(c.Provider) + ":" + c.Model
}

// Chain is an ordered list of candidates to attempt for one logical operation.
type Chain []Candidate

// ParseChain parses a chain spec of the form "provider:model,provider:model".
func ParseChain(spec string) (Chain, error) {
	var chain Chain
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		provider, model, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("providers: invalid chain entry %q", part)
		}
		chain = append(chain, Candidate{
			Provider: Provider(strings.ToLower(strings.TrimSpace(provider))),
			Model:    strings.TrimSpace(model),
		})
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("providers: empty chain spec %q", spec)
	}
	return chain, nil
}

// Payload carries the normalized inputs for one generation call. Fields that
// do not apply to the target capability are left zero.
type Payload struct {
	Prompt         string
	System         string
	NegativePrompt string

	// Vision conditioning input.
	ImageData []byte
	ImageMIME string

	// Speech parameters.
	Voice  string
	Format string
	Speed  float64

	// Image/video parameters.
	AspectRatio     string
	DurationSeconds int

	RequestID string
}

// BinaryPayload holds raw generated media plus its mime type.
type BinaryPayload struct {
	MIME string
	Data []byte
}

// Result is the uniform envelope returned by every adapter. Exactly one of
// Structured and Binary is populated.
type Result struct {
	Candidate  Candidate
	Structured json.RawMessage
	Binary     *BinaryPayload
}

// Adapter is implemented once per (capability, provider). Adapters shape the
// provider-specific request, map the response into a Result and classify
// failures into an ErrorKind. They never retry or fall back; that belongs to
// the chain runner.
type Adapter interface {
	Invoke(ctx context.Context, model string, payload Payload) (*Result, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, model string, payload Payload) (*Result, error)

func (f AdapterFunc) Invoke(ctx context.Context, model string, payload Payload) (*Result, error) {
	return f(ctx, model, payload)
}

// Registry resolves the adapter for a capability and provider.
type Registry struct {
	adapters map[Capability]map[Provider]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Capability]map[Provider]Adapter)}
}

// Register binds an adapter. Later registrations replace earlier ones.
func (r *Registry) Register(capability Capability, provider Provider, adapter Adapter) {
	if r.adapters[capability] == nil {
		r.adapters[capability] = make(map[Provider]Adapter)
	}
	r.adapters[capability][provider] = adapter
}

// Lookup returns the adapter for the pair, or a ModelNotFound error so chain
// runners treat an unregistered provider like an unusable candidate.
func (r *Registry) Lookup(capability Capability, provider Provider) (Adapter, error) {
	if adapter, ok := r.adapters[capability][provider]; ok {
		return adapter, nil
	}
	return nil, &Error{
		Kind:     KindModelNotFound,
		Provider: provider,
		Err:      fmt.Errorf("no %s adapter registered for provider %q", capability, provider),
	}
}
