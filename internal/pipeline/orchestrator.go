package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"adstudio/internal/assets"
	"adstudio/internal/chain"
	"adstudio/internal/providers"
)

// Chains maps each capability onto its configured fallback chain.
type Chains struct {
	Text   providers.Chain
	Vision providers.Chain
	Image  providers.Chain
	Video  providers.Chain
	Speech providers.Chain
}

// Options wires an Orchestrator.
type Options struct {
	Runner       *chain.Runner
	Registry     *providers.Registry
	Materializer *assets.Materializer
	Chains       Chains
	Logger       *zerolog.Logger
}

// Orchestrator drives the two-stage script pipeline and the per-scene media
// requests. Sessions are held in memory; persistence goes through the
// repository at the HTTP boundary.
type Orchestrator struct {
	runner       *chain.Runner
	registry     *providers.Registry
	materializer *assets.Materializer
	chains       Chains
	logger       zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Runner == nil {
		return nil, errors.New("pipeline: runner is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("pipeline: registry is required")
	}
	if opts.Materializer == nil {
		return nil, errors.New("pipeline: materializer is required")
	}
	if len(opts.Chains.Text) == 0 {
		return nil, errors.New("pipeline: text chain is required")
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Orchestrator{
		runner:       opts.Runner,
		registry:     opts.Registry,
		materializer: opts.Materializer,
		chains:       opts.Chains,
		logger:       logger,
		sessions:     make(map[string]*Session),
	}, nil
}

// SubmitBrief validates the brief, creates a session and starts the strategy
// and scripting stages in the background. The returned session is immediately
// queryable.
func (o *Orchestrator) SubmitBrief(brief Brief) (*Session, error) {
	if err := brief.Normalize(); err != nil {
		return nil, err
	}
	s := newSession(brief)
	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()

	go o.run(s)
	return s, nil
}

// Session returns the session with the given id.
func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Stop cancels all outstanding chain invocations tied to the session. An
// in-flight pipeline settles into the Cancelled state.
func (o *Orchestrator) Stop(id string) bool {
	s, ok := o.Session(id)
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Forget drops a session from the in-memory registry, cancelling any work
// still tied to it.
func (o *Orchestrator) Forget(id string) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if ok {
		s.cancel()
	}
}

func (o *Orchestrator) run(s *Session) {
	defer close(s.done)

	s.setState(StateStrategizing)
	visualNotes := o.analyzeReference(s)

	strategy, err := o.generateStrategy(s, visualNotes)
	if err != nil {
		o.logger.Warn().Str("session", s.ID).Err(err).Msg("pipeline: strategy stage failed")
		s.fail(err)
		return
	}
	s.setStrategy(strategy)

	s.setState(StateScripting)
	o.generateVariations(s, strategy)

	if err := s.ctx.Err(); err != nil {
		s.fail(&providers.Error{Kind: providers.KindCancelled, Err: err})
		return
	}
	if len(s.Variations()) == 0 {
		err := s.VariationError(0)
		if err == nil {
			err = errors.New("pipeline: no variation produced")
		}
		s.fail(err)
		return
	}
	s.setState(StateReady)
}

// analyzeReference runs the optional vision pass over a supplied product
// photo. A failure here never fails the session; the strategy prompt simply
// goes out without the extra grounding.
func (o *Orchestrator) analyzeReference(s *Session) string {
	if len(s.Brief.ReferenceImage) == 0 || len(o.chains.Vision) == 0 {
		return ""
	}
	payload := providers.Payload{
		Prompt:    buildVisionPrompt(s.Brief),
		ImageData: s.Brief.ReferenceImage,
		ImageMIME: s.Brief.ReferenceImageMIME,
		RequestID: s.ID,
	}
	result, err := o.runner.Run(s.ctx, o.chains.Vision, o.operation(providers.CapabilityVision, payload))
	if err != nil {
		o.logger.Warn().Str("session", s.ID).Err(err).Msg("pipeline: reference image analysis failed, continuing without it")
		return ""
	}
	var analysis struct {
		VisualNotes string   `json:"visual_notes"`
		SafeClaims  []string `json:"safe_claims"`
	}
	if err := json.Unmarshal(result.Structured, &analysis); err != nil {
		o.logger.Warn().Str("session", s.ID).Err(err).Msg("pipeline: reference image analysis unreadable")
		return ""
	}
	notes := strings.TrimSpace(analysis.VisualNotes)
	if len(analysis.SafeClaims) > 0 {
		if notes != "" {
			notes += " "
		}
		notes += "Visually supported claims: " + strings.Join(analysis.SafeClaims, "; ")
	}
	return notes
}

func (o *Orchestrator) generateStrategy(s *Session, visualNotes string) (*Strategy, error) {
	payload := providers.Payload{
		Prompt:    buildStrategyPrompt(s.Brief, visualNotes),
		System:    strategySystem,
		RequestID: s.ID,
	}
	result, err := o.runner.Run(s.ctx, o.chains.Text, o.operation(providers.CapabilityText, payload))
	if err != nil {
		return nil, err
	}
	var strategy Strategy
	if err := json.Unmarshal(result.Structured, &strategy); err != nil {
		return nil, schemaError(result.Candidate, fmt.Errorf("decode strategy: %w", err))
	}
	if strings.TrimSpace(strategy.ConceptTitle) == "" {
		strategy.ConceptTitle = FallbackConceptTitle(s.Brief)
	}
	if err := strategy.Validate(); err != nil {
		return nil, schemaError(result.Candidate, err)
	}
	strategy.VisualNotes = visualNotes
	return &strategy, nil
}

// generateVariations scripts every requested variation concurrently. Each
// shares only the read-only strategy, so one failing leaves the others
// untouched.
func (o *Orchestrator) generateVariations(s *Session, strategy *Strategy) {
	var wg sync.WaitGroup
	for i := 0; i < s.Brief.VariationsCount; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			v, err := o.generateVariation(s, strategy, index)
			if err != nil {
				o.logger.Warn().
					Str("session", s.ID).
					Int("variation", index).
					Err(err).
					Msg("pipeline: variation failed")
				s.setVariationError(index, err)
				return
			}
			s.setVariation(index, v)
		}(i)
	}
	wg.Wait()
}

func (o *Orchestrator) generateVariation(s *Session, strategy *Strategy, index int) (*Variation, error) {
	hint := ""
	if s.Brief.VariationsCount > 1 {
		hint = hintForVariation(index)
	}
	payload := providers.Payload{
		Prompt:    buildScenesPrompt(s.Brief, strategy, hint),
		System:    strategySystem,
		RequestID: s.ID,
	}
	result, err := o.runner.Run(s.ctx, o.chains.Text, o.operation(providers.CapabilityText, payload))
	if err != nil {
		return nil, err
	}
	var v Variation
	if err := json.Unmarshal(result.Structured, &v); err != nil {
		return nil, schemaError(result.Candidate, fmt.Errorf("decode variation: %w", err))
	}
	v.Hint = hint
	if err := v.Validate(s.Brief.SceneCount); err != nil {
		return nil, schemaError(result.Candidate, err)
	}
	return &v, nil
}

// RequestMedia generates one asset for one scene. The kind selects the prompt
// field and capability chain; an override candidate pins the generation to a
// single provider instead of the configured chain. The returned reference
// replaces any previous one for the same scene and kind.
func (o *Orchestrator) RequestMedia(ctx context.Context, sessionID string, variationIdx, sceneIdx int, kind providers.Capability, override *providers.Candidate) (assets.Reference, error) {
	s, ok := o.Session(sessionID)
	if !ok {
		return assets.Reference{}, fmt.Errorf("pipeline: unknown session %q", sessionID)
	}
	if err := s.ctx.Err(); err != nil {
		return assets.Reference{}, &providers.Error{Kind: providers.KindCancelled, Err: err}
	}
	variation, ok := s.Variation(variationIdx)
	if !ok {
		return assets.Reference{}, fmt.Errorf("pipeline: variation %d is not available", variationIdx)
	}
	if sceneIdx < 0 || sceneIdx >= len(variation.Scenes) {
		return assets.Reference{}, fmt.Errorf("pipeline: scene %d out of range", sceneIdx)
	}
	scene := variation.Scenes[sceneIdx]

	payload, mediaChain, err := o.mediaRequest(s.Brief, scene, kind)
	if err != nil {
		return assets.Reference{}, err
	}
	payload.RequestID = s.ID
	if override != nil {
		mediaChain = providers.Chain{*override}
	}

	// Stop on the session aborts media generation in flight too.
	mctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(s.ctx, cancel)
	defer release()

	result, err := o.runner.Run(mctx, mediaChain, o.operation(kind, payload))
	if err != nil {
		return assets.Reference{}, err
	}
	if result.Binary == nil {
		return assets.Reference{}, schemaError(result.Candidate, errors.New("media result carried no binary payload"))
	}
	return o.materializer.Materialize(ctx, assets.Key{
		Session:   s.ID,
		Variation: variationIdx,
		Scene:     sceneIdx,
		Kind:      kind,
	}, result.Binary)
}

// MediaReference returns the latest materialized reference for a scene asset.
func (o *Orchestrator) MediaReference(sessionID string, variationIdx, sceneIdx int, kind providers.Capability) (assets.Reference, bool) {
	return o.materializer.Lookup(assets.Key{
		Session:   sessionID,
		Variation: variationIdx,
		Scene:     sceneIdx,
		Kind:      kind,
	})
}

// ExportAssets resolves every asset generated for the session into bytes,
// ready to be bundled for download.
func (o *Orchestrator) ExportAssets(ctx context.Context, sessionID string) ([]assets.StoredAsset, error) {
	if _, ok := o.Session(sessionID); !ok {
		return nil, fmt.Errorf("pipeline: unknown session %q", sessionID)
	}
	return o.materializer.Export(ctx, sessionID)
}

func (o *Orchestrator) mediaRequest(brief Brief, scene SceneScript, kind providers.Capability) (providers.Payload, providers.Chain, error) {
	switch kind {
	case providers.CapabilityImage:
		return providers.Payload{
			Prompt:         withLock(scene.Media.ImagePrompt, brief.Lock),
			NegativePrompt: scene.Media.ImageNegative,
			AspectRatio:    brief.AspectRatio,
		}, o.chains.Image, nil
	case providers.CapabilityVideo:
		prompt := withLock(scene.Media.VideoPrompt, brief.Lock)
		if move := strings.TrimSpace(scene.Media.CameraMove); move != "" {
			prompt += " Camera: " + move + "."
		}
		return providers.Payload{
			Prompt:          prompt,
			NegativePrompt:  scene.Media.VideoNegative,
			AspectRatio:     brief.AspectRatio,
			DurationSeconds: scene.DurationSeconds,
		}, o.chains.Video, nil
	case providers.CapabilitySpeech:
		return providers.Payload{
			Prompt: scene.VoiceOver,
		}, o.chains.Speech, nil
	default:
		return providers.Payload{}, nil, fmt.Errorf("pipeline: unsupported media kind %q", kind)
	}
}

// withLock re-asserts the face/outfit constraints on a media prompt. The
// script stage already instructs the model to include them, but models drift;
// appending here guarantees they reach the generation backend.
func withLock(prompt string, lock LockContext) string {
	if lock.Empty() {
		return prompt
	}
	sb := &strings.Builder{}
	sb.WriteString(strings.TrimSpace(prompt))
	if face := strings.TrimSpace(lock.Face); face != "" {
		fmt.Fprintf(sb, " The person must match this face description: %s.", face)
	}
	if outfit := strings.TrimSpace(lock.Outfit); outfit != "" {
		fmt.Fprintf(sb, " They wear: %s.", outfit)
	}
	return sb.String()
}

func (o *Orchestrator) operation(capability providers.Capability, payload providers.Payload) chain.Operation {
	return func(ctx context.Context, candidate providers.Candidate) (*providers.Result, error) {
		adapter, err := o.registry.Lookup(capability, candidate.Provider)
		if err != nil {
			return nil, err
		}
		return adapter.Invoke(ctx, candidate.Model, payload)
	}
}
