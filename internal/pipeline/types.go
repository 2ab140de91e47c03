package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adstudio/internal/providers"
)

const (
	minScenes     = 1
	maxScenes     = 8
	minVariations = 1
	maxVariations = 3

	defaultSceneCount      = 5
	defaultSceneDuration   = 5
	defaultVariationsCount = 1
	defaultAspectRatio     = "9:16"
)

// LockContext carries user-supplied visual constraints that must survive into
// every scene's media prompts.
type LockContext struct {
	Face   string `json:"face,omitempty"`
	Outfit string `json:"outfit,omitempty"`
}

func (l LockContext) Empty() bool {
	return strings.TrimSpace(l.Face) == "" && strings.TrimSpace(l.Outfit) == ""
}

// Brief is the user's description of the ad to generate. It is immutable once
// a session is created.
type Brief struct {
	UserID      string `json:"user_id"`
	BrandName   string `json:"brand_name"`
	ProductName string `json:"product_name"`
	Description string `json:"description"`
	Audience    string `json:"audience"`
	Market      string `json:"market"`
	Locale      string `json:"locale"`
	Tone        string `json:"tone"`
	VisualStyle string `json:"visual_style"`

	SceneCount      int    `json:"scene_count"`
	SceneDuration   int    `json:"scene_duration_seconds"`
	VariationsCount int    `json:"variations_count"`
	AspectRatio     string `json:"aspect_ratio"`

	Lock LockContext `json:"lock,omitempty"`

	// Optional reference image analyzed by the vision chain before the
	// strategy stage.
	ReferenceImage     []byte `json:"-"`
	ReferenceImageMIME string `json:"-"`
}

// Normalize validates the brief and clamps tunables into their supported
// ranges, filling defaults for omitted fields.
func (b *Brief) Normalize() error {
	b.BrandName = strings.TrimSpace(b.BrandName)
	b.ProductName = strings.TrimSpace(b.ProductName)
	b.Description = strings.TrimSpace(b.Description)
	if b.BrandName == "" && b.ProductName == "" {
		return errors.New("pipeline: brief requires a brand or product name")
	}
	if b.SceneCount == 0 {
		b.SceneCount = defaultSceneCount
	}
	if b.SceneCount < minScenes {
		b.SceneCount = minScenes
	}
	if b.SceneCount > maxScenes {
		b.SceneCount = maxScenes
	}
	if b.SceneDuration <= 0 {
		b.SceneDuration = defaultSceneDuration
	}
	if b.VariationsCount == 0 {
		b.VariationsCount = defaultVariationsCount
	}
	if b.VariationsCount < minVariations {
		b.VariationsCount = minVariations
	}
	if b.VariationsCount > maxVariations {
		b.VariationsCount = maxVariations
	}
	if strings.TrimSpace(b.AspectRatio) == "" {
		b.AspectRatio = defaultAspectRatio
	}
	if strings.TrimSpace(b.Locale) == "" {
		b.Locale = "en"
	}
	return nil
}

// Subject is the display name used in prompts and fallback copy.
func (b Brief) Subject() string {
	switch {
	case b.BrandName != "" && b.ProductName != "":
		return b.BrandName + " " + b.ProductName
	case b.BrandName != "":
		return b.BrandName
	default:
		return b.ProductName
	}
}

// ProductTruths is the claims sheet the strategy stage must produce so scene
// copy stays honest.
type ProductTruths struct {
	SafeClaims      []string `json:"safe_claims"`
	ForbiddenClaims []string `json:"forbidden_claims"`
	Disclaimer      string   `json:"disclaimer"`
}

// Strategy is the stage-1 output. It is read-only for stage 2.
type Strategy struct {
	ConceptTitle     string        `json:"concept_title"`
	HookRationale    string        `json:"hook_rationale"`
	AudienceAnalysis string        `json:"audience_analysis"`
	BrandVoice       string        `json:"brand_voice"`
	Truths           ProductTruths `json:"product_truths"`

	// VisualNotes come from the optional reference-image pass.
	VisualNotes string `json:"visual_notes,omitempty"`
}

// Validate reports whether the extracted object is a usable strategy.
func (s *Strategy) Validate() error {
	if strings.TrimSpace(s.ConceptTitle) == "" {
		return errors.New("strategy missing concept_title")
	}
	if strings.TrimSpace(s.HookRationale) == "" {
		return errors.New("strategy missing hook_rationale")
	}
	if strings.TrimSpace(s.BrandVoice) == "" {
		return errors.New("strategy missing brand_voice")
	}
	return nil
}

// FallbackConceptTitle derives a presentable title from the brief when the
// model omits one but the rest of the strategy is usable.
func FallbackConceptTitle(b Brief) string {
	return cases.Title(language.Und).String(b.Subject()) + " Spot"
}

// MediaPromptSpec nests the per-kind generation prompts inside a scene.
type MediaPromptSpec struct {
	ImagePrompt   string `json:"image_prompt"`
	ImageNegative string `json:"image_negative,omitempty"`
	VideoPrompt   string `json:"video_prompt"`
	VideoNegative string `json:"video_negative,omitempty"`
	CameraMove    string `json:"camera_movement,omitempty"`
	MotionLevel   string `json:"motion_level,omitempty"`
}

// SceneScript is one beat of a variation.
type SceneScript struct {
	DurationSeconds int             `json:"duration_seconds"`
	Visual          string          `json:"visual"`
	VoiceOver       string          `json:"voice_over"`
	OnScreenText    string          `json:"on_screen_text,omitempty"`
	Media           MediaPromptSpec `json:"media"`
}

// Variation is one independently generated script alternative.
type Variation struct {
	Hint    string        `json:"hint,omitempty"`
	Caption string        `json:"caption"`
	CTA     string        `json:"cta"`
	Scenes  []SceneScript `json:"scenes"`
}

// Validate checks the variation against the expected scene count and required
// per-scene fields. Mismatches are schema failures, not retryable transport
// problems.
func (v *Variation) Validate(wantScenes int) error {
	if len(v.Scenes) != wantScenes {
		return fmt.Errorf("expected %d scenes, got %d", wantScenes, len(v.Scenes))
	}
	for i, scene := range v.Scenes {
		if strings.TrimSpace(scene.Visual) == "" {
			return fmt.Errorf("scene %d missing visual description", i+1)
		}
		if strings.TrimSpace(scene.VoiceOver) == "" {
			return fmt.Errorf("scene %d missing voice_over", i+1)
		}
		if strings.TrimSpace(scene.Media.ImagePrompt) == "" {
			return fmt.Errorf("scene %d missing image_prompt", i+1)
		}
		if strings.TrimSpace(scene.Media.VideoPrompt) == "" {
			return fmt.Errorf("scene %d missing video_prompt", i+1)
		}
	}
	return nil
}

func schemaError(candidate providers.Candidate, err error) error {
	return &providers.Error{
		Kind:     providers.KindSchemaValidation,
		Provider: candidate.Provider,
		Model:    candidate.Model,
		Err:      err,
	}
}
