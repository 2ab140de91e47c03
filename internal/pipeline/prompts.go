package pipeline

import (
	"fmt"
	"strings"
)

const strategySystem = "You are a senior advertising strategist. Respond strictly with valid JSON and nothing else."

var variationHints = []string{
	"Lead with the strongest emotional hook and a bold opening claim.",
	"Take a contrarian angle: open with the problem the audience quietly tolerates.",
	"Use a testimonial-style narrative voice, as if a real customer is speaking.",
}

func buildStrategyPrompt(b Brief, visualNotes string) string {
	sb := &strings.Builder{}
	sb.WriteString("Develop an advertising strategy. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"concept_title":string,"hook_rationale":string,"audience_analysis":string,"brand_voice":string,"product_truths":{"safe_claims":string[],"forbidden_claims":string[],"disclaimer":string}}`)
	fmt.Fprintf(sb, ". Brand=%q, product=%q, description=%q, audience=%q, market=%q, tone=%q, visual_style=%q. Write copy in locale '%s'.",
		b.BrandName, b.ProductName, b.Description, b.Audience, b.Market, b.Tone, b.VisualStyle, b.Locale)
	sb.WriteString(" Safe claims must be directly supported by the description; anything speculative belongs in forbidden_claims.")
	if notes := strings.TrimSpace(visualNotes); notes != "" {
		fmt.Fprintf(sb, " Observations from the supplied product photo: %s.", notes)
	}
	return sb.String()
}

func buildScenesPrompt(b Brief, strategy *Strategy, hint string) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Write a %d-scene video ad script, each scene about %d seconds. Respond strictly with JSON matching this schema: ",
		b.SceneCount, b.SceneDuration)
	sb.WriteString(`{"caption":string,"cta":string,"scenes":[{"duration_seconds":number,"visual":string,"voice_over":string,"on_screen_text":string,"media":{"image_prompt":string,"image_negative":string,"video_prompt":string,"video_negative":string,"camera_movement":string,"motion_level":string}}]}`)
	fmt.Fprintf(sb, ". The scenes array must contain exactly %d items.", b.SceneCount)
	fmt.Fprintf(sb, " Concept: %q. Hook rationale: %s. Brand voice: %s.",
		strategy.ConceptTitle, strategy.HookRationale, strategy.BrandVoice)
	if len(strategy.Truths.SafeClaims) > 0 {
		fmt.Fprintf(sb, " Only make these claims: %s.", strings.Join(strategy.Truths.SafeClaims, "; "))
	}
	if len(strategy.Truths.ForbiddenClaims) > 0 {
		fmt.Fprintf(sb, " Never state or imply: %s.", strings.Join(strategy.Truths.ForbiddenClaims, "; "))
	}
	if d := strings.TrimSpace(strategy.Truths.Disclaimer); d != "" {
		fmt.Fprintf(sb, " Include this disclaimer in the final scene's on_screen_text: %q.", d)
	}
	writeLockContext(sb, b.Lock)
	fmt.Fprintf(sb, " Image and video prompts describe %s footage in %s aspect ratio, style %q.",
		b.Subject(), b.AspectRatio, b.VisualStyle)
	fmt.Fprintf(sb, " Voice-over lines are spoken in locale '%s'.", b.Locale)
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(sb, " Creative direction for this version: %s", hint)
	}
	return sb.String()
}

// writeLockContext injects face/outfit constraints into every scene's media
// prompts so the generated visuals stay consistent across the ad.
func writeLockContext(sb *strings.Builder, lock LockContext) {
	if lock.Empty() {
		return
	}
	sb.WriteString(" Mandatory visual constraints for every image_prompt and video_prompt:")
	if face := strings.TrimSpace(lock.Face); face != "" {
		fmt.Fprintf(sb, " the on-screen person must match this face description: %q.", face)
	}
	if outfit := strings.TrimSpace(lock.Outfit); outfit != "" {
		fmt.Fprintf(sb, " they must wear: %q.", outfit)
	}
}

func buildVisionPrompt(b Brief) string {
	sb := &strings.Builder{}
	sb.WriteString("Analyze this product photo for an ad campaign. Respond strictly with JSON: ")
	sb.WriteString(`{"visual_notes":string,"safe_claims":string[]}`)
	fmt.Fprintf(sb, ". The product is %q. Describe only what is visibly true: packaging, colors, textures, setting.", b.Subject())
	return sb.String()
}

func hintForVariation(index int) string {
	if index < len(variationHints) {
		return variationHints[index]
	}
	return fmt.Sprintf("Produce a clearly distinct creative direction, version %d.", index+1)
}
