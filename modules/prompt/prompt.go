package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

const enhanceSystemPrompt = `You are an expert prompt engineer writing production-ready prompts for a poster image model.
Turn the user's idea into one coherent, detailed description covering:
1. Poster type and purpose.
2. Layout and composition: background, spatial arrangement, visual hierarchy, reserved negative space for later copy.
3. Visual elements: subjects, objects, style, lighting, materials.
4. Colour scheme with descriptive colour names.
5. Professional quality: clean, high impact, balanced.
Never ask the image model to render text, logos, QR codes, signatures or UI.
Output only the prompt, no commentary.`

const variantsSystemPrompt = enhanceSystemPrompt + `

Write %d clearly different variants (different composition, mood or visual concept).
Return ONLY JSON: {"variants": ["...", "..."]}`

const rankSystemPrompt = `You are a senior prompt engineer and creative director judging enhanced prompt candidates for poster generation.
Judge each candidate on intent fidelity, clarity and specificity, plausibility, professional design guidance, and safety
(no text/logo/brand/QR requests). Score each from 0.0 to 10.0 with one decimal.
Return ONLY JSON: {"scores": [{"prompt": string, "score": number, "rationale": string, "violations": [string]}], "best": string}
"best" must be copied verbatim from the candidates.`

// buildEnhanceUserText - 사용자 아이디어 + 에셋 힌트
func buildEnhanceUserText(userPrompt string, hints *AssetHints) string {
	var b strings.Builder
	b.WriteString("User idea:\n")
	b.WriteString(strings.TrimSpace(userPrompt))
	if snippet := hints.Snippet(); snippet != "" {
		b.WriteString("\n\n")
		b.WriteString(snippet)
	}
	return b.String()
}

// buildRankUserText - 원래 의도 + 후보 JSON 배열
func buildRankUserText(intent string, candidates []string) string {
	encoded, _ := json.Marshal(candidates)
	return fmt.Sprintf("User prompt (goal):\n%s\n\nCandidates (JSON array of strings):\n%s\n\n"+
		"Pick the candidate most likely to produce a high-quality poster that fulfils the intent.",
		intent, string(encoded))
}
