package evaluate

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a senior visual evaluator. Analyze poster images for alignment with the user's intent and the design guidance.
Judge every image against this rubric:
1. Text absence: no rendered words, letters, numbers, logos, QR codes, signatures or UI elements.
2. Brand integration: colours and mood leave room for brand assets.
3. Background completeness: no empty, cut-off or unfinished regions.
4. Figure/ground separation: the subject reads clearly against the background.
5. Plausibility: anatomy, perspective, lighting and physics look right.
6. Micro-detail fidelity: hands, faces, edges and textures hold up at full size.
7. Mood fidelity: the emotional tone matches the intent.
8. Negative-space reservation: there is clean space for headline and copy.
9. Factual accuracy: cultural and domain details are correct.
Return ONLY a JSON object: {"picked_index": integer, "score": number, "rationale": string, "edit_instructions": string}
Score range 0.0-10.0 with one decimal. No markdown, no extra text.`

// buildUserInstruction - 이미지 개수에 따라 문구가 달라지는 평가 지시문
func buildUserInstruction(intent, enhancedPrompt string, imageCount int) string {
	var b strings.Builder
	if imageCount > 1 {
		fmt.Fprintf(&b, "Evaluate the set of %d images below (0-based order) and pick the best one", imageCount)
	} else {
		b.WriteString("Evaluate the single image below")
	}
	b.WriteString(", considering BOTH the user's goal and the enhanced prompt.\n\n")
	fmt.Fprintf(&b, "User prompt (goal):\n%s\n\n", strings.TrimSpace(intent))
	if enhancedPrompt != "" {
		fmt.Fprintf(&b, "Enhanced prompt used for generation:\n%s\n\n", strings.TrimSpace(enhancedPrompt))
	}
	b.WriteString("Return a single JSON object with:\n" +
		"- picked_index (0-based; 0 if only one image)\n" +
		"- score (0.0..10.0)\n" +
		"- rationale (1-2 concise sentences)\n" +
		"- edit_instructions (clear, actionable guidance to improve the picked image without adding any text/logos/QR/UI; empty string if nothing should change)\n" +
		"JSON only.")
	return b.String()
}
