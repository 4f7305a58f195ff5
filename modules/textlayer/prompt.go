package textlayer

import (
	"fmt"
	"strings"
)

const scriptSystemPrompt = `You are an expert Python developer specialising in image processing and text overlay with pycairo.
Analyse the poster image and the user's request, then write a complete Python script that overlays a VERY SHORT message (2-6 words, e.g. "Grand Opening", "Season's Greetings").

Guidelines:
- Place text where continuous empty space exists across the full line length; avoid faces and busy regions.
- Break long lines at natural phrase boundaries.
- Choose premium colours with strong contrast against the background; add a soft shadow or thin outline for separation.
- Size text relative to image width (headline about 7-9% of width).
- Load a system font by family name with two fallbacks, the last one a generic sans-serif.

Script requirements:
1. Import ONLY: PIL (pillow), cairo, os (os.path only), math. Read and write files only through input_image_path and output_image_path; no getattr, globals or eval tricks. No numpy, cv2, matplotlib, subprocess or network modules.
2. Define main(input_image_path, output_image_path, user_prompt). Do not add an if __name__ == "__main__" block.
3. Load the input image, draw on a Cairo surface of the same size, save the result to output_image_path as PNG.
4. Never modify or delete input_image_path.

Return ONLY JSON: {"message": "the short text you render", "script": "the full python source"}`

const evaluateSystemPrompt = `You are a poster text-placement specialist and pycairo reviewer.
Inputs: the original poster (before overlay), the result poster (after overlay), the script used and the user's request.

Score the result from 1 to 10 on each axis:
- placement_score: text sits in continuous negative space with margins of at least 3% of the shorter side.
- readability_score: crisp, WCAG AA contrast or better.
- design_score: clear hierarchy and consistent styling.
- fulfillment_score: message matches the request in 2-6 words.
- technical_score: no artifacts, correct alpha blending.
- composition_score: text complements the imagery.
- font_score: family and style suit the poster, fallback chain present.
- color_score: colour supports the theme and keeps contrast.

Rules:
- overall_score is the average of the eight axes.
- If overall_score >= 9.0 then needs_correction = false and corrected_script = null.
- Otherwise return a complete corrected script with the same main(input_image_path, output_image_path, user_prompt) signature
  and the same import restrictions (PIL, cairo, os, math only).

Return ONLY JSON:
{"overall_score": number, "placement_score": number, "readability_score": number, "design_score": number,
 "fulfillment_score": number, "technical_score": number, "composition_score": number, "font_score": number,
 "color_score": number, "issues_found": [string], "needs_correction": boolean, "corrected_script": string|null}`

func buildScriptRequest(intent string) string {
	return fmt.Sprintf("Generate a Python script to add a text overlay to this poster based on: %s", strings.TrimSpace(intent))
}

func buildEvaluateRequest(intent, script string) string {
	return fmt.Sprintf("Evaluate this text overlay result for the request: %q\n\nScript used:\n%s", strings.TrimSpace(intent), script)
}
