package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"

	"brand-video-analyzer/internal/schema"
)

// promptTemplate steers the free-form generator toward schema-conformant
// output: the target brand and the JSON Schema are injected at build time.
const promptTemplate = `You are a video analysis model. Analyze the given video and the target brand, and return a structured JSON object only, with no text outside the JSON.

Goal:
Provide an overall summary, chapter titles and summaries, a comprehensive list of all brand mentions for the target brand, and include the main topics and hashtags.

Brand to detect: {brand}

Rules:
- Output must be valid JSON matching the schema below.
- Timestamps use HH:MM:SS (zero-padded). Chapters have non-overlapping start/end.
- A brand mention is explicit when spoken, shown, or on-screen; implicit when inferred.
- Topics should reflect the main themes (prefer lowercase snake_case).
- Hashtags should be concise and relevant (3-8, standard #tag format).
- Include start and end timestamps for every brand mention.
- Keep sentences concise (under ~280 chars).
- Never include any text outside the JSON.

JSON schema:
{json_schema}

Instructions:
1. Segment the video into meaningful chapters; fill id, title, summary, timestamps. Sponsor mentions should be their own segments when longer than 5 seconds.
2. List all brand mentions across the entire video in brand_mentions. Use start and end timestamps when longer than 5 seconds, otherwise provide the start timestamp.
3. Brand mentions can be of these types: sponsor_segment, on_screen_element, verbal_mention, product_visual, product_demo, comparison_section, call_to_action ("use code..."), affiliate_disclosure ("this video is sponsored by..."), giveaway_or_promo, and end_screen references.
4. Brand mentions can overlay (e.g. an on_screen_element within a broader product_demo segment).
5. If none detected, return an empty array for brand_mentions.
6. If a mention is not tied to a single chapter, omit chapter_id.
7. Add main topics and 3-8 concise hashtags that reflect the video's themes.
8. Output strictly valid JSON (no markdown, no commentary).`

// BuildPrompt injects the brand and the compacted output schema into the
// template.
func BuildPrompt(brand string) string {
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(schema.OutputSchema)); err != nil {
		compact.Reset()
		compact.WriteString(schema.OutputSchema)
	}
	p := strings.ReplaceAll(promptTemplate, "{brand}", brand)
	return strings.ReplaceAll(p, "{json_schema}", compact.String())
}
