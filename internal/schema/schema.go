// Package schema owns the JSON contract the generation backend is steered
// toward: the schema text embedded into prompts and the strict decoding of
// whatever text the backend actually returns.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"brand-video-analyzer/internal/model"
)

// OutputSchema is the hand-authored JSON Schema sent both inside the prompt
// and as the response_format hint. Kept as a constant so the prompt and the
// hint can never drift apart.
const OutputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "summary": {"type": "string"},
    "hashtags": {"type": "array", "items": {"type": "string"}},
    "topics": {"type": "array", "items": {"type": "string"}},
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string"},
          "title": {"type": "string"},
          "summary": {"type": "string"},
          "timestamps": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "start": {"type": "string"},
              "end": {"type": "string"}
            },
            "required": ["start", "end"]
          }
        },
        "required": ["id", "title", "summary", "timestamps"]
      }
    },
    "brand_mentions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string"},
          "mention_type": {"type": "string"},
          "subtype": {"type": "string"},
          "description": {"type": "string"},
          "chapter_id": {"type": "string"},
          "timestamps": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "start": {"type": "string"},
              "end": {"type": "string"}
            },
            "required": ["start", "end"]
          },
          "placement": {"type": "string"},
          "text": {"type": "string"},
          "spoken_quote": {"type": "string"},
          "confidence": {"type": "number"}
        },
        "required": ["id", "mention_type", "description", "timestamps", "confidence"]
      }
    }
  },
  "required": ["summary", "chapters", "brand_mentions", "hashtags", "topics"]
}`

// Error codes recorded in the envelope when the payload cannot be used.
const (
	CodeMissingData     = "missing_data"
	CodeParseError      = "parse_error"
	CodeValidationError = "validation_error"
)

// Parse turns the raw textual payload from the generation call into a typed
// output. It never fails hard: on any problem it returns the empty output and
// a single ErrorDetail classifying what went wrong.
func Parse(raw string) (model.AnalysisOutput, *model.ErrorDetail) {
	if raw == "" {
		return model.EmptyOutput(), &model.ErrorDetail{
			Code:    CodeMissingData,
			Message: "generation response missing text data",
		}
	}
	if !gjson.Valid(raw) {
		return model.EmptyOutput(), &model.ErrorDetail{
			Code:    CodeParseError,
			Message: "generation response was not valid JSON",
		}
	}

	var out model.AnalysisOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.EmptyOutput(), &model.ErrorDetail{
			Code:    CodeValidationError,
			Message: "generation response did not match the output schema",
			Details: map[string]string{"error": err.Error()},
		}
	}
	if err := Validate(&out); err != nil {
		return model.EmptyOutput(), &model.ErrorDetail{
			Code:    CodeValidationError,
			Message: "generation response did not match the output schema",
			Details: map[string]string{"error": err.Error()},
		}
	}
	out.Normalize()
	return out, nil
}

// Validate enforces the parts of the contract a plain decode cannot: required
// fields, the mention_type enum and the confidence range.
func Validate(out *model.AnalysisOutput) error {
	for i, ch := range out.Chapters {
		if ch.ID == "" || ch.Title == "" {
			return fmt.Errorf("chapters[%d]: id and title are required", i)
		}
		if ch.Timestamps.Start == "" || ch.Timestamps.End == "" {
			return fmt.Errorf("chapters[%d]: timestamps.start and timestamps.end are required", i)
		}
	}
	for i, bm := range out.BrandMentions {
		if bm.ID == "" || bm.Description == "" {
			return fmt.Errorf("brand_mentions[%d]: id and description are required", i)
		}
		if !lo.Contains(model.MentionTypes, bm.MentionType) {
			return fmt.Errorf("brand_mentions[%d]: unknown mention_type %q", i, bm.MentionType)
		}
		if bm.Timestamps.Start == "" {
			return fmt.Errorf("brand_mentions[%d]: timestamps.start is required", i)
		}
		if bm.Confidence < 0 || bm.Confidence > 1 {
			return fmt.Errorf("brand_mentions[%d]: confidence %v out of range", i, bm.Confidence)
		}
	}
	return nil
}
