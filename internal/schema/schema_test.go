package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brand-video-analyzer/internal/model"
)

func TestOutputSchemaIsValidJSON(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(OutputSchema), &v))
	assert.Equal(t, "object", v["type"])
}

func TestParseMissingData(t *testing.T) {
	out, detail := Parse("")
	require.NotNil(t, detail)
	assert.Equal(t, CodeMissingData, detail.Code)
	assert.Equal(t, model.EmptyOutput(), out)
}

func TestParseInvalidJSON(t *testing.T) {
	out, detail := Parse("Sure! Here is the analysis you asked for:")
	require.NotNil(t, detail)
	assert.Equal(t, CodeParseError, detail.Code)
	assert.Empty(t, out.Chapters)
	assert.Empty(t, out.BrandMentions)
}

func TestParseWrongShape(t *testing.T) {
	out, detail := Parse(`{"summary": 42, "hashtags": "nope"}`)
	require.NotNil(t, detail)
	assert.Equal(t, CodeValidationError, detail.Code)
	assert.Equal(t, model.EmptyOutput(), out)
}

func TestParseUnknownMentionType(t *testing.T) {
	payload := `{
		"summary": "s", "hashtags": [], "topics": [], "chapters": [],
		"brand_mentions": [{
			"id": "bm_001", "mention_type": "subliminal_whisper",
			"description": "d", "timestamps": {"start": "00:00:01", "end": "00:00:02"},
			"confidence": 0.5
		}]
	}`
	out, detail := Parse(payload)
	require.NotNil(t, detail)
	assert.Equal(t, CodeValidationError, detail.Code)
	assert.Equal(t, model.EmptyOutput(), out)
}

func TestParseConfidenceOutOfRange(t *testing.T) {
	payload := `{
		"summary": "s", "hashtags": [], "topics": [], "chapters": [],
		"brand_mentions": [{
			"id": "bm_001", "mention_type": "verbal_mention",
			"description": "d", "timestamps": {"start": "00:00:01", "end": "00:00:02"},
			"confidence": 1.7
		}]
	}`
	_, detail := Parse(payload)
	require.NotNil(t, detail)
	assert.Equal(t, CodeValidationError, detail.Code)
}

func TestParseValidPayload(t *testing.T) {
	payload := `{
		"summary": "review of running shoes",
		"hashtags": ["#nike", "#running"],
		"topics": ["running", "gear_review"],
		"chapters": [{
			"id": "ch_001", "title": "Unboxing", "summary": "first look",
			"timestamps": {"start": "00:00:00", "end": "00:02:10"}
		}],
		"brand_mentions": [{
			"id": "bm_001", "mention_type": "product_demo",
			"description": "on-foot demo", "chapter_id": "ch_001",
			"timestamps": {"start": "00:01:00", "end": "00:02:00"},
			"confidence": 0.88
		}]
	}`
	out, detail := Parse(payload)
	require.Nil(t, detail)
	assert.Equal(t, "review of running shoes", out.Summary)
	require.Len(t, out.BrandMentions, 1)
	assert.Equal(t, model.MentionProductDemo, out.BrandMentions[0].MentionType)
	assert.Equal(t, "ch_001", out.BrandMentions[0].ChapterID)
}

func TestParseNormalizesMissingLists(t *testing.T) {
	out, detail := Parse(`{"summary": "ok"}`)
	require.Nil(t, detail)
	assert.NotNil(t, out.Hashtags)
	assert.NotNil(t, out.Chapters)
	assert.NotNil(t, out.BrandMentions)
}
