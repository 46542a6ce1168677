package model

import "time"

// Timestamps are zero-padded HH:MM:SS strings, as produced upstream.
type Timestamps struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Chapter struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Timestamps Timestamps `json:"timestamps"`
}

type MentionType string

const (
	MentionSponsorSegment      MentionType = "sponsor_segment"
	MentionOnScreenElement     MentionType = "on_screen_element"
	MentionVerbal              MentionType = "verbal_mention"
	MentionProductVisual       MentionType = "product_visual"
	MentionProductDemo         MentionType = "product_demo"
	MentionComparisonSection   MentionType = "comparison_section"
	MentionCallToAction        MentionType = "call_to_action"
	MentionAffiliateDisclosure MentionType = "affiliate_disclosure"
	MentionGiveawayOrPromo     MentionType = "giveaway_or_promo"
	MentionEndScreen           MentionType = "end_screen"
)

// MentionTypes lists every accepted mention_type value.
var MentionTypes = []MentionType{
	MentionSponsorSegment,
	MentionOnScreenElement,
	MentionVerbal,
	MentionProductVisual,
	MentionProductDemo,
	MentionComparisonSection,
	MentionCallToAction,
	MentionAffiliateDisclosure,
	MentionGiveawayOrPromo,
	MentionEndScreen,
}

type BrandMention struct {
	ID          string      `json:"id"`
	MentionType MentionType `json:"mention_type"`
	Subtype     string      `json:"subtype,omitempty"`
	Description string      `json:"description"`
	ChapterID   string      `json:"chapter_id,omitempty"`
	Timestamps  Timestamps  `json:"timestamps"`
	Placement   string      `json:"placement,omitempty"`
	Text        string      `json:"text,omitempty"`
	SpokenQuote string      `json:"spoken_quote,omitempty"`
	Confidence  float64     `json:"confidence"`
}

// AnalysisOutput is the payload the generation backend is asked to produce.
type AnalysisOutput struct {
	Summary       string         `json:"summary"`
	Hashtags      []string       `json:"hashtags"`
	Topics        []string       `json:"topics"`
	Chapters      []Chapter      `json:"chapters"`
	BrandMentions []BrandMention `json:"brand_mentions"`
}

// EmptyOutput returns a well-formed output with empty defaults, used whenever
// the upstream payload cannot be parsed or validated. Callers always get a
// complete data object.
func EmptyOutput() AnalysisOutput {
	return AnalysisOutput{
		Summary:       "",
		Hashtags:      []string{},
		Topics:        []string{},
		Chapters:      []Chapter{},
		BrandMentions: []BrandMention{},
	}
}

// Normalize replaces nil slices with empty ones so serialized envelopes carry
// [] instead of null.
func (o *AnalysisOutput) Normalize() {
	if o.Hashtags == nil {
		o.Hashtags = []string{}
	}
	if o.Topics == nil {
		o.Topics = []string{}
	}
	if o.Chapters == nil {
		o.Chapters = []Chapter{}
	}
	if o.BrandMentions == nil {
		o.BrandMentions = []BrandMention{}
	}
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const SchemaVersion = "brand_analysis.v1"

type Meta struct {
	Provider      string    `json:"provider"`
	Brand         string    `json:"brand"`
	VideoID       string    `json:"video_id"`
	IndexID       string    `json:"index_id,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	SchemaVersion string    `json:"schema_version"`
	TraceID       string    `json:"trace_id,omitempty"`
}

// Envelope is the stable result contract: data is always present and
// well-formed even when errors is non-empty.
type Envelope struct {
	Data   AnalysisOutput `json:"data"`
	Meta   Meta           `json:"meta"`
	Errors []ErrorDetail  `json:"errors"`
}

// Degraded reports whether the analysis recorded any upstream failure.
func (e *Envelope) Degraded() bool {
	return len(e.Errors) > 0
}

func (e *Envelope) Normalize() {
	e.Data.Normalize()
	if e.Errors == nil {
		e.Errors = []ErrorDetail{}
	}
}

// AnalysisRequest carries everything a single pipeline run needs. Immutable
// once built.
type AnalysisRequest struct {
	Brand       string         `json:"brand"`
	VideoID     string         `json:"video_id,omitempty"`
	YouTubeURL  string         `json:"youtube_url,omitempty"`
	VideoURL    string         `json:"video_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
}
