package gemini

import (
	"encoding/json"

	"github.com/healthmate/core/internal/models"
)

// ReportInsight is the normalized result of a report analysis. Every field is
// always present after normalization; arrays are empty rather than nil.
type ReportInsight struct {
	LanguageSummaries models.LanguageSummaries  `json:"languageSummaries"`
	Highlights        []models.InsightHighlight `json:"highlights"`
	DoctorQuestions   []string                  `json:"doctorQuestions"`
	DietTips          []string                  `json:"dietTips"`
	Warnings          []string                  `json:"warnings"`
}

// VitalsInsight is the normalized result of a vitals analysis.
type VitalsInsight struct {
	LanguageSummaries models.LanguageSummaries `json:"languageSummaries"`
	Assessment        string                   `json:"assessment"`
	Alerts            []models.VitalsAlert     `json:"alerts"`
	Advice            []string                 `json:"advice"`
	FollowupQuestions []string                 `json:"followupQuestions"`
}

// AnalyzeFileInput describes one report file to analyze.
type AnalyzeFileInput struct {
	FileURL      string
	FilePublicID string
	FileType     string // "pdf" | "image"
	Title        string
}

// AnalyzeVitalsInput describes one vitals snapshot to analyze.
type AnalyzeVitalsInput struct {
	Values map[string]interface{}
	Title  string
}

// ReportResult pairs the normalized report insight with the verbatim upstream
// response for auditing.
type ReportResult struct {
	Insight ReportInsight
	Raw     json.RawMessage
}

// VitalsResult pairs the normalized vitals insight with the verbatim upstream
// response.
type VitalsResult struct {
	Insight VitalsInsight
	Raw     json.RawMessage
}

// wire types for the generateContent API

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateContent struct {
	Role  string         `json:"role"`
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"topK"`
	TopP        float64 `json:"topP"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Text returns the first candidate's first text part, or "".
func (r *generateResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}
