package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/healthmate/core/internal/models"
)

// NormalizeReport parses model text output into a report insight. Valid JSON
// is merged over defaults field by field; anything unparseable degrades to a
// raw-text summary. Pure, never returns an error.
func NormalizeReport(text string) ReportInsight {
	out := ReportInsight{
		LanguageSummaries: models.LanguageSummaries{},
		Highlights:        []models.InsightHighlight{},
		DoctorQuestions:   []string{},
		DietTips:          []string{},
		Warnings:          []string{Disclaimer},
	}

	var parsed struct {
		LanguageSummaries *models.LanguageSummaries `json:"languageSummaries"`
		Highlights        []models.InsightHighlight `json:"highlights"`
		DoctorQuestions   []string                  `json:"doctorQuestions"`
		DietTips          []string                  `json:"dietTips"`
		Warnings          []string                  `json:"warnings"`
	}
	if err := unmarshalModelJSON(text, &parsed); err != nil {
		out.LanguageSummaries.En = truncateText(text, degradedSummaryBudget)
		return out
	}

	if parsed.LanguageSummaries != nil {
		out.LanguageSummaries = *parsed.LanguageSummaries
	}
	for _, h := range parsed.Highlights {
		h.Flag = normalizeFlag(h.Flag)
		out.Highlights = append(out.Highlights, h)
	}
	if parsed.DoctorQuestions != nil {
		out.DoctorQuestions = parsed.DoctorQuestions
	}
	if parsed.DietTips != nil {
		out.DietTips = parsed.DietTips
	}
	if len(parsed.Warnings) > 0 {
		out.Warnings = parsed.Warnings
	}
	return out
}

// NormalizeVitals parses model text output into a vitals insight, with the
// same defaulting and degradation rules as NormalizeReport.
func NormalizeVitals(text string) VitalsInsight {
	out := VitalsInsight{
		LanguageSummaries: models.LanguageSummaries{},
		Alerts:            []models.VitalsAlert{},
		Advice:            []string{},
		FollowupQuestions: []string{},
	}

	var parsed struct {
		LanguageSummaries *models.LanguageSummaries `json:"languageSummaries"`
		Assessment        string                    `json:"assessment"`
		Alerts            []models.VitalsAlert      `json:"alerts"`
		Advice            []string                  `json:"advice"`
		FollowupQuestions []string                  `json:"followupQuestions"`
	}
	if err := unmarshalModelJSON(text, &parsed); err != nil {
		out.LanguageSummaries.En = truncateText(text, degradedSummaryBudget)
		return out
	}

	if parsed.LanguageSummaries != nil {
		out.LanguageSummaries = *parsed.LanguageSummaries
	}
	out.Assessment = parsed.Assessment
	for _, a := range parsed.Alerts {
		a.Status = normalizeFlag(a.Status)
		out.Alerts = append(out.Alerts, a)
	}
	if parsed.Advice != nil {
		out.Advice = parsed.Advice
	}
	if parsed.FollowupQuestions != nil {
		out.FollowupQuestions = parsed.FollowupQuestions
	}
	return out
}

// normalizeFlag clamps severity values to the allowed set.
func normalizeFlag(flag string) string {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case models.FlagHigh:
		return models.FlagHigh
	case models.FlagLow:
		return models.FlagLow
	case models.FlagNormal:
		return models.FlagNormal
	default:
		return models.FlagUnknown
	}
}

// unmarshalModelJSON tolerates markdown code fences and leading/trailing
// commentary around the JSON object, since models ignore "no fences"
// instructions often enough to matter.
func unmarshalModelJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("invalid JSON in model response")
}
