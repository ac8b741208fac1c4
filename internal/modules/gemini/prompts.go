package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Disclaimer is the fixed warning attached to every report insight when the
// model omits its own.
const Disclaimer = "For education and understanding only — consult your doctor for treatment."

const (
	// vitalsJSONBudget caps the serialized vitals snapshot embedded in the prompt.
	vitalsJSONBudget = 6000
	// degradedSummaryBudget caps the raw-text summary used when the model
	// response cannot be parsed.
	degradedSummaryBudget = 3000
)

const reportPromptTemplate = `You are a medical report summarizer. Analyze the provided content and return a strict JSON object with keys:
{
  "languageSummaries": {"en": string, "roman": string},
  "highlights": [{"key": string, "value": string, "flag": "high"|"low"|"normal"|"unknown"}],
  "doctorQuestions": [string, string, string],
  "dietTips": [string, string, string],
  "warnings": ["%s"]
}
- english summary: simple, 5-7 lines, include key abnormalities.
- roman urdu: accurate, easy-to-understand.
- highlights: only important lab/vital values that look abnormal or noteworthy.
- keep JSON valid, no extra commentary.`

const vitalsPromptTemplate = `You are a medical assistant. Analyze the following patient's vitals JSON and return STRICT JSON with keys:
{
  "languageSummaries": {"en": string, "roman": string},
  "assessment": string,
  "alerts": [{"key": string, "status": "high"|"low"|"normal"|"unknown", "reason": string}],
  "advice": [string],
  "followupQuestions": [string]
}
- english summary: simple, 4-6 lines, friendly.
- roman urdu: accurate, easy to read.
- keep JSON valid. No extra commentary.`

// buildReportPrompt renders the report analysis instruction. Pure.
func buildReportPrompt(title string) string {
	prompt := fmt.Sprintf(reportPromptTemplate, Disclaimer)
	if strings.TrimSpace(title) != "" {
		prompt += "\nReport Title: " + title
	}
	return prompt
}

// buildVitalsPrompt renders the vitals analysis instruction with the values
// snapshot embedded, truncated to a fixed budget. Pure.
func buildVitalsPrompt(title string, values map[string]interface{}) string {
	if values == nil {
		values = map[string]interface{}{}
	}
	snapshot, err := json.Marshal(values)
	if err != nil {
		snapshot = []byte("{}")
	}

	var b strings.Builder
	b.WriteString(vitalsPromptTemplate)
	b.WriteString("\n")
	if strings.TrimSpace(title) != "" {
		b.WriteString("Context Title: " + title + "\n")
	}
	b.WriteString("Vitals JSON:\n")
	b.WriteString(truncateText(string(snapshot), vitalsJSONBudget))
	return b.String()
}

// truncateText cuts text to maxLen runes without splitting a multibyte character.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
