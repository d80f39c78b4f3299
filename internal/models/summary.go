package models

// Summary styles understood by the backend.
const (
	StyleConcise    = "concise"
	StyleDetailed   = "detailed"
	StyleNumbered   = "numbered"
	StyleSimplified = "simplified"
)

var SummaryStyles = []string{StyleConcise, StyleDetailed, StyleNumbered, StyleSimplified}

func IsSummaryStyle(s string) bool {
	for _, v := range SummaryStyles {
		if v == s {
			return true
		}
	}
	return false
}

// SummarySnapshot is the persisted state of the summary feature.
type SummarySnapshot struct {
	TextInput string `json:"textInput"`
	Style     string `json:"style"`
	Summary   string `json:"summary"`
}

type GenerateSummaryRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type GenerateSummaryResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error,omitempty"`
}

type ExtractTextResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}
