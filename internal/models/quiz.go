package models

import "encoding/json"

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

func (q QuizQuestion) ToItem(id int) StudyItem {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return StudyItem{
		ID:        id,
		Prompt:    q.Question,
		AnswerKey: q.CorrectAnswer,
		Options:   opts,
	}
}

type GenerateQuizRequest struct {
	Text       string `json:"text"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

// GenerateQuizResponse keeps the quiz field raw so a missing or non-array
// value can be told apart from a malformed body.
type GenerateQuizResponse struct {
	Quiz  json.RawMessage `json:"quiz"`
	Error string          `json:"error,omitempty"`
}

type HintRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type HintResponse struct {
	Hint  string `json:"hint"`
	Error string `json:"error,omitempty"`
}

type ExplainRequest struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
	Context       string `json:"context"`
}

type ExplainResponse struct {
	Explanation string `json:"explanation"`
	Error       string `json:"error,omitempty"`
}
