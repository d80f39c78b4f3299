package models

// StudyItem is one quiz question or flashcard in a deck. ID is the item's
// ordinal position and is renumbered whenever the deck changes shape.
type StudyItem struct {
	ID          int      `json:"id"`
	Prompt      string   `json:"prompt"`
	AnswerKey   string   `json:"answerKey"`
	Options     []string `json:"options"`
	Hint        string   `json:"hint,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// HasOption reports whether opt is one of the item's options.
func (it StudyItem) HasOption(opt string) bool {
	for _, o := range it.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Valid checks the option invariant: when options are present the answer
// key must be one of them.
func (it StudyItem) Valid() bool {
	if it.Prompt == "" {
		return false
	}
	if len(it.Options) == 0 {
		return true
	}
	return it.HasOption(it.AnswerKey)
}

// Feedback is the recorded answer for a quiz item.
type Feedback struct {
	Selected  string `json:"selected"`
	Correct   string `json:"correct"`
	IsCorrect bool   `json:"isCorrect"`
}
