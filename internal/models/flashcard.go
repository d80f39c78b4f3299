package models

import "encoding/json"

type Flashcard struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Hint        string `json:"hint"`
	Explanation string `json:"explanation"`
}

func (c Flashcard) ToItem(id int) StudyItem {
	return StudyItem{
		ID:          id,
		Prompt:      c.Question,
		AnswerKey:   c.Answer,
		Hint:        c.Hint,
		Explanation: c.Explanation,
	}
}

// FlashcardFromItem is the inverse of ToItem; options are not part of a card.
func FlashcardFromItem(it StudyItem) Flashcard {
	return Flashcard{
		Question:    it.Prompt,
		Answer:      it.AnswerKey,
		Hint:        it.Hint,
		Explanation: it.Explanation,
	}
}

type GenerateFlashcardsResponse struct {
	Flashcards json.RawMessage `json:"flashcards"`
	Error      string          `json:"error,omitempty"`
}
