package session

import (
	"fmt"
	"math/rand/v2"

	"smartstudy/internal/models"
)

// BeginGenerate marks a generation as in flight.
func BeginGenerate(s Snapshot) Snapshot {
	out := s.clone()
	if s.State != StateLoading {
		out.resume = s.State
	}
	out.State = StateLoading
	return out
}

// ApplyGenerated replaces the deck wholesale. Items that break the item
// invariant are dropped; an empty result leaves the session Empty.
func ApplyGenerated(s Snapshot, items []models.StudyItem) Snapshot {
	out := s.clone()
	out.Items = make([]models.StudyItem, 0, len(items))
	for _, it := range items {
		if it.Valid() {
			if it.Options != nil {
				it.Options = append([]string(nil), it.Options...)
			}
			out.Items = append(out.Items, it)
		}
	}
	renumber(out.Items)

	out.CurrentIndex = 0
	out.Known = KnownSet{}
	out.Feedback = map[int]models.Feedback{}
	out.Hints = map[int]string{}
	out.Explanations = map[int]string{}
	out.resume = ""
	if len(out.Items) == 0 {
		out.State = StateEmpty
	} else {
		out.State = StateReady
	}
	return out
}

// FailGenerate puts the session back in the state it had before
// BeginGenerate; the deck is untouched. A deck that gained items while
// loading is never left Empty.
func FailGenerate(s Snapshot) Snapshot {
	out := s.clone()
	out.State = out.resume
	out.resume = ""
	switch {
	case len(out.Items) == 0:
		out.State = StateEmpty
	case out.State != StateReady && out.State != StateScored:
		out.State = StateReady
	}
	return out
}

// Advance moves the cursor forward, wrapping from last to first. For
// flashcards the card being left is marked known.
func Advance(s Snapshot) (Snapshot, error) {
	return move(s, 1)
}

// Rewind moves the cursor back, wrapping from first to last.
func Rewind(s Snapshot) (Snapshot, error) {
	return move(s, -1)
}

func move(s Snapshot, step int) (Snapshot, error) {
	if !s.navigable() {
		return s, ErrNotReady
	}
	out := s.clone()
	if out.Kind == KindFlashcards {
		out.Known = out.Known.With(out.CurrentIndex)
	}
	n := len(out.Items)
	out.CurrentIndex = ((out.CurrentIndex+step)%n + n) % n
	return out, nil
}

// Shuffle permutes the deck uniformly (Fisher-Yates) and resets all
// progress tied to positions.
func Shuffle(s Snapshot, rng *rand.Rand) (Snapshot, error) {
	if !s.navigable() {
		return s, ErrNotReady
	}
	out := s.clone()
	for i := len(out.Items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out.Items[i], out.Items[j] = out.Items[j], out.Items[i]
	}
	renumber(out.Items)
	out.CurrentIndex = 0
	out.Known = KnownSet{}
	out.Feedback = map[int]models.Feedback{}
	out.Hints = map[int]string{}
	out.Explanations = map[int]string{}
	if out.State == StateScored {
		out.State = StateReady
	}
	return out, nil
}

// SelectOption records the answer for question i. Feedback is written once;
// later selections for the same question are rejected.
func SelectOption(s Snapshot, i int, option string) (Snapshot, error) {
	if s.Kind != KindQuiz {
		return s, ErrNotQuiz
	}
	if !s.navigable() {
		return s, ErrNotReady
	}
	if i < 0 || i >= len(s.Items) {
		return s, ErrIndexOutOfRange
	}
	if _, ok := s.Feedback[i]; ok {
		return s, ErrAlreadyAnswered
	}
	item := s.Items[i]
	if !item.HasOption(option) {
		return s, fmt.Errorf("%w: %q", ErrInvalidOption, option)
	}

	out := s.clone()
	if out.Feedback == nil {
		out.Feedback = map[int]models.Feedback{}
	}
	out.Feedback[i] = models.Feedback{
		Selected:  option,
		Correct:   item.AnswerKey,
		IsCorrect: option == item.AnswerKey,
	}
	return out, nil
}

// AddOrEdit appends item when i is nil and moves the cursor onto it;
// otherwise it replaces the item at *i in place and forgets the answer,
// hint and explanation recorded for it.
func AddOrEdit(s Snapshot, i *int, item models.StudyItem) (Snapshot, error) {
	if !item.Valid() || (s.Kind == KindQuiz && len(item.Options) == 0) {
		return s, ErrInvalidItem
	}
	if i != nil && (*i < 0 || *i >= len(s.Items)) {
		return s, ErrIndexOutOfRange
	}

	out := s.clone()
	if item.Options != nil {
		item.Options = append([]string(nil), item.Options...)
	}
	if i == nil {
		item.ID = len(out.Items)
		out.Items = append(out.Items, item)
		out.CurrentIndex = len(out.Items) - 1
	} else {
		item.ID = *i
		out.Items[*i] = item
		delete(out.Feedback, *i)
		delete(out.Hints, *i)
		delete(out.Explanations, *i)
	}
	if out.State == StateEmpty {
		out.State = StateReady
	}
	return out, nil
}

// Delete removes item i and clamps the cursor. Known indices and the
// per-question maps above i are renumbered so they keep following their
// items.
func Delete(s Snapshot, i int) (Snapshot, error) {
	if i < 0 || i >= len(s.Items) {
		return s, ErrIndexOutOfRange
	}
	out := s.clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	renumber(out.Items)

	out.Known = out.Known.without(i)
	out.Feedback = shiftFeedback(out.Feedback, i)
	out.Hints = shiftStrings(out.Hints, i)
	out.Explanations = shiftStrings(out.Explanations, i)

	n := len(out.Items)
	if out.CurrentIndex >= n {
		out.CurrentIndex = n - 1
	}
	out.CurrentIndex = clampIndex(out.CurrentIndex, n)
	if n == 0 && out.State != StateLoading {
		out.State = StateEmpty
	}
	return out, nil
}

func shiftFeedback(m map[int]models.Feedback, i int) map[int]models.Feedback {
	out := make(map[int]models.Feedback, len(m))
	for k, v := range m {
		switch {
		case k < i:
			out[k] = v
		case k > i:
			out[k-1] = v
		}
	}
	return out
}

func shiftStrings(m map[int]string, i int) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		switch {
		case k < i:
			out[k] = v
		case k > i:
			out[k-1] = v
		}
	}
	return out
}

// ShowScore moves a quiz to Scored and counts correct answers against the
// deck length.
func ShowScore(s Snapshot) (Snapshot, Score, error) {
	if s.Kind != KindQuiz {
		return s, Score{}, ErrNotQuiz
	}
	if !s.navigable() {
		return s, Score{}, ErrNotReady
	}
	out := s.clone()
	out.State = StateScored
	return out, ScoreOf(out), nil
}

// ScoreOf computes the score without changing state.
func ScoreOf(s Snapshot) Score {
	sc := Score{Total: len(s.Items)}
	for _, fb := range s.Feedback {
		if fb.IsCorrect {
			sc.Correct++
		}
	}
	if sc.Total > 0 {
		sc.Fraction = float64(sc.Correct) / float64(sc.Total)
	}
	return sc
}

// Retake clears answers, hints and explanations but keeps the deck and
// the known set.
func Retake(s Snapshot) (Snapshot, error) {
	if !s.navigable() {
		return s, ErrNotReady
	}
	out := s.clone()
	out.Feedback = map[int]models.Feedback{}
	out.Hints = map[int]string{}
	out.Explanations = map[int]string{}
	out.State = StateReady
	return out, nil
}

func SetHint(s Snapshot, i int, hint string) (Snapshot, error) {
	if s.Kind != KindQuiz {
		return s, ErrNotQuiz
	}
	if i < 0 || i >= len(s.Items) {
		return s, ErrIndexOutOfRange
	}
	out := s.clone()
	if out.Hints == nil {
		out.Hints = map[int]string{}
	}
	out.Hints[i] = hint
	return out, nil
}

// SetExplanation stores the explanation for an answered question.
func SetExplanation(s Snapshot, i int, explanation string) (Snapshot, error) {
	if s.Kind != KindQuiz {
		return s, ErrNotQuiz
	}
	if i < 0 || i >= len(s.Items) {
		return s, ErrIndexOutOfRange
	}
	if _, ok := s.Feedback[i]; !ok {
		return s, ErrNotAnswered
	}
	out := s.clone()
	if out.Explanations == nil {
		out.Explanations = map[int]string{}
	}
	out.Explanations[i] = explanation
	return out, nil
}

// SetParams sets the count and difficulty used by the next generation. An
// empty difficulty means the default.
func SetParams(s Snapshot, count int, difficulty string) (Snapshot, error) {
	if count < 1 || count > MaxCount {
		return s, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidParams, MaxCount)
	}
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	if !validDifficulty(difficulty) {
		return s, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidParams, difficulty)
	}
	out := s.clone()
	out.Count = count
	out.Difficulty = difficulty
	return out, nil
}

func SetSourceText(s Snapshot, text string) Snapshot {
	out := s.clone()
	out.SourceText = text
	return out
}
