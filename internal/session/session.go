// Package session holds the study-session state machine shared by quizzes
// and flashcards. Every transition takes a Snapshot by value and returns the
// next one; inputs are never mutated.
package session

import (
	"errors"
	"sort"

	"smartstudy/internal/models"
)

type Kind string

const (
	KindQuiz       Kind = "quiz"
	KindFlashcards Kind = "flashcards"
)

type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateScored  State = "scored"
)

const (
	DefaultCount      = 5
	MaxCount          = 50
	DefaultDifficulty = "medium"
)

var Difficulties = []string{"easy", "medium", "hard"}

var (
	ErrNotReady        = errors.New("session has no deck to work on")
	ErrNotQuiz         = errors.New("operation is only valid for quizzes")
	ErrIndexOutOfRange = errors.New("item index out of range")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNotAnswered     = errors.New("question has not been answered yet")
	ErrInvalidOption   = errors.New("option is not one of the question's options")
	ErrInvalidItem     = errors.New("item is missing a prompt or its answer is not among its options")
	ErrInvalidParams   = errors.New("invalid generation parameters")
	ErrStaleResult     = errors.New("a newer generation request superseded this one")
)

// Snapshot is the persisted projection of one study session.
type Snapshot struct {
	Kind         Kind                    `json:"kind"`
	State        State                   `json:"state"`
	Items        []models.StudyItem      `json:"items"`
	CurrentIndex int                     `json:"currentIndex"`
	Known        KnownSet                `json:"known"`
	Feedback     map[int]models.Feedback `json:"feedback"`
	Hints        map[int]string          `json:"hints"`
	Explanations map[int]string          `json:"explanations"`
	Count        int                     `json:"count"`
	Difficulty   string                  `json:"difficulty"`
	SourceText   string                  `json:"sourceText"`

	// resume is the state to fall back to when a generation fails.
	resume State
}

// Score is the quiz result shown in the Scored state.
type Score struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

// New returns the freshly initialised Empty session of the given kind.
func New(kind Kind) Snapshot {
	return Normalize(Snapshot{}, kind)
}

// Normalize applies field defaults to a snapshot read back from storage and
// repairs anything a stale or hand-edited document could break.
func Normalize(s Snapshot, kind Kind) Snapshot {
	s = s.clone()
	s.Kind = kind

	if s.Items == nil {
		s.Items = []models.StudyItem{}
	}
	renumber(s.Items)

	if s.Count <= 0 {
		s.Count = DefaultCount
	}
	if s.Count > MaxCount {
		s.Count = MaxCount
	}
	if !validDifficulty(s.Difficulty) {
		s.Difficulty = DefaultDifficulty
	}

	n := len(s.Items)
	s.Known = s.Known.within(n)
	s.Feedback = trimFeedback(s.Feedback, n)
	s.Hints = trimStrings(s.Hints, n)
	s.Explanations = trimStrings(s.Explanations, n)
	if kind != KindQuiz {
		s.Feedback = map[int]models.Feedback{}
		s.Hints = map[int]string{}
		s.Explanations = map[int]string{}
	}

	switch {
	case n == 0:
		s.State = StateEmpty
	case s.State == StateScored && kind == KindQuiz:
	default:
		s.State = StateReady
	}
	s.resume = ""
	s.CurrentIndex = clampIndex(s.CurrentIndex, n)
	return s
}

func (s Snapshot) Len() int { return len(s.Items) }

// Current returns the item under the cursor.
func (s Snapshot) Current() (models.StudyItem, bool) {
	if len(s.Items) == 0 {
		return models.StudyItem{}, false
	}
	return s.Items[s.CurrentIndex], true
}

// Answered counts quiz questions with recorded feedback.
func (s Snapshot) Answered() int {
	return len(s.Feedback)
}

// KnownPercent is the rounded share of cards marked known.
func (s Snapshot) KnownPercent() int {
	if len(s.Items) == 0 {
		return 0
	}
	return (len(s.Known)*200 + len(s.Items)) / (2 * len(s.Items))
}

func (s Snapshot) navigable() bool {
	return (s.State == StateReady || s.State == StateScored) && len(s.Items) > 0
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return s.clone()
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Items != nil {
		out.Items = make([]models.StudyItem, len(s.Items))
		for i, it := range s.Items {
			if it.Options != nil {
				it.Options = append([]string(nil), it.Options...)
			}
			out.Items[i] = it
		}
	}
	out.Known = append(KnownSet{}, s.Known...)
	if s.Feedback != nil {
		out.Feedback = make(map[int]models.Feedback, len(s.Feedback))
		for k, v := range s.Feedback {
			out.Feedback[k] = v
		}
	}
	out.Hints = copyStrings(s.Hints)
	out.Explanations = copyStrings(s.Explanations)
	return out
}

func copyStrings(m map[int]string) map[int]string {
	if m == nil {
		return nil
	}
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func trimFeedback(m map[int]models.Feedback, n int) map[int]models.Feedback {
	out := make(map[int]models.Feedback, len(m))
	for k, v := range m {
		if k >= 0 && k < n {
			out[k] = v
		}
	}
	return out
}

func trimStrings(m map[int]string, n int) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		if k >= 0 && k < n {
			out[k] = v
		}
	}
	return out
}

func renumber(items []models.StudyItem) {
	for i := range items {
		items[i].ID = i
	}
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func validDifficulty(d string) bool {
	for _, v := range Difficulties {
		if v == d {
			return true
		}
	}
	return false
}

// KnownSet is a sorted set of item indices.
type KnownSet []int

func (k KnownSet) Has(i int) bool {
	j := sort.SearchInts(k, i)
	return j < len(k) && k[j] == i
}

// With returns a copy that contains i.
func (k KnownSet) With(i int) KnownSet {
	if k.Has(i) {
		return append(KnownSet{}, k...)
	}
	out := append(append(KnownSet(nil), k...), i)
	sort.Ints(out)
	return out
}

// without removes i and shifts every larger index down by one, so the set
// keeps pointing at the same items after a deletion.
func (k KnownSet) without(i int) KnownSet {
	out := make(KnownSet, 0, len(k))
	for _, v := range k {
		switch {
		case v < i:
			out = append(out, v)
		case v > i:
			out = append(out, v-1)
		}
	}
	return out
}

func (k KnownSet) within(n int) KnownSet {
	out := make(KnownSet, 0, len(k))
	for _, v := range k {
		if v >= 0 && v < n {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	// dedupe
	w := 0
	for r := range out {
		if r == 0 || out[r] != out[r-1] {
			out[w] = out[r]
			w++
		}
	}
	return out[:w]
}
