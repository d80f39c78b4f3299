package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"smartstudy/internal/extract"
	"smartstudy/internal/gateway"
	"smartstudy/internal/logger"
	"smartstudy/internal/models"
	"smartstudy/internal/session"
	"smartstudy/internal/store"
)

var ErrEmptyInput = errors.New("please enter or upload some text first")

// Study drives a quiz or flashcard session: it loads the persisted snapshot
// once, runs every action through the session transitions and saves after
// each one. The lock is not held while the gateway is called.
type Study struct {
	mu    sync.Mutex
	snap  session.Snapshot
	kind  session.Kind
	scope store.Scope

	store *store.SessionStore
	gw    gateway.Gateway
	seq   session.Sequencer
	rng   *rand.Rand
	log   logger.ILogger
}

type StudyOption func(*Study)

// WithRand fixes the shuffle source.
func WithRand(rng *rand.Rand) StudyOption {
	return func(s *Study) { s.rng = rng }
}

func NewQuiz(ctx context.Context, st *store.SessionStore, gw gateway.Gateway, log logger.ILogger, opts ...StudyOption) *Study {
	return newStudy(ctx, session.KindQuiz, store.ScopeQuiz, st, gw, log, opts)
}

func NewFlashcards(ctx context.Context, st *store.SessionStore, gw gateway.Gateway, log logger.ILogger, opts ...StudyOption) *Study {
	return newStudy(ctx, session.KindFlashcards, store.ScopeFlashcards, st, gw, log, opts)
}

func newStudy(ctx context.Context, kind session.Kind, scope store.Scope, st *store.SessionStore, gw gateway.Gateway, log logger.ILogger, opts []StudyOption) *Study {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Study{
		kind:  kind,
		scope: scope,
		store: st,
		gw:    gw,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}

	var saved session.Snapshot
	if st.Load(ctx, scope, &saved) {
		s.snap = session.Normalize(saved, kind)
	} else {
		s.snap = session.New(kind)
	}
	return s
}

func (s *Study) Kind() session.Kind {
	return s.kind
}

// Snapshot returns the current state. The result shares no memory with
// the service.
func (s *Study) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// commit installs next and writes it through. Must hold s.mu. A failed
// write is returned but the in-memory state is kept.
func (s *Study) commit(ctx context.Context, next session.Snapshot) error {
	s.snap = next
	return s.store.Save(ctx, s.scope, next)
}

// step applies a fallible transition.
func (s *Study) step(ctx context.Context, fn func(session.Snapshot) (session.Snapshot, error)) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.snap)
	if err != nil {
		return s.snap.Clone(), err
	}
	return next.Clone(), s.commit(ctx, next)
}

func (s *Study) uploadTypes() []string {
	if s.kind == session.KindFlashcards {
		return gateway.FlashcardTypes
	}
	return gateway.DocumentTypes
}

// Generate replaces the deck from the source text. For flashcards file is
// sent along with the text; for quizzes its text is imported first. Only
// the most recent call may apply its result; earlier ones finish with
// session.ErrStaleResult.
func (s *Study) Generate(ctx context.Context, file *gateway.Upload) (session.Snapshot, error) {
	if file != nil {
		if err := gateway.ValidateUpload(*file, s.uploadTypes()); err != nil {
			return s.Snapshot(), err
		}
		if s.kind == session.KindQuiz {
			if _, err := s.ImportFile(ctx, *file); err != nil {
				return s.Snapshot(), err
			}
			file = nil
		}
	}

	s.mu.Lock()
	text := s.snap.SourceText
	if strings.TrimSpace(text) == "" && file == nil {
		s.mu.Unlock()
		return s.Snapshot(), ErrEmptyInput
	}
	count, difficulty := s.snap.Count, s.snap.Difficulty
	ticket := s.seq.Next()
	if err := s.commit(ctx, session.BeginGenerate(s.snap)); err != nil {
		s.log.Warn("services", "could not persist loading state", map[string]interface{}{"scope": string(s.scope)})
	}
	s.mu.Unlock()

	var (
		items []models.StudyItem
		err   error
	)
	if s.kind == session.KindQuiz {
		items, err = s.gw.GenerateQuiz(ctx, text, count, difficulty)
	} else {
		items, err = s.gw.GenerateFlashcards(ctx, gateway.FlashcardRequest{Text: text, Count: count, File: file})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seq.IsLatest(ticket) {
		return s.snap.Clone(), session.ErrStaleResult
	}

	var next session.Snapshot
	switch {
	case err == nil:
		next = session.ApplyGenerated(s.snap, items)
	case IsEmptyResult(err):
		next = session.ApplyGenerated(s.snap, nil)
	default:
		next = session.FailGenerate(s.snap)
	}
	if err != nil {
		s.log.Warn("services", "generation failed", map[string]interface{}{
			"kind":  string(s.kind),
			"error": err.Error(),
		})
	}
	if saveErr := s.commit(ctx, next); saveErr != nil && err == nil {
		err = saveErr
	}
	return next.Clone(), err
}

// IsEmptyResult reports whether the backend answered successfully but with
// no items, with or without an explanatory message.
func IsEmptyResult(err error) bool {
	if errors.Is(err, gateway.ErrEmptyResult) {
		return true
	}
	apiErr, ok := gateway.AsAPIError(err)
	return ok && apiErr.Status == http.StatusOK
}

// ImportFile extracts text from an upload and makes it the source text.
// Plain text is read locally; documents go through the gateway.
func (s *Study) ImportFile(ctx context.Context, u gateway.Upload) (string, error) {
	if err := gateway.ValidateUpload(u, s.uploadTypes()); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	if extract.BaseType(u.MIME) == extract.MIMEText {
		text, err = extract.Text(u.MIME, u.Data)
	} else {
		text, err = s.gw.ExtractFileText(ctx, u)
	}
	if err != nil {
		return gateway.FallbackExtract, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return text, s.commit(ctx, session.SetSourceText(s.snap, text))
}

func (s *Study) SetSourceText(ctx context.Context, text string) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.SetSourceText(cur, text), nil
	})
}

func (s *Study) SetParams(ctx context.Context, count int, difficulty string) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.SetParams(cur, count, difficulty)
	})
}

func (s *Study) Advance(ctx context.Context) (session.Snapshot, error) {
	return s.step(ctx, session.Advance)
}

func (s *Study) Rewind(ctx context.Context) (session.Snapshot, error) {
	return s.step(ctx, session.Rewind)
}

func (s *Study) Shuffle(ctx context.Context) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.Shuffle(cur, s.rng)
	})
}

func (s *Study) SelectOption(ctx context.Context, index int, option string) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.SelectOption(cur, index, option)
	})
}

// AddOrEdit appends when index is nil, otherwise replaces in place.
func (s *Study) AddOrEdit(ctx context.Context, index *int, item models.StudyItem) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.AddOrEdit(cur, index, item)
	})
}

func (s *Study) Delete(ctx context.Context, index int) (session.Snapshot, error) {
	return s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		return session.Delete(cur, index)
	})
}

func (s *Study) Retake(ctx context.Context) (session.Snapshot, error) {
	return s.step(ctx, session.Retake)
}

func (s *Study) ShowScore(ctx context.Context) (session.Snapshot, session.Score, error) {
	var score session.Score
	snap, err := s.step(ctx, func(cur session.Snapshot) (session.Snapshot, error) {
		next, sc, err := session.ShowScore(cur)
		score = sc
		return next, err
	})
	return snap, score, err
}

// Hint returns the hint for question index, asking the backend once and
// caching the answer. A fallback hint is returned but not cached.
func (s *Study) Hint(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	if s.kind != session.KindQuiz {
		s.mu.Unlock()
		return "", session.ErrNotQuiz
	}
	if index < 0 || index >= len(s.snap.Items) {
		s.mu.Unlock()
		return "", session.ErrIndexOutOfRange
	}
	if h, ok := s.snap.Hints[index]; ok {
		s.mu.Unlock()
		return h, nil
	}
	item := s.snap.Items[index]
	sourceText := s.snap.SourceText
	s.mu.Unlock()

	hint, err := s.gw.GenerateHint(ctx, item.Prompt, sourceText)
	if err != nil {
		return hint, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sameItem(index, item) {
		return hint, nil
	}
	next, err := session.SetHint(s.snap, index, hint)
	if err != nil {
		return hint, err
	}
	return hint, s.commit(ctx, next)
}

// Explain returns the explanation for an answered question, cached like
// Hint.
func (s *Study) Explain(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	if s.kind != session.KindQuiz {
		s.mu.Unlock()
		return "", session.ErrNotQuiz
	}
	if index < 0 || index >= len(s.snap.Items) {
		s.mu.Unlock()
		return "", session.ErrIndexOutOfRange
	}
	fb, answered := s.snap.Feedback[index]
	if !answered {
		s.mu.Unlock()
		return "", session.ErrNotAnswered
	}
	if e, ok := s.snap.Explanations[index]; ok {
		s.mu.Unlock()
		return e, nil
	}
	item := s.snap.Items[index]
	req := models.ExplainRequest{
		Question:      item.Prompt,
		CorrectAnswer: item.AnswerKey,
		UserAnswer:    fb.Selected,
		Context:       s.snap.SourceText,
	}
	s.mu.Unlock()

	explanation, err := s.gw.ExplainAnswer(ctx, req)
	if err != nil {
		return explanation, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sameItem(index, item) {
		return explanation, nil
	}
	next, err := session.SetExplanation(s.snap, index, explanation)
	if err != nil {
		return explanation, err
	}
	return explanation, s.commit(ctx, next)
}

// sameItem reports whether the deck still holds item at index, i.e. it was
// not regenerated or edited while a request was in flight.
func (s *Study) sameItem(index int, item models.StudyItem) bool {
	if index >= len(s.snap.Items) {
		return false
	}
	cur := s.snap.Items[index]
	return cur.Prompt == item.Prompt && cur.AnswerKey == item.AnswerKey
}

// Reset discards the session and its persisted snapshot.
func (s *Study) Reset(ctx context.Context) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.Next()
	s.snap = session.New(s.kind)
	return s.snap.Clone(), s.store.Clear(ctx, s.scope)
}
