package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"smartstudy/internal/export"
	"smartstudy/internal/gateway"
	"smartstudy/internal/logger"
	"smartstudy/internal/models"
	"smartstudy/internal/session"
	"smartstudy/internal/store"
)

var ErrInvalidStyle = errors.New("unknown summary style")

// Summary keeps the text, chosen style and last summary of the summarizer.
type Summary struct {
	mu    sync.Mutex
	snap  models.SummarySnapshot
	store *store.SessionStore
	gw    gateway.Gateway
	seq   session.Sequencer
	log   logger.ILogger
}

func NewSummary(ctx context.Context, st *store.SessionStore, gw gateway.Gateway, log logger.ILogger) *Summary {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Summary{store: st, gw: gw, log: log}
	st.Load(ctx, store.ScopeSummary, &s.snap)
	if !models.IsSummaryStyle(s.snap.Style) {
		s.snap.Style = models.StyleConcise
	}
	return s
}

func (s *Summary) Snapshot() models.SummarySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Summary) commit(ctx context.Context, next models.SummarySnapshot) error {
	s.snap = next
	return s.store.Save(ctx, store.ScopeSummary, next)
}

func (s *Summary) SetText(ctx context.Context, text string) (models.SummarySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	next.TextInput = text
	return next, s.commit(ctx, next)
}

func (s *Summary) SetStyle(ctx context.Context, style string) (models.SummarySnapshot, error) {
	if !models.IsSummaryStyle(style) {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	next.Style = style
	return next, s.commit(ctx, next)
}

// Generate summarises the current text in the current style. On failure
// the previous summary is kept and the fallback message is returned with
// the error.
func (s *Summary) Generate(ctx context.Context) (string, error) {
	s.mu.Lock()
	text, style := s.snap.TextInput, s.snap.Style
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	ticket := s.seq.Next()
	out, err := s.gw.GenerateSummary(ctx, text, style)
	if err != nil {
		s.log.Warn("services", "summary failed", map[string]interface{}{"error": err.Error()})
		return out, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.IsLatest(ticket) {
		return out, session.ErrStaleResult
	}
	next := s.snap
	next.Summary = out
	return out, s.commit(ctx, next)
}

// ImportFile replaces the text with the content of a PDF or DOCX upload.
func (s *Summary) ImportFile(ctx context.Context, u gateway.Upload) (string, error) {
	if err := gateway.ValidateUpload(u, gateway.DocumentTypes); err != nil {
		return "", err
	}
	text, err := s.gw.ExtractFileText(ctx, u)
	if err != nil {
		return text, err
	}
	_, err = s.SetText(ctx, text)
	return text, err
}

// PDF renders the current summary.
func (s *Summary) PDF() ([]byte, error) {
	return export.SummaryPDF(s.Snapshot().Summary)
}

func (s *Summary) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.Next()
	s.snap = models.SummarySnapshot{Style: models.StyleConcise}
	return s.store.Clear(ctx, store.ScopeSummary)
}
