// Package store persists feature session snapshots as JSON documents keyed
// by profile and scope.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"smartstudy/internal/logger"
)

// Scope names one feature's snapshot.
type Scope string

const (
	ScopeQuiz       Scope = "quiz-state"
	ScopeFlashcards Scope = "flashcards-state"
	ScopeSummary    Scope = "summary-state"
	ScopeChat       Scope = "chatbot-messages"
)

// Storage is the raw key-value capability a SessionStore writes through.
// Get reports ok=false for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Notifier is told about every successful save.
type Notifier interface {
	SnapshotSaved(ctx context.Context, profile string, scope Scope)
}

type SessionStore struct {
	backend  Storage
	profile  string
	notifier Notifier
	log      logger.ILogger
}

func NewSessionStore(backend Storage, profile string, log logger.ILogger) *SessionStore {
	if profile == "" {
		profile = "default"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SessionStore{backend: backend, profile: profile, log: log}
}

func (s *SessionStore) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *SessionStore) Profile() string {
	return s.profile
}

func (s *SessionStore) key(scope Scope) string {
	return s.profile + ":" + string(scope)
}

// Save overwrites the scope with the JSON encoding of snapshot.
func (s *SessionStore) Save(ctx context.Context, scope Scope, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", scope, err)
	}
	if err := s.backend.Set(ctx, s.key(scope), string(data)); err != nil {
		s.log.Error("store", "snapshot write failed", map[string]interface{}{
			"scope": string(scope),
			"error": err.Error(),
		})
		return fmt.Errorf("failed to write %s snapshot: %w", scope, err)
	}
	if s.notifier != nil {
		s.notifier.SnapshotSaved(ctx, s.profile, scope)
	}
	return nil
}

// Load decodes the scope into dst, which must be a non-nil pointer. It
// reports false on a missing key, a storage failure, malformed JSON or a
// shape that does not fit dst; dst is left untouched in that case.
func (s *SessionStore) Load(ctx context.Context, scope Scope, dst interface{}) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return false
	}

	raw, ok, err := s.backend.Get(ctx, s.key(scope))
	if err != nil {
		s.log.Warn("store", "snapshot read failed, using defaults", map[string]interface{}{
			"scope": string(scope),
			"error": err.Error(),
		})
		return false
	}
	if !ok {
		return false
	}

	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(raw), tmp.Interface()); err != nil {
		s.log.Warn("store", "snapshot is corrupt, using defaults", map[string]interface{}{
			"scope": string(scope),
			"error": err.Error(),
		})
		return false
	}
	rv.Elem().Set(tmp.Elem())
	return true
}

// Clear removes the scope.
func (s *SessionStore) Clear(ctx context.Context, scope Scope) error {
	if err := s.backend.Delete(ctx, s.key(scope)); err != nil {
		return fmt.Errorf("failed to clear %s snapshot: %w", scope, err)
	}
	if s.notifier != nil {
		s.notifier.SnapshotSaved(ctx, s.profile, scope)
	}
	return nil
}
