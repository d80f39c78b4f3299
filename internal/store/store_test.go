package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstudy/internal/database"
	"smartstudy/internal/logger"
)

type sample struct {
	Items   []string       `json:"items"`
	Index   int            `json:"index"`
	Answers map[int]string `json:"answers"`
}

type recordingNotifier struct {
	mu     sync.Mutex
	scopes []Scope
}

func (n *recordingNotifier) SnapshotSaved(_ context.Context, _ string, scope Scope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scopes = append(n.scopes, scope)
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingStorage) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingStorage) Delete(context.Context, string) error      { return errors.New("disk on fire") }

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	out := map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fs,
		"redis":  NewRedisStorage(rc),
	}

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		ctx := context.Background()
		pool, err := database.NewPostgresPool(ctx, url)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		require.NoError(t, database.RunMigrations(ctx, pool, logger.NewNop()))
		_, err = pool.Exec(ctx, `DELETE FROM session_snapshots WHERE key LIKE 'storetest:%'`)
		require.NoError(t, err)
		out["postgres"] = NewPostgresStorage(pool)
	}
	return out
}

func TestSessionStore_RoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewSessionStore(backend, "storetest", nil)

			in := sample{Items: []string{"a", "b"}, Index: 1, Answers: map[int]string{0: "x"}}
			require.NoError(t, s.Save(ctx, ScopeQuiz, in))

			var out sample
			require.True(t, s.Load(ctx, ScopeQuiz, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestSessionStore_MissingKey(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewSessionStore(backend, "storetest", nil)
			out := sample{Index: 7}
			assert.False(t, s.Load(context.Background(), ScopeFlashcards, &out))
			assert.Equal(t, 7, out.Index, "dst must be untouched")
		})
	}
}

func TestSessionStore_ClearRemovesScope(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewSessionStore(backend, "storetest", nil)
			require.NoError(t, s.Save(ctx, ScopeChat, []string{"hi"}))
			require.NoError(t, s.Clear(ctx, ScopeChat))

			var out []string
			assert.False(t, s.Load(ctx, ScopeChat, &out))
		})
	}
}

func TestSessionStore_CorruptSnapshotFallsBack(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(ctx, "default:quiz-state", "{not json"))
	require.NoError(t, mem.Set(ctx, "default:summary-state", `{"items":"wrong shape"}`))

	s := NewSessionStore(mem, "", nil)
	var out sample
	assert.False(t, s.Load(ctx, ScopeQuiz, &out))
	assert.False(t, s.Load(ctx, ScopeSummary, &out))
	assert.Equal(t, sample{}, out)
}

func TestSessionStore_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(NewMemoryStorage(), "p", nil)
	require.NoError(t, s.Save(ctx, ScopeQuiz, sample{Index: 1}))
	require.NoError(t, s.Save(ctx, ScopeFlashcards, sample{Index: 2}))

	var q, f sample
	require.True(t, s.Load(ctx, ScopeQuiz, &q))
	require.True(t, s.Load(ctx, ScopeFlashcards, &f))
	assert.Equal(t, 1, q.Index)
	assert.Equal(t, 2, f.Index)
}

func TestSessionStore_ProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	a := NewSessionStore(mem, "alice", nil)
	b := NewSessionStore(mem, "bob", nil)
	require.NoError(t, a.Save(ctx, ScopeQuiz, sample{Index: 3}))

	var out sample
	assert.False(t, b.Load(ctx, ScopeQuiz, &out))
}

func TestSessionStore_NotifiesOnSave(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	s := NewSessionStore(NewMemoryStorage(), "p", nil)
	s.SetNotifier(n)

	require.NoError(t, s.Save(ctx, ScopeSummary, sample{}))
	require.NoError(t, s.Clear(ctx, ScopeSummary))
	assert.Equal(t, []Scope{ScopeSummary, ScopeSummary}, n.scopes)
}

func TestSessionStore_BackendFailure(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(failingStorage{}, "p", nil)

	assert.Error(t, s.Save(ctx, ScopeQuiz, sample{}))
	var out sample
	assert.False(t, s.Load(ctx, ScopeQuiz, &out))
}

func TestSessionStore_LoadRejectsNonPointer(t *testing.T) {
	s := NewSessionStore(NewMemoryStorage(), "p", nil)
	assert.False(t, s.Load(context.Background(), ScopeQuiz, sample{}))
}

func TestFileStorage_KeyIsSanitized(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	assert.Equal(t, dir+string(os.PathSeparator)+"default__quiz-state.json", fs.path("default:quiz-state"))
	assert.NotContains(t, fs.path("../../etc:passwd"), "..")
}
