package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstudy/internal/logger"
	"smartstudy/internal/models"
)

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *fakeGenerator) generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func newFakeGemini(out string) (*GeminiGateway, *fakeGenerator) {
	gen := &fakeGenerator{out: out}
	return newGeminiGateway(gen, 2, logger.NewNop()), gen
}

func TestGemini_QuizExtractsArrayFromProse(t *testing.T) {
	g, gen := newFakeGemini("Here you go:\n```json\n[{\"question\":\"Q1\",\"options\":[\"a\",\"b\",\"c\",\"d\"],\"correct_answer\":\"b\"}]\n```")
	items, err := g.GenerateQuiz(context.Background(), "text", 1, "easy")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].AnswerKey)
	assert.Contains(t, gen.prompts[0], "Generate 1 multiple-choice questions")
	assert.Contains(t, gen.prompts[0], "easy difficulty")
}

func TestGemini_QuizFailures(t *testing.T) {
	g, _ := newFakeGemini("I cannot help with that")
	_, err := g.GenerateQuiz(context.Background(), "text", 3, "easy")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	g, _ = newFakeGemini("[]")
	_, err = g.GenerateQuiz(context.Background(), "text", 3, "easy")
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = g.GenerateQuiz(context.Background(), "   ", 3, "easy")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestGemini_FlashcardsDropIncompleteCards(t *testing.T) {
	g, gen := newFakeGemini(`[{"question":"Q","answer":"A","hint":"h","explanation":"e"},{"question":" ","answer":"x"}]`)
	file := NewUpload("notes.txt", []byte("osmosis notes"))
	items, err := g.GenerateFlashcards(context.Background(), FlashcardRequest{Text: "typed", Count: 4, File: &file})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "h", items[0].Hint)
	assert.Contains(t, gen.prompts[0], "Generate 4 flashcards")
	assert.Contains(t, gen.prompts[0], "typed\nosmosis notes")
}

func TestGemini_FlashcardsRejectsBadInput(t *testing.T) {
	g, gen := newFakeGemini("[]")
	_, err := g.GenerateFlashcards(context.Background(), FlashcardRequest{Count: 3})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "No content to generate flashcards", apiErr.Message)

	bad := Upload{Name: "x.png", MIME: "image/png", Data: []byte{1}}
	_, err = g.GenerateFlashcards(context.Background(), FlashcardRequest{Text: "t", File: &bad})
	_, ok = AsAPIError(err)
	assert.True(t, ok)
	assert.Empty(t, gen.prompts)
}

func TestGemini_SummaryStyles(t *testing.T) {
	g, gen := newFakeGemini("  summary text  ")
	out, err := g.GenerateSummary(context.Background(), "body", models.StyleNumbered)
	require.NoError(t, err)
	assert.Equal(t, "  summary text  ", out)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "Summarize the following content in at least 5 to 10 numbered points."))

	_, _ = g.GenerateSummary(context.Background(), "body", "unknown")
	assert.True(t, strings.HasPrefix(gen.prompts[1], "Write a short and to-the-point"))

	g, _ = newFakeGemini("")
	out, err = g.GenerateSummary(context.Background(), "body", models.StyleConcise)
	require.NoError(t, err)
	assert.Equal(t, FallbackNoSummary, out)
}

func TestGemini_ModelErrorUsesFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota")}
	g := newGeminiGateway(gen, 1, logger.NewNop())

	hint, err := g.GenerateHint(context.Background(), "q", "c")
	assert.Error(t, err)
	assert.Equal(t, FallbackHint, hint)

	reply, err := g.ChatTurn(context.Background(), models.ChatRequest{Message: "hi"})
	assert.Error(t, err)
	assert.Equal(t, FallbackChat, reply.Reply)
}

func TestGemini_ChatSplitsFollowups(t *testing.T) {
	g, gen := newFakeGemini("Answer: ATP is made in mitochondria [1].\n\nFollow-Up Prompts:\n1. What is ATP?\n\n2. What is glycolysis?\n3. Where is DNA?\n4. Extra?")
	reply, err := g.ChatTurn(context.Background(), models.ChatRequest{
		Message: "where is ATP made?",
		Context: "notes",
		History: []models.HistoryEntry{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ATP is made in mitochondria [1].", reply.Reply)
	assert.Equal(t, []string{"1. What is ATP?", "2. What is glycolysis?", "3. Where is DNA?"}, reply.Followups)
	assert.Contains(t, gen.prompts[0], "User: hello\nAssistant: hi")
}

func TestGemini_ExtractFileTextIsLocal(t *testing.T) {
	g, gen := newFakeGemini("unused")
	_, err := g.ExtractFileText(context.Background(), NewUpload("notes.txt", []byte("plain")))
	_, ok := AsAPIError(err)
	assert.True(t, ok, "plain text is not a document type")
	assert.Empty(t, gen.prompts)
}

type blockingGenerator struct {
	active, peak atomic.Int32
	release      chan struct{}
}

func (b *blockingGenerator) generate(ctx context.Context, _ string) (string, error) {
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-b.release
	b.active.Add(-1)
	return "hint", nil
}

func TestGemini_RateSlotsBoundConcurrency(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	g := newGeminiGateway(gen, 2, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.GenerateHint(context.Background(), "q", "c")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}

func TestGemini_AcquireRateHonoursContext(t *testing.T) {
	g := newGeminiGateway(&fakeGenerator{}, 1, logger.NewNop())
	<-g.rateChan
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.acquireRate(ctx), context.Canceled)
}

func TestJSONArray(t *testing.T) {
	tests := []struct{ in, want string }{
		{`[1,2]`, `[1,2]`},
		{"text [1] more [2] end", "[1] more [2]"},
		{"no array", "no array"},
		{"] backwards [", "] backwards ["},
	}
	for _, tt := range tests {
		if got := jsonArray(tt.in); got != tt.want {
			t.Errorf("jsonArray(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
