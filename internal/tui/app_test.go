package tui

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstudy/internal/gateway"
	"smartstudy/internal/gatewaytest"
	"smartstudy/internal/models"
	"smartstudy/internal/services"
	"smartstudy/internal/session"
	"smartstudy/internal/store"
)

func newStudy(t *testing.T, kind session.Kind) (*services.Study, *gatewaytest.Backend) {
	t.Helper()
	b, srv := gatewaytest.Start(t)
	gw := gateway.NewHTTPGateway(srv.URL, 0, nil)
	st := store.NewSessionStore(store.NewMemoryStorage(), "tui", nil)
	if kind == session.KindQuiz {
		return services.NewQuiz(context.Background(), st, gw, nil), b
	}
	return services.NewFlashcards(context.Background(), st, gw, nil), b
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func char(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

// queued collects updates that would run on the event loop.
func queued(app *App) chan func() {
	updates := make(chan func(), 4)
	app.queueUpdate = func(f func()) { updates <- f }
	return updates
}

func drain(t *testing.T, updates chan func()) {
	t.Helper()
	select {
	case f := <-updates:
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("backend call never finished")
	}
}

func TestRender_EmptyDeck(t *testing.T) {
	out := Render(session.New(session.KindFlashcards), false, "")
	assert.Contains(t, out, "No cards in deck!")
	assert.Contains(t, out, "x: Shuffle")
}

func TestFlashcardKeys(t *testing.T) {
	ctx := context.Background()
	study, _ := newStudy(t, session.KindFlashcards)
	_, err := study.AddOrEdit(ctx, nil, models.StudyItem{Prompt: "Osmosis", AnswerKey: "Water diffusion"})
	require.NoError(t, err)
	_, err = study.AddOrEdit(ctx, nil, models.StudyItem{Prompt: "ATP", AnswerKey: "Energy currency"})
	require.NoError(t, err)

	app := NewApp(ctx, study)
	app.SetupUI()
	assert.Contains(t, app.CardView.GetText(true), "ATP")
	assert.NotContains(t, app.CardView.GetText(true), "Energy currency")

	app.HandleInput(key(tcell.KeyRight))
	assert.True(t, app.Revealed)
	assert.Contains(t, app.CardView.GetText(true), "Energy currency")

	app.HandleInput(key(tcell.KeyRight))
	assert.False(t, app.Revealed)
	snap := study.Snapshot()
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.True(t, snap.Known.Has(1))
	assert.Contains(t, app.CardView.GetText(true), "Osmosis")

	app.HandleInput(char('d'))
	assert.Equal(t, 1, study.Snapshot().Len())

	app.HandleInput(char('d'))
	app.HandleInput(key(tcell.KeyRight))
	app.HandleInput(key(tcell.KeyRight))
	assert.Contains(t, app.CardView.GetText(true), "No cards in deck!")
	assert.Equal(t, session.ErrNotReady.Error(), app.Status)
}

func TestQuizKeys(t *testing.T) {
	ctx := context.Background()
	study, b := newStudy(t, session.KindQuiz)
	b.Set(func(b *gatewaytest.Backend) { b.Quiz = gatewaytest.SampleQuiz(2) })
	_, err := study.SetSourceText(ctx, "Cells")
	require.NoError(t, err)
	_, err = study.Generate(ctx, nil)
	require.NoError(t, err)

	app := NewApp(ctx, study)
	updates := queued(app)
	app.SetupUI()
	assert.Contains(t, app.CardView.GetText(true), "Question 1")

	app.HandleInput(char('2'))
	fb, ok := study.Snapshot().Feedback[0]
	require.True(t, ok)
	assert.Equal(t, "B", fb.Selected)
	assert.False(t, fb.IsCorrect)

	app.HandleInput(char('1'))
	assert.Equal(t, session.ErrAlreadyAnswered.Error(), app.Status)

	app.HandleInput(char('e'))
	assert.Equal(t, "Fetching explanation...", app.Status)
	drain(t, updates)
	assert.Equal(t, "Because it is correct.", study.Snapshot().Explanations[0])
	assert.Empty(t, app.Status)

	app.HandleInput(char('h'))
	assert.Contains(t, app.CardView.GetText(true), "Fetching hint...")
	drain(t, updates)
	assert.Equal(t, "Think about energy.", study.Snapshot().Hints[0])
	assert.Contains(t, app.CardView.GetText(true), "Hint: Think about energy.")

	app.HandleInput(char('s'))
	assert.Equal(t, session.StateScored, study.Snapshot().State)
	assert.Contains(t, app.CardView.GetText(true), "Score: 0/2")

	app.HandleInput(char('r'))
	assert.Empty(t, study.Snapshot().Feedback)
}

func TestQuizKeys_HintFailureShowsFallback(t *testing.T) {
	ctx := context.Background()
	study, b := newStudy(t, session.KindQuiz)
	b.Set(func(b *gatewaytest.Backend) { b.Quiz = gatewaytest.SampleQuiz(1) })
	_, err := study.SetSourceText(ctx, "Cells")
	require.NoError(t, err)
	_, err = study.Generate(ctx, nil)
	require.NoError(t, err)
	b.Set(func(b *gatewaytest.Backend) { b.Status["/generate-hint"] = http.StatusInternalServerError })

	app := NewApp(ctx, study)
	updates := queued(app)
	app.SetupUI()

	app.HandleInput(char('h'))
	drain(t, updates)
	assert.Equal(t, gateway.FallbackHint, app.Status)
	assert.Empty(t, study.Snapshot().Hints)
}
