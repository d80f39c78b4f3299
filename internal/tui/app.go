// Package tui is a terminal viewer for a quiz or flashcard session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"smartstudy/internal/models"
	"smartstudy/internal/services"
	"smartstudy/internal/session"
)

// App drives one study session from the keyboard.
type App struct {
	ctx         context.Context
	study       *services.Study
	Revealed    bool
	Status      string
	Application *tview.Application
	MainView    *tview.Flex
	CardView    *tview.TextView

	// queueUpdate runs f on the event loop; backend calls finish through it.
	queueUpdate func(f func())
}

func NewApp(ctx context.Context, study *services.Study) *App {
	a := &App{
		ctx:         ctx,
		study:       study,
		Application: tview.NewApplication(),
	}
	a.queueUpdate = func(f func()) { a.Application.QueueUpdateDraw(f) }
	return a
}

// Run blocks until the user quits.
func (a *App) Run() error {
	a.SetupUI()
	return a.Application.SetRoot(a.MainView, true).SetInputCapture(a.HandleInput).Run()
}

// SetupUI initializes the user interface
func (a *App) SetupUI() {
	a.CardView = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetWrap(true)

	title := " Flashcards "
	if a.study.Kind() == session.KindQuiz {
		title = " Quiz "
	}
	a.CardView.SetBorder(true).
		SetTitle(title).
		SetTitleAlign(tview.AlignCenter)

	a.MainView = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.CardView, 0, 3, true).
			AddItem(nil, 0, 1, false), 0, 3, true).
		AddItem(nil, 0, 1, false)

	a.UpdateCardView()
}

func (a *App) UpdateCardView() {
	a.CardView.SetText(Render(a.study.Snapshot(), a.Revealed, a.Status))
}

// Render draws a snapshot as tview-tagged text.
func Render(snap session.Snapshot, revealed bool, status string) string {
	var content strings.Builder
	content.WriteString("\n\n")

	item, ok := snap.Current()
	switch {
	case snap.State == session.StateLoading:
		content.WriteString("Generating...\n")
	case !ok:
		content.WriteString("No cards in deck!\n")
	case snap.Kind == session.KindQuiz:
		renderQuestion(&content, snap, item)
	default:
		renderCard(&content, snap, item, revealed)
	}

	if status != "" {
		content.WriteString("\n[yellow]" + tview.Escape(status) + "[white]\n")
	}

	content.WriteString("\n─────────────────────────\n")
	content.WriteString("\nControls:\n")
	if snap.Kind == session.KindQuiz {
		content.WriteString("1-9: Answer  |  →/←: Next/Previous  |  h: Hint  |  e: Explain  |  s: Score  |  r: Retake  |  q: Quit")
	} else {
		content.WriteString("→: Reveal/Next  |  ←: Previous  |  x: Shuffle  |  n: New card  |  d: Delete  |  q: Quit")
	}
	return content.String()
}

func renderCard(b *strings.Builder, snap session.Snapshot, item models.StudyItem, revealed bool) {
	fmt.Fprintf(b, "Card %d/%d  ·  known %d%%\n\n", snap.CurrentIndex+1, snap.Len(), snap.KnownPercent())
	if snap.Known.Has(snap.CurrentIndex) {
		b.WriteString("[green]✓ known[white]\n\n")
	}
	b.WriteString("[::b]Term:[::-]\n")
	b.WriteString("[cyan]" + tview.Escape(item.Prompt) + "[white]\n\n")
	if revealed {
		b.WriteString("[::b]Definition:[::-]\n")
		b.WriteString("[yellow]" + tview.Escape(item.AnswerKey) + "[white]\n")
	}
}

func renderQuestion(b *strings.Builder, snap session.Snapshot, item models.StudyItem) {
	fmt.Fprintf(b, "Question %d/%d  ·  answered %d/%d\n\n", snap.CurrentIndex+1, snap.Len(), snap.Answered(), snap.Len())
	b.WriteString("[::b]" + tview.Escape(item.Prompt) + "[::-]\n\n")

	fb, answered := snap.Feedback[snap.CurrentIndex]
	for i, opt := range item.Options {
		color := "white"
		if answered {
			switch {
			case opt == fb.Correct:
				color = "green"
			case opt == fb.Selected:
				color = "red"
			}
		}
		fmt.Fprintf(b, "[%s]%d. %s[white]\n", color, i+1, tview.Escape(opt))
	}
	if h, ok := snap.Hints[snap.CurrentIndex]; ok {
		b.WriteString("\n[::i]Hint: " + tview.Escape(h) + "[::-]\n")
	}
	if e, ok := snap.Explanations[snap.CurrentIndex]; ok {
		b.WriteString("\n[::i]" + tview.Escape(e) + "[::-]\n")
	}
	if snap.State == session.StateScored {
		sc := session.ScoreOf(snap)
		fmt.Fprintf(b, "\n[::b]Score: %d/%d[::-]\n", sc.Correct, sc.Total)
	}
}

// HandleInput processes keyboard input
func (a *App) HandleInput(event *tcell.EventKey) *tcell.EventKey {
	if _, ok := a.Application.GetFocus().(*tview.Form); ok {
		return event
	}
	if _, ok := a.Application.GetFocus().(*tview.InputField); ok {
		return event
	}

	var err error
	a.Status = ""
	switch event.Key() {
	case tcell.KeyRight:
		if a.study.Kind() == session.KindFlashcards && !a.Revealed {
			a.Revealed = true
			break
		}
		a.Revealed = false
		_, err = a.study.Advance(a.ctx)
	case tcell.KeyLeft:
		a.Revealed = false
		_, err = a.study.Rewind(a.ctx)
	case tcell.KeyRune:
		err = a.handleRune(event.Rune())
	}
	if err != nil {
		a.Status = err.Error()
	}
	a.UpdateCardView()
	return event
}

func (a *App) handleRune(r rune) error {
	if r == 'q' {
		a.Application.Stop()
		return nil
	}
	if a.study.Kind() == session.KindQuiz {
		return a.handleQuizRune(r)
	}

	switch r {
	case 'x':
		a.Revealed = false
		_, err := a.study.Shuffle(a.ctx)
		return err
	case 'n':
		a.ShowNewCardDialog()
	case 'd':
		_, err := a.study.Delete(a.ctx, a.study.Snapshot().CurrentIndex)
		return err
	}
	return nil
}

func (a *App) handleQuizRune(r rune) error {
	snap := a.study.Snapshot()
	switch {
	case r >= '1' && r <= '9':
		item, ok := snap.Current()
		opt := int(r - '1')
		if !ok || opt >= len(item.Options) {
			return nil
		}
		_, err := a.study.SelectOption(a.ctx, snap.CurrentIndex, item.Options[opt])
		return err
	case r == 'h':
		a.fetch("Fetching hint...", func() (string, error) { return a.study.Hint(a.ctx, snap.CurrentIndex) })
	case r == 'e':
		a.fetch("Fetching explanation...", func() (string, error) { return a.study.Explain(a.ctx, snap.CurrentIndex) })
	case r == 's':
		_, _, err := a.study.ShowScore(a.ctx)
		return err
	case r == 'r':
		_, err := a.study.Retake(a.ctx)
		return err
	}
	return nil
}

// fetch runs a backend call off the event loop and redraws when it returns.
// A fallback text that comes with an error is shown as the status.
func (a *App) fetch(pending string, call func() (string, error)) {
	a.Status = pending
	go func() {
		text, err := call()
		a.queueUpdate(func() {
			a.Status = ""
			if err != nil {
				a.Status = err.Error()
				if text != "" {
					a.Status = text
				}
			}
			a.UpdateCardView()
		})
	}()
}

// SaveNewCard appends a card and returns to the deck.
func (a *App) SaveNewCard(term, definition string) {
	if _, err := a.study.AddOrEdit(a.ctx, nil, models.StudyItem{Prompt: term, AnswerKey: definition}); err != nil {
		a.Status = err.Error()
	}
	a.Application.SetRoot(a.MainView, true)
	a.UpdateCardView()
}

// ShowNewCardDialog displays the new card input dialog
func (a *App) ShowNewCardDialog() {
	termInput := tview.NewInputField().SetLabel("Term").SetFieldWidth(50)
	defInput := tview.NewInputField().SetLabel("Definition").SetFieldWidth(50)

	form := tview.NewForm()
	form.AddFormItem(termInput)
	form.AddFormItem(defInput)
	form.AddButton("Save", func() {
		a.SaveNewCard(termInput.GetText(), defInput.GetText())
	})
	form.AddButton("Cancel", func() {
		a.Application.SetRoot(a.MainView, true)
	})

	form.SetBorder(true).
		SetTitle(" Add New Card ").
		SetTitleAlign(tview.AlignCenter)

	formFlex := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(form, 0, 1, true).
			AddItem(nil, 0, 1, false), 0, 2, true).
		AddItem(nil, 0, 1, false)

	a.Application.SetRoot(formFlex, true)
}
