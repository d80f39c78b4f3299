package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"smartstudy/internal/app"
	"smartstudy/internal/gateway"
	"smartstudy/internal/models"
	"smartstudy/internal/services"
	"smartstudy/internal/session"
	"smartstudy/internal/tui"
)

var (
	title = color.New(color.FgCyan, color.Bold)
	good  = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
	bad   = color.New(color.FgRed)
)

type generateFlags struct {
	text       string
	file       string
	count      int
	difficulty string
}

func parseGenerateFlags(name string, args []string, withDifficulty bool) (generateFlags, error) {
	var f generateFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.text, "text", "", "source text")
	fs.StringVar(&f.file, "file", "", "PDF, DOCX or text file to study")
	fs.IntVar(&f.count, "count", session.DefaultCount, "number of items")
	if withDifficulty {
		fs.StringVar(&f.difficulty, "difficulty", session.DefaultDifficulty, "easy, medium or hard")
	}
	return f, fs.Parse(args)
}

// generate runs one generation on study and reports the outcome.
func generate(ctx context.Context, study *services.Study, f generateFlags, out io.Writer) (session.Snapshot, error) {
	if _, err := study.SetParams(ctx, f.count, f.difficulty); err != nil {
		return session.Snapshot{}, err
	}
	if f.text != "" {
		if _, err := study.SetSourceText(ctx, f.text); err != nil {
			return session.Snapshot{}, err
		}
	}

	var upload *gateway.Upload
	if f.file != "" {
		u, err := gateway.OpenUpload(f.file)
		if err != nil {
			return session.Snapshot{}, err
		}
		upload = &u
	}

	snap, err := study.Generate(ctx, upload)
	if err != nil {
		if services.IsEmptyResult(err) {
			warn.Fprintf(out, "No items generated: %v\n", err)
			return snap, nil
		}
		return snap, err
	}
	good.Fprintf(out, "✓ Generated %d items\n", snap.Len())
	return snap, nil
}

func runQuiz(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	f, err := parseGenerateFlags("quiz", args, true)
	if err != nil {
		return err
	}
	snap, err := generate(ctx, a.Quiz(ctx), f, out)
	if err != nil {
		return err
	}
	for i, it := range snap.Items {
		title.Fprintf(out, "\n%d. %s\n", i+1, it.Prompt)
		for j, opt := range it.Options {
			fmt.Fprintf(out, "   %c) %s\n", 'a'+j, opt)
		}
	}
	if snap.Len() > 0 {
		fmt.Fprintln(out, "\nRun \"smartstudy study -kind quiz\" to take it.")
	}
	return nil
}

func runFlashcards(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	f, err := parseGenerateFlags("flashcards", args, false)
	if err != nil {
		return err
	}
	snap, err := generate(ctx, a.Flashcards(ctx), f, out)
	if err != nil {
		return err
	}
	for i, it := range snap.Items {
		title.Fprintf(out, "\n%d. %s\n", i+1, it.Prompt)
		fmt.Fprintf(out, "   %s\n", it.AnswerKey)
	}
	if snap.Len() > 0 {
		fmt.Fprintln(out, "\nRun \"smartstudy study -kind flashcards\" to review them.")
	}
	return nil
}

func runSummary(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	var text, file, style, pdfPath string
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.StringVar(&text, "text", "", "text to summarise")
	fs.StringVar(&file, "file", "", "PDF or DOCX to summarise")
	fs.StringVar(&style, "style", "", "concise, detailed, numbered or simplified")
	fs.StringVar(&pdfPath, "pdf", "", "also write the summary to this PDF file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sum := a.Summary(ctx)
	if style != "" {
		if _, err := sum.SetStyle(ctx, style); err != nil {
			return err
		}
	}
	if text != "" {
		if _, err := sum.SetText(ctx, text); err != nil {
			return err
		}
	}
	if file != "" {
		u, err := gateway.OpenUpload(file)
		if err != nil {
			return err
		}
		if _, err := sum.ImportFile(ctx, u); err != nil {
			return err
		}
	}

	summary, err := sum.Generate(ctx)
	if err != nil {
		if summary != "" {
			bad.Fprintln(out, summary)
		}
		return err
	}
	title.Fprintf(out, "Summary (%s)\n\n", sum.Snapshot().Style)
	fmt.Fprintln(out, summary)

	if pdfPath != "" {
		data, err := sum.PDF()
		if err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", pdfPath, err)
		}
		good.Fprintf(out, "\n✓ Saved %s\n", pdfPath)
	}
	return nil
}

const chatHelp = "Commands: /upload <file>, /export <file.pdf>, /transcript, /clear, /quit. Type 1-3 to send a suggestion."

// runChat is a line-oriented conversation on in.
func runChat(ctx context.Context, a *app.App, args []string, in io.Reader, out io.Writer) error {
	var file string
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.StringVar(&file, "file", "", "PDF or DOCX to use as context")
	if err := fs.Parse(args); err != nil {
		return err
	}

	chat := a.Chat(ctx)
	printed := 0
	flush := func() {
		msgs := chat.Messages()
		if printed > len(msgs) {
			printed = 0
		}
		for _, m := range msgs[printed:] {
			if m.Sender == models.SenderUser {
				continue
			}
			title.Fprintf(out, "SmartStudy: ")
			fmt.Fprintln(out, m.Text)
		}
		printed = len(msgs)
		for i, s := range chat.Suggestions() {
			warn.Fprintf(out, "  %d. %s\n", i+1, s)
		}
	}

	if file != "" {
		if err := uploadChatFile(ctx, chat, file); err != nil {
			bad.Fprintf(out, "✗ %v\n", err)
		}
	}
	flush()
	fmt.Fprintln(out, chatHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		before := len(chat.Messages())
		var err error
		switch cmd, arg, _ := strings.Cut(line, " "); cmd {
		case "/quit", "/exit":
			return nil
		case "/clear":
			err = chat.Clear(ctx)
			printed, before = 0, -1
		case "/transcript":
			fmt.Fprintln(out, chat.Transcript())
			continue
		case "/upload":
			err = uploadChatFile(ctx, chat, strings.TrimSpace(arg))
		case "/export":
			err = exportChat(chat, strings.TrimSpace(arg))
			if err == nil {
				good.Fprintf(out, "✓ Saved %s\n", strings.TrimSpace(arg))
			}
		default:
			if n, convErr := strconv.Atoi(line); convErr == nil {
				_, err = chat.SendSuggestion(ctx, n-1)
			} else {
				_, err = chat.Send(ctx, line)
			}
		}
		// Backend failures already show up as a bot message.
		if err != nil && len(chat.Messages()) == before {
			bad.Fprintf(out, "✗ %v\n", err)
		}
		flush()
	}
}

func uploadChatFile(ctx context.Context, chat *services.Chat, path string) error {
	u, err := gateway.OpenUpload(path)
	if err != nil {
		return err
	}
	return chat.UploadContext(ctx, u)
}

func exportChat(chat *services.Chat, path string) error {
	if path == "" {
		return errors.New("usage: /export <file.pdf>")
	}
	data, err := chat.PDF()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runStudy(ctx context.Context, a *app.App, args []string) error {
	var kind string
	fs := flag.NewFlagSet("study", flag.ContinueOnError)
	fs.StringVar(&kind, "kind", string(session.KindFlashcards), "quiz or flashcards")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var study *services.Study
	switch session.Kind(kind) {
	case session.KindQuiz:
		study = a.Quiz(ctx)
	case session.KindFlashcards:
		study = a.Flashcards(ctx)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return tui.NewApp(ctx, study).Run()
}
