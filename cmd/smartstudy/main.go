package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"smartstudy/internal/app"
	"smartstudy/internal/config"
	"smartstudy/internal/logger"
)

const usage = `Usage: smartstudy <command> [flags]

Commands:
  serve       run the local API and websocket hub
  quiz        generate a quiz from text or a document
  flashcards  generate flashcards from text or a document
  summary     summarise text or a document
  chat        talk to the study assistant
  study       review the saved quiz or flashcards in the terminal

Run "smartstudy <command> -h" for the command's flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "quiz":
		err = withApp(ctx, cfg, func(a *app.App) error { return runQuiz(ctx, a, args, color.Output) })
	case "flashcards":
		err = withApp(ctx, cfg, func(a *app.App) error { return runFlashcards(ctx, a, args, color.Output) })
	case "summary":
		err = withApp(ctx, cfg, func(a *app.App) error { return runSummary(ctx, a, args, color.Output) })
	case "chat":
		err = withApp(ctx, cfg, func(a *app.App) error { return runChat(ctx, a, args, os.Stdin, color.Output) })
	case "study":
		err = withApp(ctx, cfg, func(a *app.App) error { return runStudy(ctx, a, args) })
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

// withApp runs fn with a file-only logger so the terminal stays clean.
func withApp(ctx context.Context, cfg *config.Config, fn func(*app.App) error) error {
	zl := logger.NewFileOnly(cfg.LogFile, cfg.LogLevel)
	defer zl.Sync()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Println("🚀 Starting SmartStudy...")

	zl := logger.NewZapLogger(cfg.LogFile, cfg.IsProduction(), cfg.LogLevel)
	defer zl.Sync()
	log.Println("✓ Configuration loaded")

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()
	log.Printf("✓ Session store ready (%s, profile %q)", cfg.StoreBackend, cfg.StoreProfile)
	log.Printf("✓ AI gateway ready (%s)", cfg.GatewayMode)

	server := a.Server(ctx)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ SmartStudy ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
