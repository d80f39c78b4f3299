package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"smartstudy/internal/handlers"
	"smartstudy/internal/middleware"
	"smartstudy/internal/websocket"
)

// Handlers groups what the local API serves.
type Handlers struct {
	Quiz       *handlers.StudyHandler
	Flashcards *handlers.StudyHandler
	Summary    *handlers.SummaryHandler
	Chat       *handlers.ChatHandler
	Hub        *websocket.Hub
}

// New builds the local API. aiLimiter guards every route that calls the
// AI backend; it may be nil.
func New(h Handlers, aiLimiter *middleware.RateLimiter, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	if aiLimiter == nil {
		// 30 backend calls/min per client
		aiLimiter = middleware.NewRateLimiter(30, time.Minute)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Quiz Routes ────
		r.Route("/quiz", func(r chi.Router) {
			studyRoutes(r, h.Quiz, aiLimiter)
			r.Post("/answers/{index}", h.Quiz.Answer)
			r.Post("/score", h.Quiz.Score)
			r.Post("/retake", h.Quiz.Retake)

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/hints/{index}", h.Quiz.Hint)
				r.Post("/explanations/{index}", h.Quiz.Explain)
			})
		})

		// ──── Flashcard Routes ────
		r.Route("/flashcards", func(r chi.Router) {
			studyRoutes(r, h.Flashcards, aiLimiter)
		})

		// ──── Summary Routes ────
		r.Route("/summary", func(r chi.Router) {
			r.Get("/", h.Summary.Get)
			r.Put("/text", h.Summary.SetText)
			r.Put("/style", h.Summary.SetStyle)
			r.Get("/pdf", h.Summary.PDF)
			r.Delete("/", h.Summary.Clear)

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/generate", h.Summary.Generate)
				r.Post("/import", h.Summary.Import)
			})
		})

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Get("/", h.Chat.Get)
			r.Get("/transcript", h.Chat.Transcript)
			r.Get("/pdf", h.Chat.PDF)
			r.Delete("/", h.Chat.Clear)

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/messages", h.Chat.Send)
				r.Post("/suggestions/{index}", h.Chat.SendSuggestion)
				r.Post("/upload", h.Chat.Upload)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", h.Hub.HandleWebSocket)
	})

	return r
}

// studyRoutes registers the operations quizzes and flashcards share.
func studyRoutes(r chi.Router, h *handlers.StudyHandler, aiLimiter *middleware.RateLimiter) {
	r.Get("/", h.Get)
	r.Delete("/", h.Reset)
	r.Put("/source", h.SetSource)
	r.Put("/params", h.SetParams)
	r.Post("/advance", h.Advance)
	r.Post("/rewind", h.Rewind)
	r.Post("/shuffle", h.Shuffle)
	r.Post("/items", h.AddItem)
	r.Put("/items/{index}", h.EditItem)
	r.Delete("/items/{index}", h.DeleteItem)

	r.Group(func(r chi.Router) {
		r.Use(aiLimiter.Middleware)
		r.Post("/generate", h.Generate)
		r.Post("/import", h.Import)
	})
}
