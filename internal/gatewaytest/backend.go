// Package gatewaytest runs an in-process fake of the AI backend's HTTP
// contract for tests.
package gatewaytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"smartstudy/internal/extract"
	"smartstudy/internal/models"
)

// Request is one call the backend received.
type Request struct {
	Path      string
	RequestID string
	JSON      map[string]interface{}
	Form      map[string]string
	FileName  string
}

// Backend serves canned responses. Fields may be changed between calls;
// they are read under the mutex on every request.
type Backend struct {
	mu sync.Mutex

	Quiz        []models.QuizQuestion
	Flashcards  []models.Flashcard
	Summary     string
	Reply       string
	Followups   []string
	Hint        string
	Explanation string

	// Status forces a non-2xx status for a path, ErrorMessage the
	// {"error": ...} body sent with it (or with a 200 if no status is set).
	Status       map[string]int
	ErrorMessage map[string]string
	// Raw replaces the whole response body for a path.
	Raw map[string]string
	// Hook runs before a response is written; tests use it to block.
	Hook func(path string)

	requests []Request
}

func New() *Backend {
	return &Backend{
		Summary:      "A short summary.",
		Reply:        "Mitochondria produce ATP.",
		Hint:         "Think about energy.",
		Explanation:  "Because it is correct.",
		Status:       map[string]int{},
		ErrorMessage: map[string]string{},
		Raw:          map[string]string{},
	}
}

// Start serves b on an httptest server closed at test cleanup.
func Start(t testing.TB) (*Backend, *httptest.Server) {
	t.Helper()
	b := New()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

func (b *Backend) Set(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SmartStudy AI Backend is Working!"))
	})
	r.Post("/generate-summary", b.jsonRoute(func(in map[string]interface{}) interface{} {
		return map[string]string{"summary": b.Summary}
	}))
	r.Post("/generate-quiz", b.jsonRoute(func(in map[string]interface{}) interface{} {
		quiz := b.Quiz
		if n, ok := in["count"].(float64); ok && int(n) < len(quiz) {
			quiz = quiz[:int(n)]
		}
		return map[string]interface{}{"quiz": quiz}
	}))
	r.Post("/generate-hint", b.jsonRoute(func(map[string]interface{}) interface{} {
		return map[string]string{"hint": b.Hint}
	}))
	r.Post("/explain-answer", b.jsonRoute(func(map[string]interface{}) interface{} {
		return map[string]string{"explanation": b.Explanation}
	}))
	r.Post("/chat", b.jsonRoute(func(map[string]interface{}) interface{} {
		return map[string]interface{}{"reply": b.Reply, "followups": b.Followups}
	}))
	r.Post("/upload-file", b.multipartRoute(func(form map[string]string, mimeType string, data []byte) interface{} {
		text, err := extract.Text(mimeType, data)
		if err != nil {
			return map[string]string{"error": "Failed to extract text from file"}
		}
		return map[string]string{"text": text}
	}))
	r.Post("/flashcards", b.multipartRoute(func(form map[string]string, _ string, _ []byte) interface{} {
		cards := b.Flashcards
		if n, err := strconv.Atoi(form["count"]); err == nil && n < len(cards) {
			cards = cards[:n]
		}
		return map[string]interface{}{"flashcards": cards}
	}))
	return r
}

func (b *Backend) jsonRoute(respond func(in map[string]interface{}) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := map[string]interface{}{}
		json.NewDecoder(r.Body).Decode(&in)
		b.record(Request{Path: r.URL.Path, RequestID: r.Header.Get("X-Request-ID"), JSON: in})
		b.finish(w, r.URL.Path, func() interface{} { return respond(in) })
	}
}

func (b *Backend) multipartRoute(respond func(form map[string]string, mimeType string, data []byte) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := map[string]string{}
		var data []byte
		var name string
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					form[k] = v[0]
				}
			}
			if f, fh, err := r.FormFile("file"); err == nil {
				data, _ = io.ReadAll(f)
				f.Close()
				name = fh.Filename
			}
		}
		b.record(Request{Path: r.URL.Path, RequestID: r.Header.Get("X-Request-ID"), Form: form, FileName: name})
		b.finish(w, r.URL.Path, func() interface{} { return respond(form, extract.Detect(data), data) })
	}
}

func (b *Backend) record(req Request) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	hook := b.Hook
	b.mu.Unlock()
	if hook != nil {
		hook(req.Path)
	}
}

func (b *Backend) finish(w http.ResponseWriter, path string, body func() interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if raw, ok := b.Raw[path]; ok {
		w.WriteHeader(b.statusFor(path))
		io.Copy(w, strings.NewReader(raw))
		return
	}
	if msg, ok := b.ErrorMessage[path]; ok {
		w.WriteHeader(b.statusFor(path))
		json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}
	if status, ok := b.Status[path]; ok {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
		return
	}
	json.NewEncoder(w).Encode(body())
}

func (b *Backend) statusFor(path string) int {
	if s, ok := b.Status[path]; ok {
		return s
	}
	return http.StatusOK
}

// SampleQuiz returns n well-formed questions whose correct answer is "A".
func SampleQuiz(n int) []models.QuizQuestion {
	out := make([]models.QuizQuestion, n)
	for i := range out {
		out[i] = models.QuizQuestion{
			Question:      "Question " + strconv.Itoa(i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
		}
	}
	return out
}

func SampleFlashcards(n int) []models.Flashcard {
	out := make([]models.Flashcard, n)
	for i := range out {
		out[i] = models.Flashcard{
			Question:    "Term " + strconv.Itoa(i+1),
			Answer:      "Definition " + strconv.Itoa(i+1),
			Hint:        "hint",
			Explanation: "explanation",
		}
	}
	return out
}
