// Package gateway talks to the AI backend. Every call is single-shot: no
// retries, no de-duplication. On failure a method returns its fallback
// value together with a non-nil error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"smartstudy/internal/models"
)

// Fallback values shown to the user when a call fails.
const (
	FallbackSummary      = "Failed to generate summary."
	FallbackNoSummary    = "No summary received."
	FallbackHint         = "Hint unavailable."
	FallbackExplanation  = "Explanation could not be fetched."
	FallbackExtract      = "Failed to extract text from the uploaded file."
	FallbackChat         = "Error connecting to SmartStudy AI."
	FallbackNoReply      = "Sorry, I couldn't understand that."
	FallbackNoFlashcards = "No flashcards generated."
	FallbackFlashcards   = "Failed to generate flashcards."
	FallbackQuiz         = "Failed to generate quiz."
)

var (
	ErrEmptyResult       = errors.New("backend returned no items")
	ErrMalformedResponse = errors.New("backend returned a malformed response")
	ErrUnsupportedFile   = errors.New("unsupported file type")
)

// APIError carries the message of a backend error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
}

// AsAPIError unwraps err into an *APIError if there is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func newAPIError(status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}

// Upload is a file picked by the user, already read into memory.
type Upload struct {
	Name string
	MIME string
	Data []byte
}

type FlashcardRequest struct {
	Text  string
	Count int
	File  *Upload
}

type ChatReply struct {
	Reply     string
	Followups []string
}

type Gateway interface {
	GenerateSummary(ctx context.Context, text, style string) (string, error)
	GenerateQuiz(ctx context.Context, text string, count int, difficulty string) ([]models.StudyItem, error)
	GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]models.StudyItem, error)
	GenerateHint(ctx context.Context, question, context string) (string, error)
	ExplainAnswer(ctx context.Context, req models.ExplainRequest) (string, error)
	ExtractFileText(ctx context.Context, u Upload) (string, error)
	ChatTurn(ctx context.Context, req models.ChatRequest) (ChatReply, error)
}

func quizItems(qs []models.QuizQuestion) []models.StudyItem {
	items := make([]models.StudyItem, 0, len(qs))
	for _, q := range qs {
		items = append(items, q.ToItem(len(items)))
	}
	return items
}

func flashcardItems(cards []models.Flashcard) []models.StudyItem {
	items := make([]models.StudyItem, 0, len(cards))
	for _, c := range cards {
		items = append(items, c.ToItem(len(items)))
	}
	return items
}
