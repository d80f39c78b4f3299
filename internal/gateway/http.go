package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartstudy/internal/logger"
	"smartstudy/internal/models"
)

const maxResponseBytes = 10 << 20

// HTTPGateway calls the remote backend over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	log     logger.ILogger
}

// NewHTTPGateway returns a gateway for baseURL. A zero timeout leaves
// cancellation entirely to the caller's context.
func NewHTTPGateway(baseURL string, timeout time.Duration, log logger.ILogger) *HTTPGateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (g *HTTPGateway) GenerateSummary(ctx context.Context, text, style string) (string, error) {
	var resp models.GenerateSummaryResponse
	err := g.postJSON(ctx, "/generate-summary", models.GenerateSummaryRequest{Text: text, Style: style}, &resp)
	if err != nil {
		return FallbackSummary, fmt.Errorf("generate summary: %w", err)
	}
	if resp.Error != "" {
		return FallbackSummary, fmt.Errorf("generate summary: %w", newAPIError(http.StatusOK, resp.Error))
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return FallbackNoSummary, nil
	}
	return resp.Summary, nil
}

func (g *HTTPGateway) GenerateQuiz(ctx context.Context, text string, count int, difficulty string) ([]models.StudyItem, error) {
	var resp models.GenerateQuizResponse
	err := g.postJSON(ctx, "/generate-quiz", models.GenerateQuizRequest{Text: text, Count: count, Difficulty: difficulty}, &resp)
	if err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", err)
	}
	if resp.Error != "" {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", newAPIError(http.StatusOK, resp.Error))
	}

	var qs []models.QuizQuestion
	if err := decodeArray(resp.Quiz, &qs); err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", err)
	}
	if len(qs) == 0 {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", ErrEmptyResult)
	}
	return quizItems(qs), nil
}

func (g *HTTPGateway) GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]models.StudyItem, error) {
	fields := map[string]string{
		"text":  req.Text,
		"count": strconv.Itoa(req.Count),
	}
	var resp models.GenerateFlashcardsResponse
	if err := g.postMultipart(ctx, "/flashcards", fields, req.File, &resp); err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", err)
	}
	if resp.Error != "" {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", newAPIError(http.StatusOK, resp.Error))
	}

	var cards []models.Flashcard
	if err := decodeArray(resp.Flashcards, &cards); err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", err)
	}
	if len(cards) == 0 {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", ErrEmptyResult)
	}
	return flashcardItems(cards), nil
}

func (g *HTTPGateway) GenerateHint(ctx context.Context, question, context string) (string, error) {
	var resp models.HintResponse
	if err := g.postJSON(ctx, "/generate-hint", models.HintRequest{Question: question, Context: context}, &resp); err != nil {
		return FallbackHint, fmt.Errorf("generate hint: %w", err)
	}
	if resp.Hint == "" {
		return FallbackHint, fmt.Errorf("generate hint: %w", ErrEmptyResult)
	}
	return resp.Hint, nil
}

func (g *HTTPGateway) ExplainAnswer(ctx context.Context, req models.ExplainRequest) (string, error) {
	var resp models.ExplainResponse
	if err := g.postJSON(ctx, "/explain-answer", req, &resp); err != nil {
		return FallbackExplanation, fmt.Errorf("explain answer: %w", err)
	}
	if resp.Explanation == "" {
		return FallbackExplanation, fmt.Errorf("explain answer: %w", ErrEmptyResult)
	}
	return resp.Explanation, nil
}

func (g *HTTPGateway) ExtractFileText(ctx context.Context, u Upload) (string, error) {
	var resp models.ExtractTextResponse
	if err := g.postMultipart(ctx, "/upload-file", nil, &u, &resp); err != nil {
		return FallbackExtract, fmt.Errorf("extract file text: %w", err)
	}
	if resp.Error != "" {
		return FallbackExtract, fmt.Errorf("extract file text: %w", newAPIError(http.StatusOK, resp.Error))
	}
	return resp.Text, nil
}

func (g *HTTPGateway) ChatTurn(ctx context.Context, req models.ChatRequest) (ChatReply, error) {
	var resp models.ChatResponse
	if err := g.postJSON(ctx, "/chat", req, &resp); err != nil {
		return ChatReply{Reply: FallbackChat}, fmt.Errorf("chat: %w", err)
	}
	if resp.Error != "" {
		return ChatReply{Reply: FallbackChat}, fmt.Errorf("chat: %w", newAPIError(http.StatusOK, resp.Error))
	}
	if strings.TrimSpace(resp.Reply) == "" {
		resp.Reply = FallbackNoReply
	}
	return ChatReply{Reply: resp.Reply, Followups: resp.Followups}, nil
}

// decodeArray decodes a raw JSON array. A missing or null field decodes to
// an empty slice; anything else that is not an array is malformed.
func decodeArray(raw json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (g *HTTPGateway) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return g.do(ctx, path, "application/json", bytes.NewReader(body), out)
}

func (g *HTTPGateway) postMultipart(ctx context.Context, path string, fields map[string]string, file *Upload, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(file.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return g.do(ctx, path, mw.FormDataContentType(), &buf, out)
}

func (g *HTTPGateway) do(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("gateway", "request failed", map[string]interface{}{
			"path":       path,
			"request_id": requestID,
			"error":      err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	g.log.Debug("gateway", "request completed", map[string]interface{}{
		"path":        path,
		"request_id":  requestID,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return newAPIError(resp.StatusCode, e.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
