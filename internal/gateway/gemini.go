package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"smartstudy/internal/extract"
	"smartstudy/internal/logger"
	"smartstudy/internal/models"
)

// generator turns a prompt into model text.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	model *genai.GenerativeModel
	log   logger.ILogger
}

func (g genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn("gemini", "candidate stopped early", map[string]interface{}{
				"candidate":     i,
				"finish_reason": cand.FinishReason.String(),
			})
		}
	}
	return strings.TrimSpace(extractText(resp)), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// GeminiGateway answers every backend capability locally by prompting
// Gemini directly. File extraction never leaves the machine.
type GeminiGateway struct {
	client   *genai.Client
	gen      generator
	log      logger.ILogger
	rateChan chan struct{}
}

func NewGeminiGateway(ctx context.Context, apiKey, model string, concurrentReqs int, log logger.ILogger) (*GeminiGateway, error) {
	if log == nil {
		log = logger.NewNop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.3)
	m.SetTopP(0.95)

	g := newGeminiGateway(genaiGenerator{model: m, log: log}, concurrentReqs, log)
	g.client = client
	return g, nil
}

func newGeminiGateway(gen generator, concurrentReqs int, log logger.ILogger) *GeminiGateway {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}
	return &GeminiGateway{gen: gen, log: log, rateChan: rateChan}
}

func (g *GeminiGateway) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// acquireRate blocks until a model slot is free.
func (g *GeminiGateway) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGateway) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGateway) ask(ctx context.Context, prompt string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()
	return g.gen.generate(ctx, prompt)
}

var summaryInstructions = map[string]string{
	models.StyleConcise:    "Write a short and to-the-point paragraph summary of the following content.",
	models.StyleDetailed:   "Provide a detailed summary with key points, examples, and supporting information in a clear paragraph format.",
	models.StyleNumbered:   "Summarize the following content in at least 5 to 10 numbered points.",
	models.StyleSimplified: "Summarize in simplified, easy-to-understand English for a 10th-grade student.",
}

func (g *GeminiGateway) GenerateSummary(ctx context.Context, text, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return FallbackSummary, fmt.Errorf("generate summary: %w", newAPIError(http.StatusBadRequest, "No text provided"))
	}
	instruction, ok := summaryInstructions[style]
	if !ok {
		instruction = summaryInstructions[models.StyleConcise]
	}

	out, err := g.ask(ctx, instruction+"\n\nText:\n"+text)
	if err != nil {
		return FallbackSummary, fmt.Errorf("generate summary: %w", err)
	}
	if out == "" {
		return FallbackNoSummary, nil
	}
	return out, nil
}

func (g *GeminiGateway) GenerateQuiz(ctx context.Context, text string, count int, difficulty string) ([]models.StudyItem, error) {
	if strings.TrimSpace(text) == "" {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", newAPIError(http.StatusBadRequest, "No text provided"))
	}

	out, err := g.ask(ctx, buildQuizPrompt(text, count, difficulty))
	if err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", err)
	}

	var qs []models.QuizQuestion
	if err := json.Unmarshal([]byte(jsonArray(out)), &qs); err != nil {
		g.log.Warn("gemini", "quiz response is not a JSON array", map[string]interface{}{"error": err.Error()})
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w: %v", ErrMalformedResponse, err)
	}
	if len(qs) == 0 {
		return []models.StudyItem{}, fmt.Errorf("generate quiz: %w", ErrEmptyResult)
	}
	return quizItems(qs), nil
}

func (g *GeminiGateway) GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]models.StudyItem, error) {
	fileText := ""
	if req.File != nil {
		if err := ValidateUpload(*req.File, FlashcardTypes); err != nil {
			return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", newAPIError(http.StatusBadRequest, "Unsupported file format"))
		}
		t, err := extract.Text(req.File.MIME, req.File.Data)
		if err != nil {
			return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", err)
		}
		fileText = t
	}

	content := strings.TrimSpace(req.Text) + "\n" + strings.TrimSpace(fileText)
	if strings.TrimSpace(content) == "" {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", newAPIError(http.StatusBadRequest, "No content to generate flashcards"))
	}
	count := req.Count
	if count <= 0 {
		count = 10
	}

	out, err := g.ask(ctx, buildFlashcardPrompt(content, count))
	if err != nil {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", err)
	}

	var cards []models.Flashcard
	if err := json.Unmarshal([]byte(jsonArray(out)), &cards); err != nil {
		g.log.Warn("gemini", "flashcard response is not a JSON array", map[string]interface{}{"error": err.Error()})
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w: %v", ErrMalformedResponse, err)
	}

	complete := cards[:0]
	for _, c := range cards {
		if strings.TrimSpace(c.Question) != "" && strings.TrimSpace(c.Answer) != "" {
			complete = append(complete, c)
		}
	}
	if len(complete) == 0 {
		return []models.StudyItem{}, fmt.Errorf("generate flashcards: %w", ErrEmptyResult)
	}
	return flashcardItems(complete), nil
}

func (g *GeminiGateway) GenerateHint(ctx context.Context, question, context string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return FallbackHint, fmt.Errorf("generate hint: %w", newAPIError(http.StatusBadRequest, "Question text missing"))
	}
	prompt := fmt.Sprintf("Give a helpful hint for this MCQ using the context below.\n\nQuestion: %s\n\nContext:\n%s", question, context)
	out, err := g.ask(ctx, prompt)
	if err != nil {
		return FallbackHint, fmt.Errorf("generate hint: %w", err)
	}
	if out == "" {
		return FallbackHint, fmt.Errorf("generate hint: %w", ErrEmptyResult)
	}
	return out, nil
}

func (g *GeminiGateway) ExplainAnswer(ctx context.Context, req models.ExplainRequest) (string, error) {
	if req.Question == "" || req.CorrectAnswer == "" {
		return FallbackExplanation, fmt.Errorf("explain answer: %w", newAPIError(http.StatusBadRequest, "Missing required data"))
	}
	prompt := fmt.Sprintf(`You are an AI tutor. Explain why the answer "%s" is correct for the question below.
Also mention if the user's selected answer "%s" is incorrect, why it's wrong, based on the context.

Question: %s
Context: %s
`, req.CorrectAnswer, req.UserAnswer, req.Question, req.Context)

	out, err := g.ask(ctx, prompt)
	if err != nil {
		return FallbackExplanation, fmt.Errorf("explain answer: %w", err)
	}
	if out == "" {
		return FallbackExplanation, fmt.Errorf("explain answer: %w", ErrEmptyResult)
	}
	return out, nil
}

// ExtractFileText runs locally; no model call is made.
func (g *GeminiGateway) ExtractFileText(_ context.Context, u Upload) (string, error) {
	if err := ValidateUpload(u, DocumentTypes); err != nil {
		return FallbackExtract, fmt.Errorf("extract file text: %w", newAPIError(http.StatusBadRequest, "Invalid file type"))
	}
	text, err := extract.Text(u.MIME, u.Data)
	if err != nil {
		g.log.Warn("gemini", "file extraction failed", map[string]interface{}{"file": u.Name, "error": err.Error()})
		return FallbackExtract, fmt.Errorf("extract file text: %w", err)
	}
	return text, nil
}

func (g *GeminiGateway) ChatTurn(ctx context.Context, req models.ChatRequest) (ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ChatReply{Reply: FallbackChat}, fmt.Errorf("chat: %w", newAPIError(http.StatusBadRequest, "Empty message"))
	}

	out, err := g.ask(ctx, buildChatPrompt(message, req.Context, req.History))
	if err != nil {
		return ChatReply{Reply: FallbackChat}, fmt.Errorf("chat: %w", err)
	}

	reply, followups := splitFollowups(out)
	if reply == "" {
		reply = FallbackNoReply
	}
	return ChatReply{Reply: reply, Followups: followups}, nil
}

// jsonArray cuts the outermost [...] out of model text that may carry
// prose or code fences around it.
func jsonArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

const followupMarker = "Follow-Up Prompts:"

func splitFollowups(text string) (string, []string) {
	answer, rest, found := strings.Cut(text, followupMarker)
	answer = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(answer), "Answer:"))
	if !found {
		return answer, []string{}
	}
	lines := []string{}
	for _, line := range strings.Split(rest, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
		if len(lines) == 3 {
			break
		}
	}
	return answer, lines
}

func buildQuizPrompt(text string, count int, difficulty string) string {
	return fmt.Sprintf(`
Generate %d multiple-choice questions from the following text.
Make them %s difficulty level. Each question must include:
- question
- options (a list of 4 options)
- correct_answer

Return ONLY a JSON array of objects, no explanation or notes.

Text:
%s
`, count, difficulty, text)
}

func buildFlashcardPrompt(content string, count int) string {
	return fmt.Sprintf("Generate %d flashcards as a JSON array. "+
		"Each object must have these fields (no empty values!): "+
		"question, answer, hint, explanation. "+
		"Fill ALL fields with meaningful content derived from the input. "+
		"Respond ONLY with the JSON array, no other explanation or text. "+
		"Example:\n"+
		`[{"question": "What is X?", "answer": "X is ...", "hint": "Think about ...", "explanation": "Because ..."}]`+"\n"+
		"Content:\n%s", count, content)
}

func buildChatPrompt(message, context string, history []models.HistoryEntry) string {
	lines := make([]string, 0, len(history))
	for _, h := range history {
		role := h.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		lines = append(lines, role+": "+h.Content)
	}

	return fmt.Sprintf(`
You are SmartStudy AI, a helpful academic assistant.

Here is the previous chat history:
%s

Context: %s

Now answer the new message below. Always include proper citations, references, or source links if available.
Then suggest 2-3 follow-up questions.

User: %s

Format:
Answer: <your answer with citations or source links>

%s
1. <first question>
2. <second question>
3. <third question>
`, strings.Join(lines, "\n"), context, message, followupMarker)
}
