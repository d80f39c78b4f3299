package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"smartstudy/internal/export"
	"smartstudy/internal/gateway"
	"smartstudy/internal/logger"
	"smartstudy/internal/models"
	"smartstudy/internal/store"
)

const (
	Greeting          = "👋 Hey! I'm SmartStudy Bot. How can I help you today?"
	maxSuggestions    = 3
	uploadedPrefix    = "📤 Uploaded file: "
	uploadedAck       = "📚 File uploaded. I’ll use this to answer your questions."
	errorPrefix       = "❌ "
	assistantRoleName = "assistant"
)

var (
	ErrNoSuchSuggestion = errors.New("no such suggestion")

	listNumber = regexp.MustCompile(`^\d+\.\s*`)
)

// Chat is the chatbot conversation. Messages are persisted; the uploaded
// context and the current follow-up suggestions live only in memory.
type Chat struct {
	mu          sync.Mutex
	messages    []models.ChatMessage
	context     string
	suggestions []string

	store *store.SessionStore
	gw    gateway.Gateway
	log   logger.ILogger
}

func NewChat(ctx context.Context, st *store.SessionStore, gw gateway.Gateway, log logger.ILogger) *Chat {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Chat{store: st, gw: gw, log: log}
	var saved []models.ChatMessage
	if st.Load(ctx, store.ScopeChat, &saved) && len(saved) > 0 {
		c.messages = saved
	} else {
		c.messages = greeting()
	}
	return c
}

func greeting() []models.ChatMessage {
	return []models.ChatMessage{{Sender: models.SenderBot, Text: Greeting}}
}

func (c *Chat) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// Suggestions are the follow-ups of the last reply with list numbering
// stripped.
func (c *Chat) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.suggestions...)
}

func (c *Chat) appendMessages(ctx context.Context, msgs ...models.ChatMessage) error {
	c.messages = append(c.messages, msgs...)
	return c.store.Save(ctx, store.ScopeChat, c.messages)
}

// Send posts a user message and appends the bot's reply, or an error
// message when the backend cannot be reached. The returned error is the
// gateway error, for callers that care.
func (c *Chat) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyInput
	}

	c.mu.Lock()
	history := historyOf(c.messages)
	req := models.ChatRequest{Message: text, Context: c.context, History: history}
	c.suggestions = nil
	saveErr := c.appendMessages(ctx, models.ChatMessage{Sender: models.SenderUser, Text: text})
	c.mu.Unlock()

	reply, err := c.gw.ChatTurn(ctx, req)
	bot := models.ChatMessage{Sender: models.SenderBot, Text: reply.Reply}
	if err != nil {
		c.log.Warn("services", "chat turn failed", map[string]interface{}{"error": err.Error()})
		bot.Text = errorPrefix + gateway.FallbackChat
	} else if reply.Reply == gateway.FallbackNoReply {
		bot.Text = errorPrefix + gateway.FallbackNoReply
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.suggestions = cleanSuggestions(reply.Followups)
	}
	if e := c.appendMessages(ctx, bot); e != nil && saveErr == nil {
		saveErr = e
	}
	if err != nil {
		return bot, err
	}
	return bot, saveErr
}

// SendSuggestion sends the i-th follow-up suggestion as a message.
func (c *Chat) SendSuggestion(ctx context.Context, i int) (models.ChatMessage, error) {
	s := c.Suggestions()
	if i < 0 || i >= len(s) {
		return models.ChatMessage{}, ErrNoSuchSuggestion
	}
	return c.Send(ctx, s[i])
}

// UploadContext extracts a document and uses its text as context for the
// following turns.
func (c *Chat) UploadContext(ctx context.Context, u gateway.Upload) error {
	if err := gateway.ValidateUpload(u, gateway.DocumentTypes); err != nil {
		return err
	}

	c.mu.Lock()
	saveErr := c.appendMessages(ctx, models.ChatMessage{Sender: models.SenderUser, Text: uploadedPrefix + u.Name})
	c.mu.Unlock()

	text, err := c.gw.ExtractFileText(ctx, u)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		e := c.appendMessages(ctx, models.ChatMessage{Sender: models.SenderBot, Text: errorPrefix + "Failed to extract text from file."})
		return errors.Join(err, saveErr, e)
	}
	c.context = text
	if e := c.appendMessages(ctx, models.ChatMessage{Sender: models.SenderBot, Text: uploadedAck}); e != nil && saveErr == nil {
		saveErr = e
	}
	return saveErr
}

// Context is the text of the last uploaded document.
func (c *Chat) Context() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.context
}

func (c *Chat) Transcript() string {
	return export.Transcript(c.Messages())
}

func (c *Chat) PDF() ([]byte, error) {
	return export.TranscriptPDF(c.Messages())
}

// Clear restarts the conversation from the greeting.
func (c *Chat) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = greeting()
	c.context = ""
	c.suggestions = nil
	return c.store.Clear(ctx, store.ScopeChat)
}

func cleanSuggestions(followups []string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, f := range followups {
		f = strings.TrimSpace(listNumber.ReplaceAllString(strings.TrimSpace(f), ""))
		if f == "" {
			continue
		}
		out = append(out, f)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// historyOf converts the conversation to the backend's role/content form,
// leaving out the greeting.
func historyOf(msgs []models.ChatMessage) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(msgs))
	for i, m := range msgs {
		if i == 0 && m.Sender == models.SenderBot && m.Text == Greeting {
			continue
		}
		role := models.SenderUser
		if m.Sender == models.SenderBot {
			role = assistantRoleName
		}
		out = append(out, models.HistoryEntry{Role: role, Content: m.Text})
	}
	return out
}
