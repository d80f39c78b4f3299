package models

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage is a single entry of the persisted conversation.
type ChatMessage struct {
	Sender string `json:"sender"` // "user" or "bot"
	Text   string `json:"text"`
}

// HistoryEntry is the role/content shape the backend expects for prior turns.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string         `json:"message"`
	Context string         `json:"context"`
	History []HistoryEntry `json:"history,omitempty"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply     string   `json:"reply"`
	Followups []string `json:"followups"`
	Error     string   `json:"error,omitempty"`
}
