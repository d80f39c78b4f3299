package handlers

import (
	"net/http"

	"smartstudy/internal/models"
	"smartstudy/internal/services"
)

type ChatHandler struct {
	chat *services.Chat
}

func NewChatHandler(chat *services.Chat) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatResponse struct {
	Messages    []models.ChatMessage `json:"messages"`
	Suggestions []string             `json:"suggestions"`
	HasContext  bool                 `json:"has_context"`
}

func (h *ChatHandler) state() chatResponse {
	suggestions := h.chat.Suggestions()
	if suggestions == nil {
		suggestions = []string{}
	}
	return chatResponse{
		Messages:    h.chat.Messages(),
		Suggestions: suggestions,
		HasContext:  h.chat.Context() != "",
	}
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

// Send posts a message. A backend failure is not an HTTP error: the bot's
// error message is part of the conversation.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.chat.Send(r.Context(), req.Text); err == services.ErrEmptyInput {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *ChatHandler) SendSuggestion(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if _, err := h.chat.SendSuggestion(r.Context(), index); err == services.ErrNoSuchSuggestion {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", err.Error(), r))
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r, false)
	if !ok {
		return
	}
	if err := h.chat.UploadContext(r.Context(), *u); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.chat.Transcript()))
}

func (h *ChatHandler) PDF(w http.ResponseWriter, r *http.Request) {
	data, err := h.chat.PDF()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writePDF(w, "chat.pdf", data)
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Clear(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}
