package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"smartstudy/internal/gateway"
	"smartstudy/internal/models"
	"smartstudy/internal/services"
	"smartstudy/internal/session"
)

// StudyHandler serves one quiz or flashcard session.
type StudyHandler struct {
	study *services.Study
}

func NewStudyHandler(study *services.Study) *StudyHandler {
	return &StudyHandler{study: study}
}

type progress struct {
	Total        int `json:"total"`
	Answered     int `json:"answered"`
	Known        int `json:"known"`
	KnownPercent int `json:"known_percent"`
}

type studyResponse struct {
	Session  session.Snapshot `json:"session"`
	Progress progress         `json:"progress"`
	Score    *session.Score   `json:"score,omitempty"`
}

func newStudyResponse(snap session.Snapshot) studyResponse {
	return studyResponse{
		Session: snap,
		Progress: progress{
			Total:        snap.Len(),
			Answered:     snap.Answered(),
			Known:        len(snap.Known),
			KnownPercent: snap.KnownPercent(),
		},
	}
}

// respond writes the snapshot returned by a service call, or the error.
func (h *StudyHandler) respond(w http.ResponseWriter, r *http.Request, snap session.Snapshot, err error) {
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStudyResponse(snap))
}

func (h *StudyHandler) action(fn func(context.Context) (session.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := fn(r.Context())
		h.respond(w, r, snap, err)
	}
}

func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStudyResponse(h.study.Snapshot()))
}

func (h *StudyHandler) SetSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.study.SetSourceText(r.Context(), req.Text)
	h.respond(w, r, snap, err)
}

func (h *StudyHandler) SetParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count      int    `json:"count"`
		Difficulty string `json:"difficulty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.study.SetParams(r.Context(), req.Count, req.Difficulty)
	if errors.Is(err, session.ErrInvalidParams) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"count":      "must be between 1 and 50",
			"difficulty": "must be one of " + strings.Join(session.Difficulties, ", "),
		}, r))
		return
	}
	h.respond(w, r, snap, err)
}

// Generate accepts an empty body or a multipart form with an optional
// "file" field.
func (h *StudyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var file *gateway.Upload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		u, ok := readUpload(w, r, true)
		if !ok {
			return
		}
		file = u
	}
	snap, err := h.study.Generate(r.Context(), file)
	h.respond(w, r, snap, err)
}

func (h *StudyHandler) Import(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r, false)
	if !ok {
		return
	}
	if _, err := h.study.ImportFile(r.Context(), *u); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStudyResponse(h.study.Snapshot()))
}

func (h *StudyHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.action(h.study.Advance)(w, r)
}

func (h *StudyHandler) Rewind(w http.ResponseWriter, r *http.Request) {
	h.action(h.study.Rewind)(w, r)
}

func (h *StudyHandler) Shuffle(w http.ResponseWriter, r *http.Request) {
	h.action(h.study.Shuffle)(w, r)
}

func (h *StudyHandler) Retake(w http.ResponseWriter, r *http.Request) {
	h.action(h.study.Retake)(w, r)
}

func (h *StudyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.action(h.study.Reset)(w, r)
}

func (h *StudyHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item models.StudyItem
	if !decodeBody(w, r, &item) {
		return
	}
	snap, err := h.study.AddOrEdit(r.Context(), nil, item)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newStudyResponse(snap))
}

func (h *StudyHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var item models.StudyItem
	if !decodeBody(w, r, &item) {
		return
	}
	snap, err := h.study.AddOrEdit(r.Context(), &index, item)
	h.respond(w, r, snap, err)
}

func (h *StudyHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	snap, err := h.study.Delete(r.Context(), index)
	h.respond(w, r, snap, err)
}

func (h *StudyHandler) Answer(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Option string `json:"option"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.study.SelectOption(r.Context(), index, req.Option)
	h.respond(w, r, snap, err)
}

func (h *StudyHandler) Hint(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	hint, err := h.study.Hint(r.Context(), index)
	if err != nil && hint == "" {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"index":    index,
		"hint":     hint,
		"fallback": err != nil,
	})
}

func (h *StudyHandler) Explain(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	explanation, err := h.study.Explain(r.Context(), index)
	if err != nil && explanation == "" {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"index":       index,
		"explanation": explanation,
		"fallback":    err != nil,
	})
}

func (h *StudyHandler) Score(w http.ResponseWriter, r *http.Request) {
	snap, score, err := h.study.ShowScore(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	resp := newStudyResponse(snap)
	resp.Score = &score
	writeJSON(w, http.StatusOK, resp)
}
