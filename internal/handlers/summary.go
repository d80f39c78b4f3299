package handlers

import (
	"net/http"

	"smartstudy/internal/models"
	"smartstudy/internal/services"
)

type SummaryHandler struct {
	summary *services.Summary
}

func NewSummaryHandler(summary *services.Summary) *SummaryHandler {
	return &SummaryHandler{summary: summary}
}

func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.summary.Snapshot())
}

func (h *SummaryHandler) SetText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.summary.SetText(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SummaryHandler) SetStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.summary.SetStyle(r.Context(), req.Style)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Generate summarises the stored text. When the backend fails the fallback
// message comes back in the error envelope and the previous summary stays.
func (h *SummaryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.summary.Generate(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.summary.Snapshot())
}

func (h *SummaryHandler) Import(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r, false)
	if !ok {
		return
	}
	if _, err := h.summary.ImportFile(r.Context(), *u); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.summary.Snapshot())
}

func (h *SummaryHandler) PDF(w http.ResponseWriter, r *http.Request) {
	if h.summary.Snapshot().Summary == "" {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No summary to export", r))
		return
	}
	data, err := h.summary.PDF()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writePDF(w, "summary.pdf", data)
}

func (h *SummaryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.summary.Clear(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SummarySnapshot{Style: models.StyleConcise})
}
