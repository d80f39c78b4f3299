// Package handlers exposes the study services over the local JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smartstudy/internal/gateway"
	"smartstudy/internal/models"
	"smartstudy/internal/services"
	"smartstudy/internal/session"
)

const maxUploadSize = 32 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

// handleServiceError maps service, session and gateway errors onto the
// error envelope.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, services.ErrEmptyInput),
		errors.Is(err, services.ErrInvalidStyle),
		errors.Is(err, services.ErrNoSuchSuggestion),
		errors.Is(err, session.ErrInvalidItem),
		errors.Is(err, session.ErrInvalidOption),
		errors.Is(err, session.ErrInvalidParams),
		errors.Is(err, session.ErrNotQuiz),
		errors.Is(err, session.ErrNotAnswered):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, gateway.ErrUnsupportedFile):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", err.Error(), r))
	case errors.Is(err, session.ErrIndexOutOfRange):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", err.Error(), r))
	case errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrAlreadyAnswered):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, session.ErrStaleResult):
		writeJSON(w, http.StatusConflict, errorResp("SUPERSEDED", err.Error(), r))
	case errors.Is(err, gateway.ErrEmptyResult):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EMPTY_RESULT", err.Error(), r))
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusOK {
			writeJSON(w, http.StatusUnprocessableEntity, errorResp("EMPTY_RESULT", apiErr.Message, r))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_ERROR", apiErr.Message, r))
	case errors.Is(err, gateway.ErrMalformedResponse):
		writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_ERROR", err.Error(), r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// decodeBody decodes a JSON request body into dst, writing the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

// readUpload reads the "file" field of a multipart request. A request
// without the field yields nil and no error when optional is set.
func readUpload(w http.ResponseWriter, r *http.Request, optional bool) (*gateway.Upload, bool) {
	if r.ContentLength > maxUploadSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 32MB limit", r))
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		if optional && errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read file", r))
		return nil, false
	}
	u := gateway.NewUpload(header.Filename, data)
	return &u, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid index", r))
		return 0, false
	}
	return i, true
}

func writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
