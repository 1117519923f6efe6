package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/tutor-portal/internal/admin"
	"github.com/p-n-ai/tutor-portal/internal/identity"
	"github.com/p-n-ai/tutor-portal/internal/progress"
	"github.com/p-n-ai/tutor-portal/internal/quiz"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Message: message, Code: code}})
}

// errorMapping pairs a sentinel with the response it produces.
type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the save failures wrap store errors and come first.
var errorMappings = []errorMapping{
	{quiz.ErrNotSaved, http.StatusServiceUnavailable, "not_saved"},
	{progress.ErrUpsertFailed, http.StatusServiceUnavailable, "not_saved"},
	{identity.ErrUnauthenticated, http.StatusUnauthorized, "sign_in"},
	{identity.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{quiz.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{quiz.ErrNoQuestions, http.StatusNotFound, "no_questions"},
	{progress.ErrUnknownTopic, http.StatusNotFound, "unknown_topic"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{store.ErrConflict, http.StatusConflict, "conflict"},
	{store.ErrInvalidReference, http.StatusUnprocessableEntity, "invalid_reference"},
	{admin.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{progress.ErrInvalidConfidence, http.StatusBadRequest, "invalid_confidence"},
	{quiz.ErrInvalidOption, http.StatusBadRequest, "invalid_option"},
	{quiz.ErrNotAnswered, http.StatusConflict, "not_answered"},
	{quiz.ErrFinished, http.StatusConflict, "finished"},
	{quiz.ErrNotStarted, http.StatusConflict, "not_started"},
}

// writeServiceError maps err onto an HTTP response. Unknown errors are
// logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body: "+err.Error())
		return false
	}
	return true
}
