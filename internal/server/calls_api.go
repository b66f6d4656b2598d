package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/callsight/callsight/pkg/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type apiError struct {
	Error string `json:"error"`
}

// handleListCalls returns the most recent call records, newest first.
// The limit query parameter caps the page size.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	calls, err := s.calls.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list calls", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to list calls"})
		return
	}
	if calls == nil {
		calls = []store.CallRecord{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("callID")
	rec, err := s.calls.Get(r.Context(), callID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "call not found"})
	case err != nil:
		slog.Error("failed to load call", "call", callID, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load call"})
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleGetTranscript returns a call's transcript chunks in chronological
// order. Unknown calls yield 404; a known call with no chunks yields an
// empty array.
func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("callID")
	if _, err := s.calls.Get(r.Context(), callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "call not found"})
			return
		}
		slog.Error("failed to load call", "call", callID, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load call"})
		return
	}

	chunks, err := s.transcript.ListByCall(r.Context(), callID)
	if err != nil {
		slog.Error("failed to load transcript", "call", callID, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to load transcript"})
		return
	}
	if chunks == nil {
		chunks = []store.TranscriptChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
