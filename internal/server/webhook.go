package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"github.com/callsight/callsight/pkg/store"
)

// handleVoiceWebhook answers the carrier's inbound-call webhook with TwiML
// that connects the call's audio to the media-stream endpoint.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	if !s.validSignature(r) {
		slog.Warn("rejected webhook with invalid signature", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	rec := store.CallRecord{
		CallID:    callID,
		From:      r.PostFormValue("From"),
		To:        r.PostFormValue("To"),
		Direction: r.PostFormValue("Direction"),
		Status:    r.PostFormValue("CallStatus"),
		StartedAt: time.Now().UTC(),
	}
	s.callEvents.CallDiscovered(r.Context(), rec)

	streamURL := s.mediaStreamURL(r)
	doc, err := voiceTwiML(streamURL)
	if err != nil {
		slog.Error("failed to render voice response", "call", callID, "err", err)
		http.Error(w, "twiml generation failed", http.StatusInternalServerError)
		return
	}
	slog.Info("answering call with media stream", "call", callID, "url", streamURL)
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, doc)
}

// handleStatusWebhook ingests carrier call-status callbacks.
func (s *Server) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	if !s.validSignature(r) {
		slog.Warn("rejected webhook with invalid signature", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	callID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")
	if callID == "" || status == "" {
		http.Error(w, "missing CallSid or CallStatus", http.StatusBadRequest)
		return
	}
	s.callEvents.CallStatusChanged(r.Context(), callID, status)
	w.WriteHeader(http.StatusOK)
}

// validSignature checks X-Twilio-Signature against the posted form. With no
// auth token configured, validation is disabled.
func (s *Server) validSignature(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	url := s.webhookBaseURL + r.URL.RequestURI()
	return s.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature"))
}

// mediaStreamURL derives the WebSocket URL for the TwiML <Stream> verb from
// the configured base URL, falling back to the request host.
func (s *Server) mediaStreamURL(r *http.Request) string {
	base := s.webhookBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/api/twilio/media-stream"
}

// voiceTwiML renders <Response><Connect><Stream url=.../></Connect></Response>.
func voiceTwiML(streamURL string) (string, error) {
	stream := &twiml.VoiceStream{Url: streamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	return twiml.Voice([]twiml.Element{connect})
}
