package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// maxFrameBytes caps a single media-stream frame. Carrier media frames are
// small, but the limit leaves room for batched payloads.
const maxFrameBytes = 1 << 20

// mediaEnvelope is one carrier Media Streams frame.
type mediaEnvelope struct {
	Event string      `json:"event"`
	Start *startFrame `json:"start"`
	Media *mediaFrame `json:"media"`
}

type startFrame struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

type mediaFrame struct {
	Payload string `json:"payload"`
}

// handleMediaStreamWS upgrades the request to a WebSocket and feeds carrier
// frames into the session manager. A malformed frame is logged and skipped;
// only connection errors end the loop.
func (s *Server) handleMediaStreamWS(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Warn("media stream upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	ctx := r.Context()
	var streamID, callID string
	started, stopped := false, false

	// A dropped carrier connection still finalizes its session.
	defer func() {
		if started && !stopped {
			slog.Warn("media stream closed without stop event", "stream", streamID)
			s.sessions.OnStop(context.WithoutCancel(ctx), streamID, callID)
		}
	}()

	slog.Info("media stream connected", "remote", r.RemoteAddr)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Info("media stream disconnected", "stream", streamID)
				conn.Close(websocket.StatusNormalClosure, "")
			} else {
				slog.Warn("media stream read failed", "stream", streamID, "err", err)
			}
			return
		}

		var env mediaEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("failed to parse media stream frame", "err", err)
			continue
		}

		switch strings.ToLower(env.Event) {
		case "start":
			if env.Start == nil {
				slog.Warn("start frame missing body")
				continue
			}
			streamID, callID = env.Start.StreamSid, env.Start.CallSid
			started = true
			if err := s.sessions.OnStart(ctx, streamID, callID); err != nil {
				slog.Warn("failed to start media session", "stream", streamID, "call", callID, "err", err)
			}
		case "media":
			if env.Media == nil || env.Media.Payload == "" {
				continue
			}
			s.sessions.OnMedia(ctx, streamID, env.Media.Payload)
		case "stop":
			stopped = true
			s.sessions.OnStop(ctx, streamID, callID)
		default:
			slog.Warn("unknown media stream event", "event", env.Event)
		}
	}
}

// handleMediaStreamForm is the form-encoded fallback carrying the same
// events. It answers 200 on every request so the carrier never retries.
func (s *Server) handleMediaStreamForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("failed to parse media stream form", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	streamID := r.PostFormValue("StreamSid")
	callID := r.PostFormValue("CallSid")
	payload := r.PostFormValue("MediaPayload")
	ctx := r.Context()

	switch event := r.PostFormValue("Event"); strings.ToLower(event) {
	case "start":
		if err := s.sessions.OnStart(ctx, streamID, callID); err != nil {
			slog.Warn("failed to start media session", "stream", streamID, "call", callID, "err", err)
		}
	case "media":
		if payload != "" {
			s.sessions.OnMedia(ctx, streamID, payload)
		}
	case "stop":
		s.sessions.OnStop(ctx, streamID, callID)
	default:
		slog.Warn("unknown media stream event", "event", event)
	}
	w.WriteHeader(http.StatusOK)
}
