package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// sendBufferSize bounds the per-client outbound queue. A client that
	// cannot drain this many events loses the overflow instead of
	// stalling broadcasts to everyone else.
	sendBufferSize = 32

	// writeTimeout caps a single WebSocket write to one client.
	writeTimeout = 5 * time.Second
)

// clientMessage is the inbound control frame sent by dashboard clients.
type clientMessage struct {
	Action string `json:"action"`
	CallID string `json:"callId"`
}

// client is one connected dashboard WebSocket.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// enqueue hands an event to the client's write pump without blocking. Full
// buffers drop the event; slow dashboards must not back-pressure the
// pipeline.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Warn("dashboard client too slow, dropping event", "client", c.id)
	}
}

// writePump serializes all writes to the connection. It exits when the
// connection context is cancelled or a write fails; the read loop then
// observes the broken connection and unregisters the client.
func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Hub implements [Broadcaster] over a set of WebSocket clients with
// per-call subscription groups.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	groups  map[string]map[string]*client
	closed  bool
}

// NewHub returns an empty hub ready to accept connections.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		groups:  make(map[string]map[string]*client),
	}
}

var _ Broadcaster = (*Hub)(nil)

// HandleConnection registers conn as a dashboard client and services it
// until the client disconnects, the context is cancelled, or the hub shuts
// down. The caller owns the HTTP upgrade; conn must be an accepted
// WebSocket connection.
//
// The client is greeted with a connection_established frame carrying its
// assigned ID, then drives its group membership with subscribe_call and
// unsubscribe_call action frames.
func (h *Hub) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if !h.register(c) {
		conn.Close(websocket.StatusGoingAway, "hub is shutting down")
		return
	}
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writePump(ctx)

	slog.Info("dashboard client connected", "client", c.id)
	h.sendControl(c, map[string]string{
		"event":    "connection_established",
		"clientId": c.id,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Info("dashboard client disconnected", "client", c.id)
			} else {
				slog.Warn("dashboard client read failed", "client", c.id, "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("dashboard client sent malformed frame", "client", c.id, "err", err)
			continue
		}

		switch strings.ToLower(msg.Action) {
		case "subscribe_call":
			group := CallGroup(msg.CallID)
			h.subscribe(c, group)
			h.sendControl(c, map[string]string{
				"event": "subscription_confirmed",
				"group": group,
			})
		case "unsubscribe_call":
			group := CallGroup(msg.CallID)
			h.unsubscribe(c, group)
			h.sendControl(c, map[string]string{
				"event": "subscription_removed",
				"group": group,
			})
		default:
			slog.Warn("dashboard client sent unknown action", "client", c.id, "action", msg.Action)
		}
	}
}

// Close disconnects every client and rejects future connections. Pending
// broadcasts already snapshotted may still be dropped silently.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*client)
	h.groups = make(map[string]map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	return nil
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize returns the number of clients subscribed to group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	for group, members := range h.groups {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

func (h *Hub) subscribe(c *client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*client)
		h.groups[group] = members
	}
	members[c.id] = c
	slog.Debug("dashboard client subscribed", "client", c.id, "group", group)
}

func (h *Hub) unsubscribe(c *client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(h.groups, group)
	}
	slog.Debug("dashboard client unsubscribed", "client", c.id, "group", group)
}

// sendControl enqueues a hub control frame for one client.
func (h *Hub) sendControl(c *client, payload map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// broadcastGroup delivers an event to every member of group.
func (h *Hub) broadcastGroup(group string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal push event: %w", err)
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
	return nil
}

// broadcastAll delivers an event to every connected client.
func (h *Hub) broadcastAll(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal push event: %w", err)
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
	return nil
}

// BroadcastTranscriptUpdate implements [Broadcaster].
func (h *Hub) BroadcastTranscriptUpdate(_ context.Context, callID, text string, isFinal bool) error {
	return h.broadcastGroup(CallGroup(callID), TranscriptUpdate{
		Event:   EventTranscriptUpdate,
		CallID:  callID,
		Text:    text,
		IsFinal: isFinal,
	})
}

// BroadcastCallStatusUpdate implements [Broadcaster]. Discovery statuses
// reach every connected client; all others stay inside the call group.
func (h *Hub) BroadcastCallStatusUpdate(_ context.Context, callID, status string) error {
	event := CallStatusUpdate{
		Event:  EventCallStatusUpdate,
		CallID: callID,
		Status: status,
	}
	if IsGlobalStatus(status) {
		return h.broadcastAll(event)
	}
	return h.broadcastGroup(CallGroup(callID), event)
}

// BroadcastLocationUpdate implements [Broadcaster].
func (h *Hub) BroadcastLocationUpdate(_ context.Context, callID string, latitude, longitude float64, address string) error {
	return h.broadcastGroup(CallGroup(callID), LocationUpdate{
		Event:     EventLocationUpdate,
		CallID:    callID,
		Latitude:  latitude,
		Longitude: longitude,
		Address:   address,
	})
}

// BroadcastSummaryUpdate implements [Broadcaster].
func (h *Hub) BroadcastSummaryUpdate(_ context.Context, callID, summary string, keyFindings []string) error {
	if keyFindings == nil {
		keyFindings = []string{}
	}
	return h.broadcastGroup(CallGroup(callID), SummaryUpdate{
		Event:       EventSummaryUpdate,
		CallID:      callID,
		Summary:     summary,
		KeyFindings: keyFindings,
	})
}
