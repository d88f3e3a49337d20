package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	roomID string
	userID string
	conn   *websocket.Conn
	send   chan envelope
	log    zerolog.Logger
}

// Hub fans engine events out to connected clients. It implements both the
// room-facing sink and the private disclosure sink.
type Hub struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	users map[string]map[*client]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[*client]struct{}),
		users: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*client]struct{})
	}
	h.rooms[c.roomID][c] = struct{}{}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.rooms[c.roomID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
	if set := h.users[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
}

// broadcast delivers to every client in the room, dropping the message for
// clients whose outbound buffer is full rather than blocking the engine.
func (h *Hub) broadcast(roomID string, msg envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("room", roomID).Msg("dropping room event for slow client")
		}
	}
}

func (h *Hub) SessionStarted(roomID string, info app.StartInfo) {
	h.broadcast(roomID, envelope{Type: "sessionStarted", Payload: info})
}

func (h *Hub) QuestionPosted(roomID string, view app.QuestionView) {
	h.broadcast(roomID, envelope{Type: "question", Payload: view})
}

func (h *Hub) Progress(roomID string, view app.QuestionView) {
	h.broadcast(roomID, envelope{Type: "progress", Payload: view})
}

func (h *Hub) TimeUp(roomID string, reveal app.Reveal) {
	h.broadcast(roomID, envelope{Type: "timeUp", Payload: reveal})
}

func (h *Hub) SessionFinished(roomID string, board []domain.LeaderboardEntry) {
	h.broadcast(roomID, envelope{Type: "sessionFinished", Payload: board})
}

// Notify delivers the answer receipt to the participant's connections.
func (h *Hub) Notify(_ context.Context, participantID string, receipt domain.AnswerReceipt) error {
	return h.toUser(participantID, envelope{Type: "answerReceipt", Payload: receipt})
}

// Summary delivers the end-of-session summary to the participant.
func (h *Hub) Summary(_ context.Context, participantID string, summary domain.ParticipantSummary) error {
	return h.toUser(participantID, envelope{Type: "sessionSummary", Payload: summary})
}

func (h *Hub) toUser(participantID string, msg envelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.users[participantID]
	if len(set) == 0 {
		return fmt.Errorf("participant %s not connected", participantID)
	}
	delivered := false
	for c := range set {
		select {
		case c.send <- msg:
			delivered = true
		default:
		}
	}
	if !delivered {
		return fmt.Errorf("participant %s unreachable", participantID)
	}
	return nil
}
