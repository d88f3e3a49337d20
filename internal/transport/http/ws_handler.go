// Package http is the command-dispatch layer: it maps websocket messages onto
// engine operations and renders engine results and failures back to clients.
// Command wire format is owned here, not by the engine.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		engine: engine,
		hub:    hub,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Topic string `json:"topic"`
	Mode  string `json:"mode"`
}

type answerPayload struct {
	QuestionID int64 `json:"questionId"`
	Option     int   `json:"option"`
}

type windowedPayload struct {
	Days int `json:"days"`
}

type setTimePayload struct {
	Seconds int `json:"seconds"`
}

type bulkAddPayload struct {
	Questions []domain.Question `json:"questions"`
}

type bulkAddResult struct {
	Added    int      `json:"added"`
	Failures []string `json:"failures,omitempty"`
}

type questionAddedPayload struct {
	ID int64 `json:"id"`
}

type removePayload struct {
	IDs []int64 `json:"ids"`
}

type removeResult struct {
	Removed []int64 `json:"removed"`
	Missing []int64 `json:"missing,omitempty"`
}

type ackPayload struct {
	Changed bool `json:"changed"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and runs the per-client dispatch loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if roomID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing roomId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{roomID: roomID, userID: userID, conn: conn, send: make(chan envelope, 16), log: h.log}
	h.hub.register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn().Err(err).Msg("ws write failed")
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid start payload"}})
				continue
			}
			info, err := h.engine.Start(ctx, roomID, userID, payload.Topic, payload.Mode)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "started", Payload: info})

		case "pause":
			changed, err := h.engine.Pause(ctx, roomID, userID)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "paused", Payload: ackPayload{Changed: changed}})

		case "resume":
			changed, err := h.engine.Resume(ctx, roomID, userID)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "resumed", Payload: ackPayload{Changed: changed}})

		case "stop":
			if err := h.engine.Stop(ctx, roomID, userID); err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "stopped", Payload: ackPayload{Changed: true}})

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			receipt, err := h.engine.Submit(ctx, roomID, userID, displayName, payload.QuestionID, payload.Option)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "answerResult", Payload: receipt})

		case "leaderboard":
			c.reply(envelope{Type: "leaderboard", Payload: h.engine.Cumulative(roomID)})

		case "windowed":
			var payload windowedPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid windowed payload"}})
				continue
			}
			c.reply(envelope{Type: "windowedLeaderboard", Payload: h.engine.Windowed(roomID, payload.Days)})

		case "reset":
			if err := h.engine.Reset(ctx, roomID, userID); err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "resetDone", Payload: ackPayload{Changed: true}})

		case "setTime":
			var payload setTimePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid setTime payload"}})
				continue
			}
			seconds, err := h.engine.SetQuestionTime(ctx, roomID, userID, payload.Seconds)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "timeSet", Payload: setTimePayload{Seconds: seconds}})

		case "topics":
			c.reply(envelope{Type: "topics", Payload: h.engine.Topics()})

		case "listQuestions":
			questions, err := h.engine.ListQuestions(ctx, roomID, userID)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "questions", Payload: questions})

		case "addQuestion":
			var payload domain.Question
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid question payload"}})
				continue
			}
			id, err := h.engine.AddQuestion(ctx, roomID, userID, payload)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "questionAdded", Payload: questionAddedPayload{ID: id}})

		case "bulkAddQuestions":
			var payload bulkAddPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid bulk payload"}})
				continue
			}
			added, failures, err := h.engine.BulkAddQuestions(ctx, roomID, userID, payload.Questions)
			if err != nil {
				c.replyErr(err)
				continue
			}
			result := bulkAddResult{Added: added}
			for _, failure := range failures {
				result.Failures = append(result.Failures, failure.Error())
			}
			c.reply(envelope{Type: "questionsBulkAdded", Payload: result})

		case "editQuestion":
			var payload domain.Question
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid question payload"}})
				continue
			}
			if err := h.engine.EditQuestion(ctx, roomID, userID, payload.ID, payload); err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "questionEdited", Payload: questionAddedPayload{ID: payload.ID}})

		case "removeQuestions":
			var payload removePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply(envelope{Type: "error", Payload: errorPayload{Message: "invalid remove payload"}})
				continue
			}
			removed, missing, err := h.engine.RemoveQuestions(ctx, roomID, userID, payload.IDs)
			if err != nil {
				c.replyErr(err)
				continue
			}
			c.reply(envelope{Type: "questionsRemoved", Payload: removeResult{Removed: removed, Missing: missing}})

		default:
			c.reply(envelope{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	// Leave the hub before closing the channel so no broadcast can reach it.
	h.hub.unregister(c)
	close(c.send)
	<-writerDone
}

func (c *client) reply(msg envelope) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("user", c.userID).Msg("dropping reply for slow client")
	}
}

func (c *client) replyErr(err error) {
	c.reply(envelope{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
