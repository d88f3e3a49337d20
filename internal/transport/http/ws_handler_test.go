package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/bank"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func TestWebSocketSessionFlow(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "room-1", "u1", "Alice")
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type":    "start",
		"payload": map[string]any{"topic": "", "mode": "short"},
	}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// The room broadcast and the command reply all land on this connection.
	seen := map[string]json.RawMessage{}
	for i := 0; i < 3; i++ {
		typ, payload := readNext(conn, t, "")
		seen[typ] = payload
	}
	for _, want := range []string{"sessionStarted", "question", "started"} {
		if _, ok := seen[want]; !ok {
			t.Fatalf("expected a %s message, got %v", want, seen)
		}
	}
	var view app.QuestionView
	if err := json.Unmarshal(seen["question"], &view); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if view.QuestionID != 1 || view.Number != 1 || view.Total != 1 {
		t.Fatalf("unexpected question view %+v", view)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": view.QuestionID, "option": 1},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	receiptSeen, resultSeen := false, false
	for i := 0; i < 2; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answerReceipt":
			receiptSeen = true
		case "answerResult":
			resultSeen = true
			var receipt domain.AnswerReceipt
			if err := json.Unmarshal(payload, &receipt); err != nil {
				t.Fatalf("decode receipt: %v", err)
			}
			if !receipt.Correct || receipt.ChosenOption != "4" {
				t.Fatalf("expected a correct answer for option 4, got %+v", receipt)
			}
		}
	}
	if !receiptSeen || !resultSeen {
		t.Fatalf("expected answerReceipt and answerResult, got receipt=%v result=%v", receiptSeen, resultSeen)
	}

	if err := conn.WriteJSON(map[string]any{"type": "leaderboard"}); err != nil {
		t.Fatalf("write leaderboard: %v", err)
	}
	_, payload := readNext(conn, t, "leaderboard")
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].DisplayName != "Alice" || entries[0].Score != 1 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func TestWebSocketWindowedWithoutHistory(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "room-1", "u1", "Alice")
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type":    "windowed",
		"payload": map[string]any{"days": 7},
	}); err != nil {
		t.Fatalf("write windowed: %v", err)
	}
	_, payload := readNext(conn, t, "windowedLeaderboard")
	var board domain.WindowedBoard
	if err := json.Unmarshal(payload, &board); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if board.HasHistory || len(board.Entries) != 0 {
		t.Fatalf("expected an empty no-history board, got %+v", board)
	}
}

func TestWebSocketQuestionAdmin(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "room-1", "u1", "Alice")
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type": "addQuestion",
		"payload": map[string]any{
			"topic":        "Science",
			"text":         "What planet is known as the Red Planet?",
			"options":      []string{"Venus", "Mars", "Jupiter", "Saturn"},
			"correctIndex": 1,
		},
	}); err != nil {
		t.Fatalf("write addQuestion: %v", err)
	}
	_, payload := readNext(conn, t, "questionAdded")
	var added questionAddedPayload
	if err := json.Unmarshal(payload, &added); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if added.ID != 2 {
		t.Fatalf("expected id 2, got %d", added.ID)
	}

	if err := conn.WriteJSON(map[string]any{"type": "topics"}); err != nil {
		t.Fatalf("write topics: %v", err)
	}
	_, payload = readNext(conn, t, "topics")
	var topics []string
	if err := json.Unmarshal(payload, &topics); err != nil {
		t.Fatalf("decode topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "Math" || topics[1] != "Science" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestWebSocketErrorReplies(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "room-1", "u1", "Alice")
	defer conn.Close()

	// An answer without a session is rejected with an error envelope.
	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": 1, "option": 0},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	var perr errorPayload
	if err := json.Unmarshal(payload, &perr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if perr.Message != domain.ErrNoActiveSession.Error() {
		t.Fatalf("unexpected error message %q", perr.Message)
	}

	if err := conn.WriteJSON(map[string]any{"type": "mystery"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	readNext(conn, t, "error")
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws?roomId=room-1&userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a name, got %d", resp.StatusCode)
	}
}

func TestDisconnectDuringBroadcast(t *testing.T) {
	server, hub := newTestServer(t)
	defer server.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.SessionStarted("room-1", app.StartInfo{Topic: "Mixed"})
			}
		}
	}()

	// Clients joining and leaving while the room is broadcasting must never
	// see an event land on a channel their connection already closed.
	for i := 0; i < 300; i++ {
		conn := dial(t, server, "room-1", fmt.Sprintf("u%d", i), "Alice")
		conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestReplyDoesNotBlockWhenBufferFull(t *testing.T) {
	c := &client{userID: "u1", send: make(chan envelope, 1), log: zerolog.Nop()}
	c.reply(envelope{Type: "first"})

	done := make(chan struct{})
	go func() {
		c.reply(envelope{Type: "second"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reply blocked on a full send buffer")
	}
	if got := <-c.send; got.Type != "first" {
		t.Fatalf("expected the queued reply to survive, got %q", got.Type)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	store := memory.NewArchiveStore()
	arch, err := archive.Open(ctx, store, log)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	bk, err := bank.Open(ctx, memory.NewStaticLoader([]domain.Question{{
		ID:           1,
		Topic:        "Math",
		Text:         "What is 2 + 2?",
		Options:      []string{"3", "4", "5", "6"},
		CorrectIndex: 1,
		Explanation:  "Basic arithmetic.",
	}}), memory.DiscardWriter{}, log)
	if err != nil {
		t.Fatalf("open bank: %v", err)
	}

	hub := NewHub(log)
	engine := app.NewEngine(
		memory.NewRegistry(), bk, arch,
		memory.NewStaticAuthorizer(nil),
		hub, hub,
		app.DefaultRules(), log,
		app.WithQuestionEditor(bk),
	)
	wsHandler := NewWSHandler(engine, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	return httptest.NewServer(mux), hub
}

func dial(t *testing.T, server *httptest.Server, roomID, userID, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?roomId=" + roomID + "&userId=" + userID + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
