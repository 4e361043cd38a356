package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func newTestService(t *testing.T) *app.QuizService {
	t.Helper()
	mc, err := domain.NewMultipleChoice("2+2?", [4]string{"3", "4", "5", "6"}, 1, "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	sa, err := domain.NewShortAnswer("Capital of France?", "Paris", "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	loader := memory.NewStaticQuestionLoader(map[string]domain.QuestionSet{
		"mixed": domain.NewQuestionSet("mixed", []domain.Question{mc, sa}),
	})
	repo := memory.NewQuestionRepository(loader, time.Minute)
	return app.NewQuizService(app.NewSession(app.Config{}), repo)
}

func dialPlayer(t *testing.T, server *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteMessage(websocket.TextMessage, []byte(name)); err != nil {
		t.Fatalf("write name: %v", err)
	}
	return conn
}

func waitForPlayers(t *testing.T, s *app.Session, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.PlayerCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d players, got %d", n, s.PlayerCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketAnswerFlow(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)
	server := httptest.NewServer(NewRouter(service, Options{}))
	defer server.Close()

	conn := dialPlayer(t, server, "Alice")
	waitForPlayers(t, service.Session(), 1)

	if _, err := service.LoadQuestions(ctx, "mixed"); err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if err := service.Session().Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if typ, _ := readNext(conn, t); typ != "score_update" {
		t.Fatalf("expected score_update, got %s", typ)
	}
	typ, msg := readNext(conn, t)
	if typ != "question" {
		t.Fatalf("expected question, got %s", typ)
	}
	data := msg["data"].(map[string]any)
	if data["question_number"] != float64(1) || data["total_questions"] != float64(2) {
		t.Fatalf("unexpected question payload: %v", data)
	}
	if _, leaked := data["correct"]; leaked {
		t.Fatalf("question payload leaks the correct option: %v", data)
	}

	answer := map[string]any{"type": "multiple_choice", "answer": 1}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	typ, msg = readNext(conn, t)
	if typ != "score_update" {
		t.Fatalf("expected score_update, got %s", typ)
	}
	if got := msg["data"].(map[string]any)["Alice"]; got != float64(1) {
		t.Fatalf("expected Alice to score 1, got %v", got)
	}

	typ, msg = readNext(conn, t)
	if typ != "answer_summary" || msg["correct_answer"] != "4" {
		t.Fatalf("expected answer_summary with 4, got %s %v", typ, msg)
	}
}

func TestWebSocketDuplicateNameRejected(t *testing.T) {
	service := newTestService(t)
	server := httptest.NewServer(NewRouter(service, Options{}))
	defer server.Close()

	dialPlayer(t, server, "Alice")
	waitForPlayers(t, service.Session(), 1)

	dup := dialPlayer(t, server, "Alice")
	typ, msg := readNext(dup, t)
	if typ != "error" {
		t.Fatalf("expected error, got %s", typ)
	}
	if !strings.Contains(msg["message"].(string), "already in use") {
		t.Fatalf("unexpected error message: %v", msg["message"])
	}
	if _, _, err := dup.ReadMessage(); err == nil {
		t.Fatalf("expected connection to close after rejection")
	}
	if n := service.Session().PlayerCount(); n != 1 {
		t.Fatalf("expected 1 player, got %d", n)
	}
}

func TestWebSocketDisconnectRemovesPlayer(t *testing.T) {
	service := newTestService(t)
	server := httptest.NewServer(NewRouter(service, Options{}))
	defer server.Close()

	conn := dialPlayer(t, server, "Bob")
	waitForPlayers(t, service.Session(), 1)

	conn.Close()
	waitForPlayers(t, service.Session(), 0)
	if scores := service.Session().Scores(); len(scores) != 0 {
		t.Fatalf("expected scores to be empty, got %v", scores)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	typ, _ := msg["type"].(string)
	return typ, msg
}
