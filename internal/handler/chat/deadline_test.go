package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

// slowConversation 的每一轮都比读超时更耗时。
type slowConversation struct {
	delay time.Duration
}

func (s *slowConversation) SessionID() int64 { return 7 }

func (s *slowConversation) ProcessInput(ctx context.Context, userInput string) dialogue.Envelope {
	time.Sleep(s.delay)
	return dialogue.Envelope{Type: dialogue.EnvelopeMessage, Content: "慢答复"}
}

func (s *slowConversation) EndSession(ctx context.Context) error { return nil }

// 一轮处理超过读超时后，连接必须依然可用于下一轮。
func TestSlowTurnKeepsConnectionAlive(t *testing.T) {
	conv := &slowConversation{delay: 300 * time.Millisecond}
	h := New(func(ctx context.Context) (Conversation, error) {
		return conv, nil
	}, NewManager(time.Hour))
	h.readTimeout = 200 * time.Millisecond

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer ws.Close()

	for _, input := range []string{"第一轮", "第二轮"} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(input)); err != nil {
			t.Fatalf("write %q err: %v", input, err)
		}

		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var fr struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&fr); err != nil {
			t.Fatalf("no reply for %q, connection torn down after slow turn: %v", input, err)
		}
		if fr.Type != "message" || fr.Content != "慢答复" {
			t.Fatalf("unexpected frame for %q: %+v", input, fr)
		}
	}
}
