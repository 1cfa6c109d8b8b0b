package chat_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nsxzhou/dualmind/internal/handler/chat"
	model "github.com/nsxzhou/dualmind/internal/model/dialogue"
)

type fakeConversation struct {
	mu        sync.Mutex
	inputs    []string
	envelopes []model.Envelope
	idx       int
	ended     int
}

func (f *fakeConversation) SessionID() int64 { return 42 }

func (f *fakeConversation) ProcessInput(ctx context.Context, userInput string) model.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, userInput)
	if f.idx < len(f.envelopes) {
		env := f.envelopes[f.idx]
		f.idx++
		return env
	}
	return model.Envelope{Type: model.EnvelopeMessage, Content: "默认答复"}
}

func (f *fakeConversation) EndSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
	return nil
}

func (f *fakeConversation) endedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

func (f *fakeConversation) receivedInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type frame struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func dialTestServer(t *testing.T, conv *fakeConversation, pingInterval time.Duration) (*websocket.Conn, *chat.Manager, func()) {
	t.Helper()

	manager := chat.NewManager(pingInterval)
	factory := func(ctx context.Context) (chat.Conversation, error) {
		return conv, nil
	}

	r := chi.NewRouter()
	chat.New(factory, manager).RegisterRoutes(r)
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial err: %v", err)
	}

	cleanup := func() {
		ws.Close()
		srv.Close()
	}
	return ws, manager, cleanup
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var fr frame
	if err := ws.ReadJSON(&fr); err != nil {
		t.Fatalf("read frame err: %v", err)
	}
	return fr
}

func TestMessageTurn(t *testing.T) {
	conv := &fakeConversation{envelopes: []model.Envelope{
		{Type: model.EnvelopeMessage, Content: "你好！有什么可以帮你？"},
	}}
	ws, _, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("你好")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	fr := readFrame(t, ws)
	if fr.Type != "message" || fr.Role != "assistant" || fr.Content != "你好！有什么可以帮你？" {
		t.Fatalf("unexpected frame: %+v", fr)
	}
	if fr.Timestamp == "" {
		t.Fatal("expected timestamp on frame")
	}
}

func TestSys2TurnSendsThinkingThenResponse(t *testing.T) {
	conv := &fakeConversation{envelopes: []model.Envelope{
		{Type: model.EnvelopeSys2, Thinking: "分析...", Response: "这是结论"},
	}}
	ws, _, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("证明黎曼猜想")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	first := readFrame(t, ws)
	if first.Type != "sys2-thinking" || first.Content != "分析..." {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	second := readFrame(t, ws)
	if second.Type != "sys2-response" || second.Content != "这是结论" {
		t.Fatalf("unexpected second frame: %+v", second)
	}
}

func TestSys2TurnWithoutThinkingSendsSingleFrame(t *testing.T) {
	conv := &fakeConversation{envelopes: []model.Envelope{
		{Type: model.EnvelopeSys2, Thinking: "", Response: "直接结论"},
		{Type: model.EnvelopeMessage, Content: "下一轮"},
	}}
	ws, _, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("问题")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	fr := readFrame(t, ws)
	if fr.Type != "sys2-response" || fr.Content != "直接结论" {
		t.Fatalf("expected lone sys2-response frame, got %+v", fr)
	}

	// 紧随其后的应当已经是下一轮的信封，而不是空的思考帧。
	if err := ws.WriteMessage(websocket.TextMessage, []byte("再来")); err != nil {
		t.Fatalf("write err: %v", err)
	}
	next := readFrame(t, ws)
	if next.Type != "message" {
		t.Fatalf("unexpected frame after sys2 turn: %+v", next)
	}
}

func TestErrorTurn(t *testing.T) {
	conv := &fakeConversation{envelopes: []model.Envelope{
		{Type: model.EnvelopeError, Content: "处理失败: 模型调用超时"},
	}}
	ws, _, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("你好")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	fr := readFrame(t, ws)
	if fr.Type != "error" || !strings.HasPrefix(fr.Content, "处理失败: ") {
		t.Fatalf("unexpected frame: %+v", fr)
	}
}

func TestPongRepliesIgnored(t *testing.T) {
	conv := &fakeConversation{envelopes: []model.Envelope{
		{Type: model.EnvelopeMessage, Content: "答复"},
	}}
	ws, _, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
		t.Fatalf("write err: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("你好")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	fr := readFrame(t, ws)
	if fr.Type != "message" {
		t.Fatalf("unexpected frame: %+v", fr)
	}

	inputs := conv.receivedInputs()
	if len(inputs) != 1 || inputs[0] != "你好" {
		t.Fatalf("pong must not count as a user turn, got inputs %v", inputs)
	}
}

func TestHeartbeatFrameSent(t *testing.T) {
	conv := &fakeConversation{}
	ws, _, cleanup := dialTestServer(t, conv, 50*time.Millisecond)
	defer cleanup()

	fr := readFrame(t, ws)
	if fr.Type != "ping" {
		t.Fatalf("expected ping frame, got %+v", fr)
	}
}

func TestDisconnectEndsSessionOnce(t *testing.T) {
	conv := &fakeConversation{}
	ws, manager, cleanup := dialTestServer(t, conv, time.Hour)
	defer cleanup()

	if manager.Count() != 1 {
		t.Fatalf("expected 1 active connection, got %d", manager.Count())
	}

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if manager.Count() == 0 && conv.endedCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("teardown incomplete: count=%d ended=%d", manager.Count(), conv.endedCount())
}
