package chat

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

const defaultReadTimeout = 60 * time.Second

// ConversationFactory 为每条新连接构造独立会话。
type ConversationFactory func(ctx context.Context) (Conversation, error)

// Handler 处理 /ws/chat 实时对话连接。
type Handler struct {
	factory     ConversationFactory
	manager     *Manager
	readTimeout time.Duration
	upgrader    websocket.Upgrader
}

// New 创建 WebSocket 处理器。
func New(factory ConversationFactory, manager *Manager) *Handler {
	return &Handler{
		factory:     factory,
		manager:     manager,
		readTimeout: defaultReadTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleWebSocket)
}

// outboundFrame 是发往客户端的结构化消息。
type outboundFrame struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// 会话生命周期由连接而非请求上下文决定：
	// 连接断开后在途的远端调用仍按自身节奏完成，结果直接丢弃。
	conv, err := h.factory(context.Background())
	if err != nil {
		log.Printf("[websocket] create conversation failed: %v", err)
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		if endErr := conv.EndSession(context.Background()); endErr != nil {
			log.Printf("[websocket] end session %d failed: %v", conv.SessionID(), endErr)
		}
		return
	}

	conn := h.manager.Register(sock, conv)
	defer h.manager.Remove(conn)

	log.Printf("[websocket] new connection for session=%d", conv.SessionID())

	sock.SetReadDeadline(time.Now().Add(h.readTimeout))

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		sock.SetReadDeadline(time.Now().Add(h.readTimeout))

		text := strings.TrimSpace(string(data))
		if text == "" || text == "pong" {
			// 心跳应答不算一轮用户输入。
			continue
		}

		// 回合严格按到达顺序处理：上一轮信封发出前不读下一条。
		envelope := conv.ProcessInput(context.Background(), text)
		if err := h.sendEnvelope(conn, envelope); err != nil {
			log.Printf("[websocket] send failed for session=%d: %v", conv.SessionID(), err)
			return
		}

		// 一轮处理可能比读超时更久（重试耗尽约一分钟），
		// 发出信封后重置截止时间，存活的客户端不因慢回合被拆除。
		sock.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// sendEnvelope 把响应信封序列化为一或两帧发往客户端。
// 深度回合先发思考帧（仅当非空），再发答复帧。
func (h *Handler) sendEnvelope(conn *connection, env dialogue.Envelope) error {
	now := time.Now().Format(time.RFC3339)

	switch env.Type {
	case dialogue.EnvelopeSys2:
		if env.Thinking != "" {
			thinking := outboundFrame{Type: "sys2-thinking", Content: env.Thinking, Timestamp: now}
			if err := conn.send(thinking); err != nil {
				return err
			}
		}
		return conn.send(outboundFrame{Type: "sys2-response", Content: env.Response, Timestamp: now})
	case dialogue.EnvelopeError:
		return conn.send(outboundFrame{Type: "error", Content: env.Content, Timestamp: now})
	default:
		return conn.send(outboundFrame{Type: "message", Role: dialogue.RoleAssistant, Content: env.Content, Timestamp: now})
	}
}
