package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

// Conversation 是连接层驱动的会话契约。
type Conversation interface {
	SessionID() int64
	ProcessInput(ctx context.Context, userInput string) dialogue.Envelope
	EndSession(ctx context.Context) error
}

// Manager 维护活跃连接到会话的映射：每个连接独占一个会话，
// 连接丢失时恰好一次地结束会话并释放映射。
type Manager struct {
	mu           sync.Mutex
	conns        map[string]*connection
	pingInterval time.Duration
	pinging      bool
}

// NewManager 创建连接管理器。interval 为心跳间隔。
func NewManager(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		conns:        make(map[string]*connection),
		pingInterval: interval,
	}
}

// connection 绑定一条 WebSocket 连接与其会话。
// 写互斥锁串行化心跳循环与回合循环的并发写。
type connection struct {
	id   string
	sock *websocket.Conn
	conv Conversation

	writeMu sync.Mutex
}

func (c *connection) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteJSON(v)
}

// Register 为新连接建立映射。显式以连接标识为键，
// 不依赖连接对象本身的相等语义。首个连接会启动心跳循环。
func (m *Manager) Register(sock *websocket.Conn, conv Conversation) *connection {
	c := &connection{
		id:   uuid.NewString(),
		sock: sock,
		conv: conv,
	}

	m.mu.Lock()
	m.conns[c.id] = c
	if !m.pinging {
		m.pinging = true
		go m.pingLoop()
	}
	m.mu.Unlock()

	log.Printf("[manager] connection %s registered session=%d", c.id, conv.SessionID())
	return c
}

// Remove 拆除连接：结束会话、关闭套接字、释放映射。
// 重复调用是安全的，只有首次生效。
func (m *Manager) Remove(c *connection) {
	m.mu.Lock()
	_, ok := m.conns[c.id]
	delete(m.conns, c.id)
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := c.conv.EndSession(context.Background()); err != nil {
		log.Printf("[manager] end session %d failed: %v", c.conv.SessionID(), err)
	}
	c.sock.Close()
	log.Printf("[manager] connection %s removed session=%d", c.id, c.conv.SessionID())
}

// Count 返回活跃连接数。
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// pingLoop 在至少有一个活跃连接时运行，按固定间隔向每条连接
// 发送心跳帧。对某条连接的心跳失败只拆除该连接，不影响其余。
func (m *Manager) pingLoop() {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if len(m.conns) == 0 {
			m.pinging = false
			m.mu.Unlock()
			return
		}
		snapshot := make([]*connection, 0, len(m.conns))
		for _, c := range m.conns {
			snapshot = append(snapshot, c)
		}
		m.mu.Unlock()

		frame := outboundFrame{Type: "ping", Timestamp: time.Now().Format(time.RFC3339)}
		for _, c := range snapshot {
			if err := c.send(frame); err != nil {
				log.Printf("[manager] ping failed for connection %s: %v", c.id, err)
				m.Remove(c)
			}
		}
	}
}
