// Package dialogue 驱动一个会话内的完整回合：
// 调度 → 路由到应答者 → 更新历史 → 产出响应信封。
package dialogue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nsxzhou/dualmind/internal/model/dialogue"
	"github.com/nsxzhou/dualmind/internal/service/agent"
)

// Store 是编排器依赖的持久化契约。
type Store interface {
	CreateSession(ctx context.Context) (int64, error)
	EndSession(ctx context.Context, sessionID int64) error
	AppendMessage(ctx context.Context, sessionID int64, role, content string) error
	LoadMessages(ctx context.Context, sessionID int64) ([]dialogue.Message, error)
}

// Orchestrator 持有一个会话的可变历史，串行处理回合。
// 内存中的历史是构建提示词的权威工作副本，存储是其持久镜像。
type Orchestrator struct {
	sessionID  int64
	store      Store
	dispatcher agent.Agent
	fast       agent.Agent
	deep       agent.Agent
	history    []dialogue.Message
}

// NewOrchestrator 创建新会话并加载（通常为空的）历史。
// 没有按外部 ID 恢复既有会话的路径。
func NewOrchestrator(ctx context.Context, store Store, dispatcher, fast, deep agent.Agent) (*Orchestrator, error) {
	sessionID, err := store.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	history, err := store.LoadMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return &Orchestrator{
		sessionID:  sessionID,
		store:      store,
		dispatcher: dispatcher,
		fast:       fast,
		deep:       deep,
		history:    history,
	}, nil
}

// SessionID 返回本会话的标识。
func (o *Orchestrator) SessionID() int64 { return o.sessionID }

// History 返回当前历史的副本。
func (o *Orchestrator) History() []dialogue.Message {
	copied := make([]dialogue.Message, len(o.history))
	copy(copied, o.history)
	return copied
}

// ProcessInput 处理一轮用户输入并返回响应信封。
// 任何 Agent 层失败都折叠为 error 信封，单轮失败不会终结会话。
func (o *Orchestrator) ProcessInput(ctx context.Context, userInput string) dialogue.Envelope {
	o.appendMessage(ctx, dialogue.RoleUser, userInput)

	label, err := o.dispatcher.Process(ctx, userInput, o.history, o.sessionID)
	if err != nil {
		return o.failTurn(ctx, err)
	}

	if label.Content == agent.LabelSys1 {
		res, err := o.fast.Process(ctx, userInput, o.history, o.sessionID)
		if err != nil {
			return o.failTurn(ctx, err)
		}
		o.appendMessage(ctx, dialogue.RoleAssistant, res.Content)
		return dialogue.Envelope{Type: dialogue.EnvelopeMessage, Content: res.Content}
	}

	// 除 sys1 外的一切标签都走深度路径，分类含糊时宁可多想。
	res, err := o.deep.Process(ctx, userInput, o.history, o.sessionID)
	if err != nil {
		return o.failTurn(ctx, err)
	}

	combined := res.Content
	if res.Thinking != "" {
		combined = res.Thinking + "\n\n" + res.Content
	}
	o.appendMessage(ctx, dialogue.RoleAssistant, combined)

	return dialogue.Envelope{
		Type:     dialogue.EnvelopeSys2,
		Thinking: res.Thinking,
		Response: res.Content,
	}
}

// appendMessage 先更新内存再落库。落库失败不回滚内存，
// 只留下一次持久化缺口并记录日志。
func (o *Orchestrator) appendMessage(ctx context.Context, role, content string) {
	o.history = append(o.history, dialogue.Message{
		SessionID: o.sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})

	if err := o.store.AppendMessage(ctx, o.sessionID, role, content); err != nil {
		log.Printf("[orchestrator] session=%d persist %s message failed: %v", o.sessionID, role, err)
	}
}

func (o *Orchestrator) failTurn(ctx context.Context, err error) dialogue.Envelope {
	content := "处理失败: " + err.Error()
	log.Printf("[orchestrator] session=%d turn failed: %v", o.sessionID, err)
	o.appendMessage(ctx, dialogue.RoleSystem, content)
	return dialogue.Envelope{Type: dialogue.EnvelopeError, Content: content}
}

// EndSession 结束会话，可安全地重复调用。
// 不清空内存历史，连接层负责释放编排器本身。
func (o *Orchestrator) EndSession(ctx context.Context) error {
	return o.store.EndSession(ctx, o.sessionID)
}
