package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nsxzhou/dualmind/internal/config"
	"github.com/nsxzhou/dualmind/internal/model/dialogue"
	"github.com/nsxzhou/dualmind/internal/service/llm"
)

// Invoker 抽象远端模型客户端，便于在测试中替换。
type Invoker interface {
	Invoke(ctx context.Context, prompt, modelName string) (llm.Result, error)
}

// RecordWriter 持久化调用审计记录。
type RecordWriter interface {
	AppendRecord(ctx context.Context, rec dialogue.InvocationRecord) error
}

// Result 是一次 Agent 处理的产出。Thinking 仅由深度应答者填充。
type Result struct {
	Content  string
	Thinking string
}

// Agent 是调度器与两类应答者共享的处理契约。
type Agent interface {
	Name() string
	Process(ctx context.Context, userInput string, history []dialogue.Message, sessionID int64) (Result, error)
}

// base 承载三类 Agent 公共的提示词渲染与调用审计逻辑。
type base struct {
	cfg     config.AgentConfig
	invoker Invoker
	records RecordWriter
}

func (b base) Name() string { return b.cfg.Name }

// render 渲染角色模板，user_input 原样代入，
// dialogue_history 按时间顺序拼为 "role: content" 行。
func (b base) render(userInput string, history []dialogue.Message) string {
	r := strings.NewReplacer(
		"{dialogue_history}", formatHistory(history),
		"{user_input}", userInput,
	)
	return r.Replace(b.cfg.PromptTemplate)
}

func formatHistory(history []dialogue.Message) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, msg.Role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// invoke 执行一次远端调用，并且无论成败都恰好落一条审计记录。
// 审计写入失败会向上传播，静默丢失记录会破坏可观测性。
func (b base) invoke(ctx context.Context, prompt string, sessionID int64) (llm.Result, error) {
	res, callErr := b.invoker.Invoke(ctx, prompt, b.cfg.Model)

	rec := dialogue.InvocationRecord{
		SessionID:      sessionID,
		Timestamp:      time.Now(),
		AgentName:      b.cfg.Name,
		InputText:      prompt,
		OutputText:     res.Output,
		ResponseTimeMS: res.Elapsed.Milliseconds(),
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
		ModelName:      b.cfg.Model,
		Status:         dialogue.StatusSuccess,
	}
	if callErr != nil {
		rec.Status = dialogue.StatusError
		rec.ErrorMessage = callErr.Error()
	}

	if err := b.records.AppendRecord(ctx, rec); err != nil {
		return llm.Result{}, fmt.Errorf("append invocation record: %w", err)
	}

	if callErr != nil {
		return llm.Result{}, callErr
	}
	return res, nil
}
