package agent

import (
	"context"
	"strings"

	"github.com/nsxzhou/dualmind/internal/config"
	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

// FastResponder 处理简单对话，模型输出即最终答复。
type FastResponder struct {
	base
}

// NewFastResponder 构造快速应答 Agent。
func NewFastResponder(cfg config.AgentConfig, invoker Invoker, records RecordWriter) *FastResponder {
	return &FastResponder{base{cfg: cfg, invoker: invoker, records: records}}
}

// Process 返回模型原始输出作为最终答复。
func (f *FastResponder) Process(ctx context.Context, userInput string, history []dialogue.Message, sessionID int64) (Result, error) {
	prompt := f.render(userInput, history)
	res, err := f.invoke(ctx, prompt, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: res.Output}, nil
}

// DeepResponder 处理需要深度思考的问题，把模型输出拆分为思考过程与答复。
type DeepResponder struct {
	base
}

// NewDeepResponder 构造深度应答 Agent。
func NewDeepResponder(cfg config.AgentConfig, invoker Invoker, records RecordWriter) *DeepResponder {
	return &DeepResponder{base{cfg: cfg, invoker: invoker, records: records}}
}

// Process 返回拆分后的思考过程与答复。
func (d *DeepResponder) Process(ctx context.Context, userInput string, history []dialogue.Message, sessionID int64) (Result, error) {
	prompt := d.render(userInput, history)
	res, err := d.invoke(ctx, prompt, sessionID)
	if err != nil {
		return Result{}, err
	}
	thinking, answer := SplitThinking(res.Output)
	return Result{Content: answer, Thinking: thinking}, nil
}

const replyMarker = "[回复]"

// SplitThinking 把模型原始输出拆分为思考过程与答复。
// 优先按首个 "[回复]" 标记切分；没有标记时按空行分段，
// 末段为答复、其余段为思考过程，仅一段则全部视为答复。
// 两级回退兼容遵守与不遵守标记约定的模型，顺序不可调换。
func SplitThinking(raw string) (thinking, response string) {
	if idx := strings.Index(raw, replyMarker); idx >= 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(replyMarker):])
	}

	trimmed := strings.TrimSpace(raw)
	parts := strings.Split(trimmed, "\n\n")
	if len(parts) == 1 {
		return "", trimmed
	}
	thinking = strings.TrimSpace(strings.Join(parts[:len(parts)-1], "\n\n"))
	response = strings.TrimSpace(parts[len(parts)-1])
	return thinking, response
}
