package agent

import (
	"context"
	"strings"

	"github.com/nsxzhou/dualmind/internal/config"
	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

// LabelSys1 是调度器选择快速应答路径的唯一标签，
// 任何其他输出（包括无法识别的标签）都走深度路径。
const LabelSys1 = "sys1"

// Dispatcher 将一轮输入分类为路由标签。
type Dispatcher struct {
	base
}

// NewDispatcher 构造调度 Agent。
func NewDispatcher(cfg config.AgentConfig, invoker Invoker, records RecordWriter) *Dispatcher {
	return &Dispatcher{base{cfg: cfg, invoker: invoker, records: records}}
}

// Process 返回规整后的路由标签。
func (d *Dispatcher) Process(ctx context.Context, userInput string, history []dialogue.Message, sessionID int64) (Result, error) {
	prompt := d.render(userInput, history)
	res, err := d.invoke(ctx, prompt, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: NormalizeLabel(res.Output)}, nil
}

// NormalizeLabel 去除首尾空白并转小写。对已规整的标签是幂等的。
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
