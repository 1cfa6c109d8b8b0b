package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/nsxzhou/dualmind/internal/config"
)

// 固定的采样策略，与各 Agent 无关。
const (
	temperature    float32 = 0.7
	maxTokens              = 1000
	systemPreamble         = "你是一个双系统对话实验的组成部分，请严格按照提示词的要求作答。"
)

// Options 控制重试与超时行为。
type Options struct {
	// RequestTimeout 约束单次网络调用。
	RequestTimeout time.Duration
	// MaxAttempts 约束总尝试次数（含首次）。
	MaxAttempts int
	// BaseDelay 为首次退避时长，之后按 2 的幂增长，上限 MaxDelay。
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxElapsed 约束包含退避等待在内的总耗时。
	MaxElapsed time.Duration
}

// DefaultOptions 返回默认的重试与超时策略。
func DefaultOptions() Options {
	return Options{
		RequestTimeout: 30 * time.Second,
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		MaxElapsed:     60 * time.Second,
	}
}

// Result 汇总一次模型调用的产出与元数据。
// Elapsed 只统计网络调用本身，不含退避等待与调用方开销。
type Result struct {
	Output       string
	Elapsed      time.Duration
	InputTokens  int
	OutputTokens int
}

// Client 封装对远端文本生成服务的调用，持有唯一的模型连接，
// 具体模型由每次调用指定。
type Client struct {
	cm   model.BaseChatModel
	opts Options
}

// New 基于已构造的聊天模型创建客户端。零值选项回落到默认策略。
func New(cm model.BaseChatModel, opts Options) *Client {
	def := DefaultOptions()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = def.MaxElapsed
	}
	return &Client{cm: cm, opts: opts}
}

// NewFromConfig 从配置构造客户端。凭证缺失在此处快速失败。
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	cm, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	opts := DefaultOptions()
	if cfg.RequestTimeout > 0 {
		opts.RequestTimeout = cfg.RequestTimeout
	}
	if cfg.MaxAttempts > 0 {
		opts.MaxAttempts = cfg.MaxAttempts
	}
	return New(cm, opts), nil
}

// Invoke 调用指定模型生成文本。普通远端失败不会 panic：
// 重试耗尽后返回空输出、零 token 计数与描述失败原因的 error。
func (c *Client) Invoke(ctx context.Context, prompt, modelName string) (Result, error) {
	var res Result
	var lastErr error

	started := time.Now()
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			if time.Since(started)+delay > c.opts.MaxElapsed {
				break
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return res, fmt.Errorf("API调用失败: %w", ctx.Err())
			}
		}

		resp, elapsed, err := c.attempt(ctx, prompt, modelName)
		res.Elapsed += elapsed
		if err == nil {
			res.Output = resp.Content
			if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
				// 缺失 usage 时保持 0，绝不本地估算。
				res.InputTokens = resp.ResponseMeta.Usage.PromptTokens
				res.OutputTokens = resp.ResponseMeta.Usage.CompletionTokens
			}
			return res, nil
		}

		lastErr = err
		log.Printf("[llm] attempt %d/%d model=%s failed: %v", attempt+1, c.opts.MaxAttempts, modelName, err)
		if errors.Is(err, context.Canceled) {
			break
		}
	}

	if isTimeout(lastErr) {
		return res, fmt.Errorf("模型调用超时: %w", lastErr)
	}
	return res, fmt.Errorf("API调用失败: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, prompt, modelName string) (*schema.Message, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	messages := []*schema.Message{
		schema.SystemMessage(systemPreamble),
		schema.UserMessage(prompt),
	}

	start := time.Now()
	resp, err := c.cm.Generate(callCtx, messages,
		model.WithModel(modelName),
		model.WithTemperature(temperature),
		model.WithMaxTokens(maxTokens),
	)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	if resp == nil {
		return nil, elapsed, errors.New("empty response from model")
	}
	return resp, elapsed, nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.opts.BaseDelay << (attempt - 1)
	if delay > c.opts.MaxDelay || delay <= 0 {
		delay = c.opts.MaxDelay
	}
	return delay
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
