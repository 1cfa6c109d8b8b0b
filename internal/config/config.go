package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	LLM    LLMConfig
	Store  StoreConfig
	Agents AgentsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		LLM:    llm,
		Store:  loadStoreConfig(),
		Agents: loadAgentsConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8001"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8001" 或 "127.0.0.1:8001"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LLMConfig 描述远端模型相关配置。
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	RequestTimeout time.Duration
	MaxAttempts    int
}

// Enabled 表示是否提供了必需的密钥。
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// NewChatModel 使用配置创建一个模型实例。具体调用哪个模型由每次请求决定。
func (c LLMConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("未找到 DEEPSEEK_API_KEY 环境变量")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Model:   c.DefaultModel,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadLLMConfig() (LLMConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("LLM_TIMEOUT_SECONDS"); err != nil {
		return LLMConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	maxAttempts := 3
	if override, err := parseOptionalIntEnv("LLM_MAX_ATTEMPTS"); err != nil {
		return LLMConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxAttempts = 1
		} else {
			maxAttempts = *override
		}
	}

	return LLMConfig{
		APIKey:         strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")),
		BaseURL:        getEnvOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DefaultModel:   getEnvOrDefault("DEEPSEEK_DEFAULT_MODEL", "deepseek-chat"),
		RequestTimeout: time.Duration(timeoutSeconds) * time.Second,
		MaxAttempts:    maxAttempts,
	}, nil
}

// StoreConfig 描述 SQLite 存储配置。
type StoreConfig struct {
	Path string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Path: getEnvOrDefault("DB_PATH", "data/dialogue.db"),
	}
}

// AgentsConfig 描述 Agent 提示词配置文件位置。
type AgentsConfig struct {
	Path string
}

func loadAgentsConfig() AgentsConfig {
	return AgentsConfig{
		Path: getEnvOrDefault("PROMPT_CONFIG", "config/prompt_config.yaml"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
