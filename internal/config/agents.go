package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Agent 角色名称，对应 prompt_config.yaml 中的键。
const (
	AgentDispatcher = "dispatcher"
	AgentSys1       = "sys1"
	AgentSys2       = "sys2"
)

// AgentConfig 描述单个 Agent 的静态配置，进程生命周期内不可变。
type AgentConfig struct {
	Name           string `yaml:"name"`
	Model          string `yaml:"model"`
	Role           string `yaml:"role"`
	PromptTemplate string `yaml:"prompt_template"`
}

// AgentConfigs 持有按名称索引的 Agent 配置。
type AgentConfigs struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// LoadAgentConfigs 从 YAML 文件加载 Agent 配置。
// 三个必需角色缺一或模板为空均视为致命配置错误。
func LoadAgentConfigs(path string) (*AgentConfigs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}

	var cfgs AgentConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}

	for _, name := range []string{AgentDispatcher, AgentSys1, AgentSys2} {
		agent, ok := cfgs.Agents[name]
		if !ok {
			return nil, fmt.Errorf("agent config %q missing from %s", name, path)
		}
		if agent.PromptTemplate == "" {
			return nil, fmt.Errorf("agent config %q has empty prompt_template", name)
		}
		if agent.Model == "" {
			return nil, fmt.Errorf("agent config %q has empty model", name)
		}
	}

	return &cfgs, nil
}

// Get 返回指定 Agent 的配置。
func (c *AgentConfigs) Get(name string) (AgentConfig, error) {
	agent, ok := c.Agents[name]
	if !ok {
		return AgentConfig{}, fmt.Errorf("unknown agent %q", name)
	}
	return agent, nil
}
