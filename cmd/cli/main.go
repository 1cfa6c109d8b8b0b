package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nsxzhou/dualmind/internal/config"
	modeldialogue "github.com/nsxzhou/dualmind/internal/model/dialogue"
	"github.com/nsxzhou/dualmind/internal/service/agent"
	"github.com/nsxzhou/dualmind/internal/service/dialogue"
	"github.com/nsxzhou/dualmind/internal/service/llm"
	"github.com/nsxzhou/dualmind/internal/store/sqlite"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	client, err := llm.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("failed to initialize llm client: %v", err)
	}

	agentCfgs, err := config.LoadAgentConfigs(cfg.Agents.Path)
	if err != nil {
		log.Fatalf("failed to load agent configs: %v", err)
	}

	dispatcherCfg, err := agentCfgs.Get(config.AgentDispatcher)
	if err != nil {
		log.Fatalf("failed to resolve dispatcher config: %v", err)
	}
	sys1Cfg, err := agentCfgs.Get(config.AgentSys1)
	if err != nil {
		log.Fatalf("failed to resolve sys1 config: %v", err)
	}
	sys2Cfg, err := agentCfgs.Get(config.AgentSys2)
	if err != nil {
		log.Fatalf("failed to resolve sys2 config: %v", err)
	}

	orch, err := dialogue.NewOrchestrator(ctx, store,
		agent.NewDispatcher(dispatcherCfg, client, store),
		agent.NewFastResponder(sys1Cfg, client, store),
		agent.NewDeepResponder(sys2Cfg, client, store),
	)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	defer func() {
		if err := orch.EndSession(ctx); err != nil {
			log.Printf("end session failed: %v", err)
		}
	}()

	fmt.Println("欢迎与赵敏敏聊天！输入 'quit' 结束对话。")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n用户: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			fmt.Println("再见！")
			break
		}

		printEnvelope(orch.ProcessInput(ctx, input))
	}
}

func printEnvelope(env modeldialogue.Envelope) {
	switch env.Type {
	case modeldialogue.EnvelopeSys2:
		if env.Thinking != "" {
			fmt.Printf("\n【思考过程】\n%s\n", env.Thinking)
		}
		fmt.Printf("\n赵敏敏: %s\n", env.Response)
	case modeldialogue.EnvelopeError:
		fmt.Printf("\n%s\n", env.Content)
	default:
		fmt.Printf("\n赵敏敏: %s\n", env.Content)
	}
}
