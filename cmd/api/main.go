package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nsxzhou/dualmind/internal/config"
	"github.com/nsxzhou/dualmind/internal/handler"
	"github.com/nsxzhou/dualmind/internal/handler/chat"
	"github.com/nsxzhou/dualmind/internal/handler/logs"
	"github.com/nsxzhou/dualmind/internal/service/agent"
	"github.com/nsxzhou/dualmind/internal/service/dialogue"
	"github.com/nsxzhou/dualmind/internal/service/llm"
	"github.com/nsxzhou/dualmind/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
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

	// 凭证缺失在这里快速失败，进程绝不在无效配置下提供服务。
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

	dispatcher := agent.NewDispatcher(dispatcherCfg, client, store)
	fast := agent.NewFastResponder(sys1Cfg, client, store)
	deep := agent.NewDeepResponder(sys2Cfg, client, store)

	factory := func(ctx context.Context) (chat.Conversation, error) {
		return dialogue.NewOrchestrator(ctx, store, dispatcher, fast, deep)
	}

	manager := chat.NewManager(30 * time.Second)
	chatHandler := chat.New(factory, manager)
	logsHandler := logs.New(store)

	router := handler.NewRouter(chatHandler, logsHandler)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("dualmind backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
