package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/config"
	"github.com/wwwzy/EDAgent/internal/memory"
	"github.com/wwwzy/EDAgent/internal/plot"
	"github.com/wwwzy/EDAgent/internal/storage"
	"github.com/wwwzy/EDAgent/internal/tools"
)

// signalContext 返回一个在 SIGINT/SIGTERM 时取消的 context。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newCatalog 按配置构建工具集。
func newCatalog(c *config.Config) (*tools.Catalog, error) {
	return tools.Default(tools.Options{
		EnableCustomCode: c.Agent.EnableCustomCode,
		CodeTimeout:      c.Agent.CustomCodeTimeout,
	})
}

// openStorage 在启用时打开审计存储，未启用返回 nil。
func openStorage(ctx context.Context, c *config.Config) (*storage.Storage, error) {
	if !c.Storage.Enabled {
		return nil, nil
	}
	store, err := storage.Open(ctx, c.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}
	return store, nil
}

// newSession 组装模型、工具、记忆、渲染器和存储。
func newSession(ctx context.Context, c *config.Config, logger *slog.Logger) (*agent.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	catalog, err := newCatalog(c)
	if err != nil {
		return nil, fmt.Errorf("构建工具集失败: %w", err)
	}

	chatModel, err := agent.NewChatModel(ctx, c.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化模型失败: %w", err)
	}

	store, err := openStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	mem := memory.New(
		memory.WithWindow(c.Agent.HistoryWindow),
		memory.WithRecentAnalyses(c.Agent.RecentAnalyses),
	)
	a, err := agent.New(chatModel, agent.NewAuditedInvoker(catalog, store, logger), mem,
		agent.WithRenderer(plot.NewEChartsRenderer(c.Agent.PlotsDir)),
		agent.WithConfig(c.Agent),
		agent.WithLogger(logger),
	)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("创建 Agent 失败: %w", err)
	}
	return agent.NewSession(a, store, logger), nil
}
