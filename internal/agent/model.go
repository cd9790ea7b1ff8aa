package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/config"
)

// NewChatModel 按 provider 初始化 ChatModel，并包上重试。
func NewChatModel(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" || cfg.ModelID == "" {
		return nil, fmt.Errorf("llm api_key and model_id must be set")
	}

	var (
		inner model.ToolCallingChatModel
		err   error
	)
	switch cfg.Provider {
	case "ark":
		conf := &ark.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.ModelID,
			BaseURL: cfg.BaseURL,
		}
		if cfg.Timeout > 0 {
			timeout := cfg.Timeout
			conf.Timeout = &timeout
		}
		inner, err = ark.NewChatModel(ctx, conf)
	case "openai", "":
		inner, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelID,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.Provider, err)
	}
	return WithRetry(inner, cfg.Retry, logger), nil
}

// retryingModel 在 Generate/Stream 失败时按指数退避重试，最终失败包装为 ErrModelUnavailable。
type retryingModel struct {
	inner  model.ToolCallingChatModel
	retry  config.RetryConfig
	logger *slog.Logger
}

// WithRetry 包装一个 ChatModel。Attempts 为 0 时只调用一次，但失败仍会包装为 ErrModelUnavailable。
func WithRetry(inner model.ToolCallingChatModel, retry config.RetryConfig, logger *slog.Logger) model.ToolCallingChatModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingModel{inner: inner, retry: retry, logger: logger}
}

func (m *retryingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return withRetry(ctx, m, func() (*schema.Message, error) {
		return m.inner.Generate(ctx, input, opts...)
	})
}

func (m *retryingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return withRetry(ctx, m, func() (*schema.StreamReader[*schema.Message], error) {
		return m.inner.Stream(ctx, input, opts...)
	})
}

func (m *retryingModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &retryingModel{inner: inner, retry: m.retry, logger: m.logger}, nil
}

func withRetry[T any](ctx context.Context, m *retryingModel, call func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= m.retry.Attempts; attempt++ {
		if attempt > 0 {
			backoff := m.backoff(attempt)
			m.logger.Warn("chat model call failed, retrying", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := call()
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrModelUnavailable, lastErr)
}

func (m *retryingModel) backoff(attempt int) time.Duration {
	d := m.retry.Backoff * time.Duration(1<<(attempt-1))
	if m.retry.MaxBackoff > 0 && d > m.retry.MaxBackoff {
		d = m.retry.MaxBackoff
	}
	return d
}
