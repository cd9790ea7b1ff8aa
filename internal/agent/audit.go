package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/wwwzy/EDAgent/internal/storage"
	"github.com/wwwzy/EDAgent/internal/tools"
)

const auditTruncateLimit = 2048

type traceIDKey struct{}

// WithTraceID 把 TraceID 放进 context，一次运行内的审计记录共享同一个 TraceID。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID 从 context 中读取 TraceID，没有时返回空串。
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

func ensureTraceID(ctx context.Context) (context.Context, string) {
	if id := TraceID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithTraceID(ctx, id), id
}

// AuditedInvoker 在工具执行前后写审计记录。审计写入失败只记日志，不影响工具执行。
type AuditedInvoker struct {
	inner  tools.Invoker
	store  *storage.Storage
	logger *slog.Logger
}

// NewAuditedInvoker 包装 inner。store 为空时直接返回 inner。
func NewAuditedInvoker(inner tools.Invoker, store *storage.Storage, logger *slog.Logger) tools.Invoker {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedInvoker{inner: inner, store: store, logger: logger}
}

func (a *AuditedInvoker) ToolInfos() []*schema.ToolInfo {
	return a.inner.ToolInfos()
}

func (a *AuditedInvoker) Invoke(ctx context.Context, env tools.Env, call tools.Call) (tools.Result, error) {
	record := &storage.AuditRecord{
		TraceID:    TraceID(ctx),
		Action:     call.Name,
		CallID:     call.ID,
		ParamsJSON: truncate(call.Args, auditTruncateLimit),
		Status:     storage.StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if env.Dataset != nil {
		record.Dataset = env.Dataset.Name
	}
	if err := a.store.InsertAuditRecord(ctx, record); err != nil {
		a.logger.Warn("insert audit record failed", "tool", call.Name, "error", err)
	}

	res, runErr := a.inner.Invoke(ctx, env, call)

	// 只有插入成功拿到 ID 后才能更新
	if record.ID == 0 {
		return res, runErr
	}
	finishedAt := time.Now().UTC()
	status := storage.StatusSuccess
	up := storage.AuditUpdate{Status: &status, FinishedAt: &finishedAt}
	switch {
	case runErr != nil:
		status = storage.StatusFailed
		msg := truncate(runErr.Error(), auditTruncateLimit)
		up.ErrorMessage = &msg
	default:
		if res.IsError() {
			status = storage.StatusFailed
			msg := truncate(res.Message, auditTruncateLimit)
			up.ErrorMessage = &msg
		}
		resultJSON := truncate(res.JSON(), auditTruncateLimit)
		resultStatus := string(res.Status)
		up.ResultJSON = &resultJSON
		up.ResultStatus = &resultStatus
		if res.PlotPath != "" {
			up.PlotPath = &res.PlotPath
		}
	}
	if err := a.store.UpdateAuditRecord(context.WithoutCancel(ctx), record.ID, up); err != nil {
		a.logger.Warn("update audit record failed", "tool", call.Name, "audit_id", record.ID, "error", err)
	}
	return res, runErr
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
