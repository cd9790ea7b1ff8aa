package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/wwwzy/EDAgent/internal/config"
	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/memory"
	"github.com/wwwzy/EDAgent/internal/plot"
	"github.com/wwwzy/EDAgent/internal/tools"
)

// Agent 驱动 "模型 -> 工具 -> 模型" 的有界循环。
type Agent struct {
	model    model.ToolCallingChatModel
	invoker  tools.Invoker
	memory   *memory.Memory
	renderer plot.Renderer
	template prompt.ChatTemplate
	cfg      config.AgentConfig
	logger   *slog.Logger
}

type Option func(*Agent)

func WithRenderer(r plot.Renderer) Option {
	return func(a *Agent) { a.renderer = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithConfig 覆盖默认的循环参数；非正数的上限沿用默认值。
func WithConfig(cfg config.AgentConfig) Option {
	return func(a *Agent) {
		def := a.cfg
		a.cfg = cfg
		if a.cfg.MaxIterations < 1 {
			a.cfg.MaxIterations = def.MaxIterations
		}
		if a.cfg.Language == "" {
			a.cfg.Language = def.Language
		}
		if a.cfg.ConclusionKeywords == nil {
			a.cfg.ConclusionKeywords = def.ConclusionKeywords
		}
	}
}

// New 绑定工具并创建 Agent。chatModel 不需要预先绑定工具。
func New(chatModel model.ToolCallingChatModel, invoker tools.Invoker, mem *memory.Memory, opts ...Option) (*Agent, error) {
	if chatModel == nil || invoker == nil || mem == nil {
		return nil, errors.New("agent: chat model, invoker and memory are required")
	}
	a := &Agent{
		invoker:  invoker,
		memory:   mem,
		template: NewChatTemplate(),
		cfg:      config.DefaultConfig().Agent,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	bound, err := chatModel.WithTools(invoker.ToolInfos())
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	a.model = bound
	return a, nil
}

func (a *Agent) Memory() *memory.Memory { return a.memory }

func (a *Agent) ToolInfos() []*schema.ToolInfo { return a.invoker.ToolInfos() }

// Run 单次运行：消息为 [system, user(query)]，不读取对话历史。
func (a *Agent) Run(ctx context.Context, ds *dataset.Dataset, query string) (*Reply, error) {
	if ds == nil {
		return &Reply{Text: MsgNoDataset, Outcome: OutcomeNoDataset}, nil
	}
	return a.loop(ctx, ds, []*schema.Message{schema.UserMessage(query)})
}

// Converse 对话运行：先把 query 写入记忆，再以 [system] + 最近窗口作为消息。
func (a *Agent) Converse(ctx context.Context, ds *dataset.Dataset, query string) (*Reply, error) {
	if ds == nil {
		return &Reply{Text: MsgNoDataset, Outcome: OutcomeNoDataset}, nil
	}
	a.memory.AddMessage(schema.User, query)
	return a.loop(ctx, ds, a.memory.Window())
}

// RunTranscript 在 transcript 末尾追加 {query, 回答} 并返回。
func (a *Agent) RunTranscript(ctx context.Context, ds *dataset.Dataset, query string, transcript []Exchange) ([]Exchange, error) {
	reply, err := a.Converse(ctx, ds, query)
	if err != nil {
		return append(transcript, Exchange{Prompt: query, Reply: UserMessage(err)}), err
	}
	return append(transcript, Exchange{Prompt: query, Reply: reply.Text}), nil
}

func (a *Agent) loop(ctx context.Context, ds *dataset.Dataset, history []*schema.Message) (*Reply, error) {
	ctx, traceID := ensureTraceID(ctx)
	logger := a.logger.With("trace_id", traceID, "dataset", ds.Name)

	a.memory.SetDatasetContext(ds.Context())

	st := &loopState{Messages: history}
	env := tools.Env{Dataset: ds, Renderer: a.renderer, Logger: logger}

	fail := func(err error) (*Reply, error) {
		return &Reply{
			Text:       UserMessage(err),
			Outcome:    OutcomeError,
			Iterations: st.Iteration,
			ToolCalls:  st.ToolCalls,
			Messages:   st.Messages,
		}, err
	}

	for st.Iteration < a.cfg.MaxIterations {
		st.Iteration++

		// 每轮重建系统消息，使其反映最新的记忆
		vars := promptVars(ds, a.memory.Summary(), a.cfg.Language)
		vars["history"] = st.Messages
		messages, err := a.template.Format(ctx, vars)
		if err != nil {
			return fail(fmt.Errorf("format chat template failed: %w", err))
		}

		aiMsg, err := a.model.Generate(ctx, messages)
		if err != nil {
			logger.Error("chat model generate failed", "iteration", st.Iteration, "error", err)
			return fail(err)
		}
		if aiMsg == nil {
			aiMsg = &schema.Message{Role: schema.Assistant}
		}
		logger.Debug("model reply", "iteration", st.Iteration, "message", FormatMessage(aiMsg))

		if len(aiMsg.ToolCalls) == 0 {
			a.finish(aiMsg.Content)
			st.Messages = append(st.Messages, aiMsg)
			return &Reply{
				Text:       aiMsg.Content,
				Outcome:    OutcomeFinalAnswer,
				Iterations: st.Iteration,
				ToolCalls:  st.ToolCalls,
				Messages:   st.Messages,
			}, nil
		}

		st.NextStepToolCalls = assignCallIDs(aiMsg.ToolCalls)
		st.Messages = append(st.Messages, sanitizedAssistant(aiMsg, st.NextStepToolCalls))

		for _, tc := range st.NextStepToolCalls {
			name := tc.Function.Name
			res, err := a.invoker.Invoke(ctx, env, tools.Call{ID: tc.ID, Name: name, Args: tc.Function.Arguments})
			if err != nil {
				logger.Error("tool dispatch failed", "tool", name, "call_id", tc.ID, "error", err)
				return fail(err)
			}
			st.ToolCalls++

			args, _ := tools.ParseArgs(tc.Function.Arguments)
			a.memory.AddAnalysis(name, args)

			st.Messages = append(st.Messages, &schema.Message{
				Role:       schema.Tool,
				Content:    res.JSON(),
				ToolCallID: tc.ID,
				ToolName:   name,
			})
			logger.Info("tool executed", "tool", name, "call_id", tc.ID, "status", res.Status)
		}
		st.NextStepToolCalls = nil
	}

	logger.Warn("max iterations reached", "iterations", st.Iteration)
	return &Reply{
		Text:       MsgMaxIterations,
		Outcome:    OutcomeMaxIterations,
		Iterations: st.Iteration,
		ToolCalls:  st.ToolCalls,
		Messages:   st.Messages,
	}, nil
}

// finish 记录最终回答：命中结论关键词时存为结论，回答本身总是写入历史。
func (a *Agent) finish(content string) {
	if isConclusion(content, a.cfg.ConclusionKeywords) {
		a.memory.AddConclusion(content)
	}
	a.memory.AddMessage(schema.Assistant, content)
}

func isConclusion(content string, keywords []string) bool {
	if content == "" {
		return false
	}
	lower := strings.ToLower(content)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// assignCallIDs 为缺少 id 的调用生成 call_<uuid>。
func assignCallIDs(calls []schema.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "call_" + uuid.NewString()
		}
	}
	return out
}

// sanitizedAssistant 复制一条带工具调用的助手消息，非法的参数 JSON 记为 {}。
// 供应商会拒绝历史里参数不合法的 tool call。
func sanitizedAssistant(msg *schema.Message, calls []schema.ToolCall) *schema.Message {
	out := *msg
	out.ToolCalls = make([]schema.ToolCall, len(calls))
	copy(out.ToolCalls, calls)
	for i := range out.ToolCalls {
		args := strings.TrimSpace(out.ToolCalls[i].Function.Arguments)
		if args == "" || !json.Valid([]byte(args)) {
			out.ToolCalls[i].Function.Arguments = "{}"
		}
	}
	return &out
}
