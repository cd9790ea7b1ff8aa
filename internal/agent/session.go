package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/storage"
)

// 运行记录的类型。
const (
	RunKindQuery      = "query"
	RunKindAutonomous = "autonomous"
)

// Session 持有当前数据集、记忆和 Agent，串行化所有交互。
type Session struct {
	// mu 串行化交互；dsMu 只保护 ds 指针，展示类方法不必等待正在进行的分析。
	mu     sync.Mutex
	dsMu   sync.RWMutex
	agent  *Agent
	ds     *dataset.Dataset
	store  *storage.Storage
	logger *slog.Logger
}

// NewSession 创建会话。store 为空时不记录运行。
func NewSession(a *Agent, store *storage.Storage, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{agent: a, store: store, logger: logger}
}

// Load 加载数据集并整体替换当前数据集。已有交互在进行时返回 ErrBusy；
// 加载失败时当前数据集被清空。
func (s *Session) Load(ctx context.Context, path string) (string, error) {
	if !s.mu.TryLock() {
		return "", ErrBusy
	}
	defer s.mu.Unlock()

	ds, err := dataset.Load(path)
	if err != nil {
		s.setDataset(nil)
		s.logger.Error("load dataset failed", "path", path, "error", err)
		return "", fmt.Errorf("load dataset %s: %w", path, err)
	}
	s.setDataset(ds)
	s.logger.Info("dataset loaded", "path", path, "rows", ds.Rows(), "cols", ds.Cols())
	return LoadBanner(ds), nil
}

// SetDataset 直接替换当前数据集，nil 表示卸载。
func (s *Session) SetDataset(ds *dataset.Dataset) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()
	s.setDataset(ds)
	return nil
}

func (s *Session) setDataset(ds *dataset.Dataset) {
	s.dsMu.Lock()
	s.ds = ds
	s.dsMu.Unlock()
	if ds != nil {
		s.agent.Memory().SetDatasetContext(ds.Context())
	}
}

// Dataset 返回当前数据集，未加载时为 nil。
func (s *Session) Dataset() *dataset.Dataset {
	s.dsMu.RLock()
	defer s.dsMu.RUnlock()
	return s.ds
}

// LoadBanner 是加载成功后展示的摘要。
func LoadBanner(ds *dataset.Dataset) string {
	return fmt.Sprintf("✅ Dataset loaded successfully!\n"+
		"📊 Shape: %d rows × %d columns\n"+
		"📋 Columns: %s\n"+
		"🔢 Numeric columns: %d\n"+
		"📝 Categorical columns: %d\n",
		ds.Rows(), ds.Cols(), headList(ds.ColumnNames(), 10),
		len(ds.NumericColumns()), len(ds.CategoricalColumns()))
}

// Query 单次提问，不读取对话历史。
func (s *Session) Query(ctx context.Context, text string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, _ = ensureTraceID(ctx)
	started := time.Now().UTC()
	reply, err := s.agent.Run(ctx, s.Dataset(), text)
	s.recordRun(ctx, RunKindQuery, text, reply, started)
	return reply, err
}

// QueryTranscript 对话式提问，返回追加了本轮问答的 transcript。
func (s *Session) QueryTranscript(ctx context.Context, text string, transcript []Exchange) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, _ = ensureTraceID(ctx)
	started := time.Now().UTC()
	reply, err := s.agent.Converse(ctx, s.Dataset(), text)
	s.recordRun(ctx, RunKindQuery, text, reply, started)
	if err != nil {
		return append(transcript, Exchange{Prompt: text, Reply: UserMessage(err)}), err
	}
	return append(transcript, Exchange{Prompt: text, Reply: reply.Text}), nil
}

// Autonomous 对当前数据集运行自主分析。
func (s *Session) Autonomous(ctx context.Context) (*AutonomousResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, _ = ensureTraceID(ctx)
	started := time.Now().UTC()
	res, err := s.agent.Autonomous(ctx, s.Dataset())
	if res != nil {
		reply := res.Reply
		if reply == nil {
			reply = &Reply{Outcome: res.Outcome}
		}
		s.recordRun(ctx, RunKindAutonomous, res.Column, reply, started)
	}
	return res, err
}

// ResetMemory 清空对话历史、分析记录和结论；数据集上下文保留。
func (s *Session) ResetMemory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.Memory().Reset()
	return "✅ Memory reset! Previous analyses and conclusions were cleared. The chat is ready for new analyses."
}

// HistorySummary 列出已执行的分析及其参数。
func (s *Session) HistorySummary() string {
	analyses := s.agent.Memory().Analyses()
	if len(analyses) == 0 {
		return "⚠️ No analyses performed yet"
	}
	var b strings.Builder
	b.WriteString("## 📜 Analysis History\n\n")
	for i, an := range analyses {
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, an.Name)
		if len(an.Params) > 0 {
			raw, err := json.Marshal(an.Params)
			if err != nil {
				raw = []byte(fmt.Sprint(an.Params))
			}
			fmt.Fprintf(&b, "  - Parameters: `%s`\n", clipRunes(string(raw), 150))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ConclusionsSummary 列出已记录的结论。
func (s *Session) ConclusionsSummary() string {
	conclusions := s.agent.Memory().Conclusions()
	if len(conclusions) == 0 {
		return "⚠️ No conclusions recorded yet.\n\n" +
			"💡 Tip: ask the agent:\n" +
			"- \"What are your conclusions about the data?\"\n" +
			"- \"Summarise the main findings\"\n" +
			"- \"Which insights did you get from the analyses?\"\n"
	}
	var b strings.Builder
	b.WriteString("## 🎯 Agent Conclusions and Insights\n\n")
	for i, c := range conclusions {
		fmt.Fprintf(&b, "### 📌 Conclusion %d\n%s\n\n---\n\n", i+1, c)
	}
	return b.String()
}

// DatasetStatus 是当前数据集的简要状态。
func (s *Session) DatasetStatus() string { return DatasetStatus(s.Dataset()) }

// DetailedInfo 是当前数据集逐列的详细信息。
func (s *Session) DetailedInfo() string { return DetailedInfo(s.Dataset()) }

// DatasetStatus 是数据集的简要状态，ds 为 nil 表示未加载。
func DatasetStatus(ds *dataset.Dataset) string {
	if ds == nil {
		return "❌ **No dataset loaded**"
	}
	return fmt.Sprintf("✅ **Dataset Loaded**\n\n"+
		"📁 **File:** %s\n"+
		"📊 **Shape:** %s rows × %d columns\n"+
		"💾 **Memory:** %s\n"+
		"🔢 **Numeric columns:** %d\n"+
		"📝 **Categorical columns:** %d\n",
		ds.Name, humanize.Comma(int64(ds.Rows())), ds.Cols(), humanize.IBytes(ds.MemoryUsage()),
		len(ds.NumericColumns()), len(ds.CategoricalColumns()))
}

// DetailedInfo 是逐列的详细信息。
func DetailedInfo(ds *dataset.Dataset) string {
	if ds == nil {
		return "⚠️ No dataset loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## 📊 Detailed Dataset Information\n\n### 📋 General\n"+
		"- **File:** %s\n- **Shape:** %s rows × %d columns\n- **Memory:** %s\n- **Duplicates:** %s\n\n"+
		"### 📊 Columns\n\n",
		ds.Name, humanize.Comma(int64(ds.Rows())), ds.Cols(), humanize.IBytes(ds.MemoryUsage()),
		humanize.Comma(int64(ds.DuplicateRows())))

	for _, col := range ds.Columns() {
		emoji := "📝"
		if col.Type == dataset.Numeric {
			emoji = "🔢"
		}
		missingPct := 0.0
		if ds.Rows() > 0 {
			missingPct = float64(col.Missing()) / float64(ds.Rows()) * 100
		}
		fmt.Fprintf(&b, "#### %s **%s**\n", emoji, col.Name)
		fmt.Fprintf(&b, "- **Type:** `%s`\n", col.Type)
		fmt.Fprintf(&b, "- **Unique values:** %s\n", humanize.Comma(int64(ds.Unique(col.Name))))
		fmt.Fprintf(&b, "- **Missing values:** %s (%.2f%%)\n", humanize.Comma(int64(col.Missing())), missingPct)
		if st, ok := ds.Describe(col.Name); ok {
			fmt.Fprintf(&b, "- **Min:** %.2f | **Max:** %.2f | **Mean:** %.2f\n", st.Min, st.Max, st.Mean)
		} else {
			top := "N/A"
			if vc, _ := ds.ValueCounts(col.Name); len(vc) > 0 {
				top = vc[0].Value
			}
			fmt.Fprintf(&b, "- **Most frequent value:** %s\n", top)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Session) ToolInfos() []*schema.ToolInfo { return s.agent.ToolInfos() }

// Close 释放会话持有的存储。
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dsMu.Lock()
	s.ds = nil
	s.dsMu.Unlock()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Session) recordRun(ctx context.Context, kind, query string, reply *Reply, started time.Time) {
	if s.store == nil || reply == nil {
		return
	}
	rec := &storage.RunRecord{
		TraceID:    TraceID(ctx),
		Kind:       kind,
		Query:      clipRunes(query, 4096),
		Outcome:    string(reply.Outcome),
		Iterations: reply.Iterations,
		ToolCalls:  reply.ToolCalls,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if ds := s.Dataset(); ds != nil {
		rec.Dataset = ds.Name
	}
	if err := s.store.InsertRunRecord(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("insert run record failed", "trace_id", rec.TraceID, "error", err)
	}
}

func clipRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
