package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const (
	DefaultWindow         = 10
	DefaultRecentAnalyses = 5
)

// Memory 保存跨轮次的对话历史、分析记录、结论和数据集上下文。
//
// 读操作可以并发；写操作由上层（Session）串行化。
type Memory struct {
	mu sync.RWMutex

	window int
	recent int

	history     []*schema.Message
	analyses    *orderedmap.OrderedMap[string, map[string]any]
	conclusions []string
	dataset     *dataset.Context
}

type Option func(*Memory)

// WithWindow 设置 Window 返回的最大条数。
func WithWindow(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithRecentAnalyses 设置 Summary 中展示的最近分析个数。
func WithRecentAnalyses(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.recent = n
		}
	}
}

func New(opts ...Option) *Memory {
	m := &Memory{
		window:   DefaultWindow,
		recent:   DefaultRecentAnalyses,
		analyses: orderedmap.New[string, map[string]any](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMessage 追加一条对话消息。
func (m *Memory) AddMessage(role schema.RoleType, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, &schema.Message{Role: role, Content: content})
}

// AddAnalysis 记录一次分析。同名分析覆盖参数，但保留最初的插入位置。
func (m *Memory) AddAnalysis(name string, params map[string]any) {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses.Set(name, cp)
}

// AddConclusion 追加一条结论，完全相同的文本只保留一次。返回是否新增。
func (m *Memory) AddConclusion(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conclusions {
		if c == text {
			return false
		}
	}
	m.conclusions = append(m.conclusions, text)
	return true
}

// SetDatasetContext 替换数据集上下文快照。
func (m *Memory) SetDatasetContext(c *dataset.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = c.Clone()
}

func (m *Memory) DatasetContext() *dataset.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataset.Clone()
}

// Window 返回最近的 window 条消息（旧的在前）。
func (m *Memory) Window() []*schema.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := len(m.history) - m.window
	if start < 0 {
		start = 0
	}
	return cloneMessages(m.history[start:])
}

// InitialHistory 返回全部消息，不做截断。
func (m *Memory) InitialHistory() []*schema.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMessages(m.history)
}

// Analysis 为一条分析记录。
type Analysis struct {
	Name   string
	Params map[string]any
}

// Analyses 按插入顺序返回所有分析记录。
func (m *Memory) Analyses() []Analysis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Analysis, 0, m.analyses.Len())
	for p := m.analyses.Oldest(); p != nil; p = p.Next() {
		out = append(out, Analysis{Name: p.Key, Params: p.Value})
	}
	return out
}

func (m *Memory) Conclusions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.conclusions...)
}

// Summary 生成写入系统提示词的记忆摘要：数据集信息、最近的分析名称和编号的结论。
// 同样的状态总是得到同样的文本。
func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	if c := m.dataset; c != nil {
		b.WriteString("Dataset information:\n")
		fmt.Fprintf(&b, "- File: %s\n", c.Filename)
		fmt.Fprintf(&b, "- Shape: (%d, %d)\n", c.Rows, c.Cols)
		fmt.Fprintf(&b, "- Columns: %s\n\n", strings.Join(c.Columns, ", "))
	}

	if m.analyses.Len() > 0 {
		skip := m.analyses.Len() - m.recent
		b.WriteString("Analyses performed:\n")
		i := 0
		for p := m.analyses.Oldest(); p != nil; p = p.Next() {
			if i >= skip {
				fmt.Fprintf(&b, "- %s\n", p.Key)
			}
			i++
		}
	}

	if len(m.conclusions) > 0 {
		b.WriteString("\nPrevious conclusions:\n")
		for i, c := range m.conclusions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}

	return b.String()
}

// Reset 清空对话历史、分析记录和结论，保留数据集上下文。
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.analyses = orderedmap.New[string, map[string]any]()
	m.conclusions = nil
}

func cloneMessages(in []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(in))
	for i, msg := range in {
		cp := *msg
		out[i] = &cp
	}
	return out
}
