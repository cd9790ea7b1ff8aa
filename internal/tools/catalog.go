package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cloudwego/eino/schema"
	json "github.com/goccy/go-json"

	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/plot"
)

// ErrUnknownTool 表示模型请求了未注册的工具，属于致命错误。
var ErrUnknownTool = errors.New("unknown tool")

// ID 是工具标识，取值范围固定。
type ID string

const (
	GetDataSummary          ID = "get_data_summary"
	AnalyzeDistribution     ID = "analyze_distribution"
	AnalyzeCorrelation      ID = "analyze_correlation"
	DetectOutliers          ID = "detect_outliers"
	CompareGroups           ID = "compare_groups"
	AnalyzeTemporalPatterns ID = "analyze_temporal_patterns"
	ExecuteCustomCode       ID = "execute_custom_code"
)

var knownIDs = map[ID]struct{}{
	GetDataSummary: {}, AnalyzeDistribution: {}, AnalyzeCorrelation: {}, DetectOutliers: {},
	CompareGroups: {}, AnalyzeTemporalPatterns: {}, ExecuteCustomCode: {},
}

// Env 是工具运行时能访问的数据集和渲染器。
type Env struct {
	Dataset  *dataset.Dataset
	Renderer plot.Renderer
	Logger   *slog.Logger
}

// Call 是一次工具调用请求。
type Call struct {
	ID   string
	Name string
	Args string
}

// Invoker 执行工具调用。未注册的工具返回 ErrUnknownTool，其余失败都体现在 Result 里。
type Invoker interface {
	ToolInfos() []*schema.ToolInfo
	Invoke(ctx context.Context, env Env, call Call) (Result, error)
}

// Handler 执行一个工具，参数已解码为 JSON 原文。
type Handler func(ctx context.Context, env Env, args json.RawMessage) Result

// Typed 把强类型参数的处理函数适配为 Handler。
func Typed[A any](fn func(ctx context.Context, env Env, args A) Result) Handler {
	return func(ctx context.Context, env Env, raw json.RawMessage) Result {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return Errorf("invalid arguments: %v", err)
		}
		return fn(ctx, env, args)
	}
}

// Definition 描述一个工具：模型可见的名称、说明、参数，以及处理函数。
type Definition struct {
	ID     ID
	Desc   string
	Params map[string]*schema.ParameterInfo
	Run    Handler
}

func (s Definition) Info() *schema.ToolInfo {
	params := s.Params
	if params == nil {
		params = map[string]*schema.ParameterInfo{}
	}
	return &schema.ToolInfo{
		Name:        string(s.ID),
		Desc:        s.Desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Catalog 是已注册工具的集合，注册后不再变化。
type Catalog struct {
	defs []Definition
	byID map[ID]int
}

// NewCatalog 校验并注册工具：ID 必须在固定集合内且不重复，处理函数和参数说明必须完整。
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{byID: make(map[ID]int, len(defs))}
	for _, s := range defs {
		if _, ok := knownIDs[s.ID]; !ok {
			return nil, fmt.Errorf("register tool %q: %w", s.ID, ErrUnknownTool)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("register tool %q: duplicate", s.ID)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("register tool %q: nil handler", s.ID)
		}
		if s.Desc == "" {
			return nil, fmt.Errorf("register tool %q: missing description", s.ID)
		}
		for name, p := range s.Params {
			if p == nil || p.Type == "" || p.Desc == "" {
				return nil, fmt.Errorf("register tool %q: parameter %q needs type and description", s.ID, name)
			}
		}
		c.byID[s.ID] = len(c.defs)
		c.defs = append(c.defs, s)
	}
	return c, nil
}

// ToolInfos 按注册顺序返回工具说明。
func (c *Catalog) ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, len(c.defs))
	for i, s := range c.defs {
		out[i] = s.Info()
	}
	return out
}

// Definitions 按注册顺序返回工具定义的副本。
func (c *Catalog) Definitions() []Definition {
	return append([]Definition(nil), c.defs...)
}

func (c *Catalog) Has(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// Invoke 执行一次工具调用。参数错误、处理失败和 panic 都转成 error 状态的 Result。
func (c *Catalog) Invoke(ctx context.Context, env Env, call Call) (res Result, err error) {
	i, ok := c.byID[ID(call.Name)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	def := c.defs[i]

	defer func() {
		if r := recover(); r != nil {
			if env.Logger != nil {
				env.Logger.Error("tool panicked", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
			}
			res, err = Errorf("tool %s failed: %v", call.Name, r), nil
		}
	}()

	args, perr := ParseArgs(call.Args)
	if perr != nil {
		return Errorf("invalid arguments: %v", perr), nil
	}
	for name, p := range def.Params {
		if _, present := args[name]; p.Required && !present {
			return Errorf("missing required parameter: %s", name), nil
		}
	}
	raw := json.RawMessage(normalizeArgs(call.Args))
	return def.Run(ctx, env, raw), nil
}

// ParseArgs 把参数 JSON 解析成 map。空串和 null 视为空对象。
func ParseArgs(s string) (map[string]any, error) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(normalizeArgs(s)), &args); err != nil {
		return map[string]any{}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func normalizeArgs(s string) string {
	t := bytes.TrimSpace([]byte(s))
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return "{}"
	}
	return string(t)
}
