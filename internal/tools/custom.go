package tools

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	lua "github.com/yuin/gopher-lua"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

const (
	defaultCodeTimeout = 5 * time.Second
	maxCodeOutput      = 8 * 1024
	maxLuaDepth        = 4
)

type codeArgs struct {
	Code string `json:"code"`
}

func customCodeDef(timeout time.Duration) Definition {
	if timeout <= 0 {
		timeout = defaultCodeTimeout
	}
	return Definition{
		ID: ExecuteCustomCode,
		Desc: "Run a short Lua script for an analysis the other tools do not cover. " +
			"A read-only table `df` is available: df.columns, df.numeric, df.categorical, df.rows, " +
			"df.col(name) (list of values, nil for missing), df.mean(name), df.std(name), df.count(name), " +
			"df.unique(name), df.corr(a, b). Use print() for output and `return` a value.",
		Params: map[string]*schema.ParameterInfo{
			"code": {Type: schema.String, Desc: "Lua source code to run", Required: true},
		},
		Run: Typed(func(ctx context.Context, env Env, args codeArgs) Result {
			return runLua(ctx, env, args.Code, timeout)
		}),
	}
}

// runLua 在受限的 Lua 环境中执行代码：只开放 base/table/string/math，禁止加载文件或动态代码。
func runLua(ctx context.Context, env Env, code string, timeout time.Duration) Result {
	ds, errRes := requireDataset(env)
	if errRes != nil {
		return *errRes
	}
	if strings.TrimSpace(code) == "" {
		return Errorf("code is empty")
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true, CallStackSize: 256, RegistrySize: 1024 * 64})
	defer L.Close()
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	var out strings.Builder
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		for i := 1; i <= n; i++ {
			if i > 1 {
				out.WriteByte('\t')
			}
			out.WriteString(L.ToStringMeta(L.Get(i)).String())
		}
		out.WriteByte('\n')
		return 0
	}))
	L.SetGlobal("df", dataFrameTable(L, ds))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	L.SetContext(runCtx)

	fn, err := L.LoadString(code)
	if err != nil {
		return Errorf("code compilation failed: %v", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		r := Errorf("code execution failed: %v", err)
		r.Result = map[string]any{"output": truncateOutput(out.String())}
		return r
	}
	ret := L.Get(-1)
	L.Pop(1)

	return Success(map[string]any{
		"output": truncateOutput(out.String()),
		"return": luaToGo(ret, 0),
	})
}

func dataFrameTable(L *lua.LState, ds *dataset.Dataset) *lua.LTable {
	df := L.NewTable()
	L.SetField(df, "rows", lua.LNumber(ds.Rows()))
	L.SetField(df, "columns", stringList(L, ds.ColumnNames()))
	L.SetField(df, "numeric", stringList(L, ds.NumericColumns()))
	L.SetField(df, "categorical", stringList(L, ds.CategoricalColumns()))

	column := func(L *lua.LState) *dataset.Column {
		name := L.CheckString(1)
		c, ok := ds.Column(name)
		if !ok {
			L.RaiseError("column '%s' not found", name)
		}
		return c
	}
	number := func(L *lua.LState, f float64) int {
		if math.IsNaN(f) {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LNumber(f))
		}
		return 1
	}

	L.SetField(df, "col", L.NewFunction(func(L *lua.LState) int {
		c := column(L)
		t := L.CreateTable(c.Len(), 0)
		for i := 0; i < c.Len(); i++ {
			if f, ok := c.Float(i); ok {
				t.RawSetInt(i+1, lua.LNumber(f))
			} else if v, ok := c.Value(i); ok {
				t.RawSetInt(i+1, lua.LString(v))
			} else {
				t.RawSetInt(i+1, lua.LNil)
			}
		}
		L.Push(t)
		return 1
	}))
	L.SetField(df, "mean", L.NewFunction(func(L *lua.LState) int {
		return number(L, dataset.Mean(column(L).Floats()))
	}))
	L.SetField(df, "std", L.NewFunction(func(L *lua.LState) int {
		return number(L, dataset.StdDev(column(L).Floats()))
	}))
	L.SetField(df, "count", L.NewFunction(func(L *lua.LState) int {
		c := column(L)
		L.Push(lua.LNumber(c.Len() - c.Missing()))
		return 1
	}))
	L.SetField(df, "unique", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(ds.Unique(column(L).Name)))
		return 1
	}))
	L.SetField(df, "corr", L.NewFunction(func(L *lua.LState) int {
		a, b := L.CheckString(1), L.CheckString(2)
		return number(L, ds.Correlation(a, b))
	}))
	return df
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}

func luaToGo(v lua.LValue, depth int) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case lua.LString:
		return string(x)
	case *lua.LTable:
		if depth >= maxLuaDepth {
			return "<table>"
		}
		if n := x.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(x.RawGetInt(i), depth+1))
			}
			return out
		}
		out := map[string]any{}
		x.ForEach(func(k, val lua.LValue) {
			out[k.String()] = luaToGo(val, depth+1)
		})
		return out
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxCodeOutput {
		return s
	}
	return s[:maxCodeOutput] + "\n...(truncated)"
}
