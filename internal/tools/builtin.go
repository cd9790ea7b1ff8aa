package tools

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

// Options 控制默认工具集。
type Options struct {
	// EnableCustomCode 为 true 时注册 execute_custom_code。
	EnableCustomCode bool
	CodeTimeout      time.Duration
}

// Default 返回内置的分析工具集，顺序即模型看到的顺序。
func Default(opts Options) (*Catalog, error) {
	defs := []Definition{
		dataSummaryDef(),
		distributionDef(),
		correlationDef(),
		outliersDef(),
		compareGroupsDef(),
		temporalDef(),
	}
	if opts.EnableCustomCode {
		defs = append(defs, customCodeDef(opts.CodeTimeout))
	}
	return NewCatalog(defs...)
}

func requireDataset(env Env) (*dataset.Dataset, *Result) {
	if env.Dataset == nil {
		r := Errorf("no dataset loaded")
		return nil, &r
	}
	return env.Dataset, nil
}

// lookupColumn 查找列，找不到时返回带候选列名的错误结果。
func lookupColumn(ds *dataset.Dataset, name string) (*dataset.Column, *Result) {
	if name == "" {
		r := Errorf("column name is required")
		return nil, &r
	}
	col, ok := ds.Column(name)
	if ok {
		return col, nil
	}
	msg := fmt.Sprintf("Column '%s' not found", name)
	if s := ds.Suggest(name); len(s) > 0 {
		msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(s, ", "))
	}
	r := Result{Status: StatusError, Message: msg}
	return nil, &r
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func topCounts(vc []dataset.ValueCount, n int) []dataset.ValueCount {
	if len(vc) > n {
		return vc[:n]
	}
	return vc
}
