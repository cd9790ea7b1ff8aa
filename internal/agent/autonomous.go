package agent

import (
	"context"
	"math"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

// AutonomousLabel 是自主分析中每段回答在展示层的标题。
const AutonomousLabel = "**Autonomous Analysis**"

// AutonomousResult 是一次自主分析的结果。
type AutonomousResult struct {
	Exchanges []Exchange
	Final     string
	Outcome   Outcome
	// Column 为强制开局时绘图的列，Reason 为选择原因。
	Column string
	Reason string
	Reply  *Reply
}

// SelectPlotColumn 为自主分析挑选第一张分布图的列。
//
// 优先级：样本标准差最大的数值列（稳定排序，NaN 排最后）；取值个数在 [2,10] 的第一个类别列；
// 第一个类别列；第一列。没有列时 ok=false。
func SelectPlotColumn(ds *dataset.Dataset) (column, reason string, ok bool) {
	if ds == nil || ds.Cols() == 0 || ds.Rows() == 0 {
		return "", "", false
	}

	if numeric := ds.NumericColumns(); len(numeric) > 0 {
		type ranked struct {
			name string
			std  float64
		}
		rs := make([]ranked, len(numeric))
		for i, name := range numeric {
			s, _ := ds.Describe(name)
			rs[i] = ranked{name: name, std: s.Std}
		}
		sort.SliceStable(rs, func(i, j int) bool {
			a, b := rs[i].std, rs[j].std
			if math.IsNaN(b) {
				return !math.IsNaN(a)
			}
			if math.IsNaN(a) {
				return false
			}
			return a > b
		})
		return rs[0].name, "numeric column with the highest variance", true
	}

	if categorical := ds.CategoricalColumns(); len(categorical) > 0 {
		for _, name := range categorical {
			if n := ds.Unique(name); n >= 2 && n <= 10 {
				return name, "categorical column well suited to a distribution chart", true
			}
		}
		return categorical[0], "first categorical column", true
	}

	return ds.ColumnNames()[0], "first available column", true
}

// Autonomous 清空记忆后运行一次完整的自主 EDA，并把结果整理成展示用的问答序列。
func (a *Agent) Autonomous(ctx context.Context, ds *dataset.Dataset) (*AutonomousResult, error) {
	if ds == nil {
		return &AutonomousResult{Final: MsgNoDatasetAutonomous, Outcome: OutcomeNoDataset}, nil
	}
	a.memory.Reset()

	column, reason, ok := SelectPlotColumn(ds)
	if !ok {
		return &AutonomousResult{Final: MsgNoColumns, Outcome: OutcomeNoColumns}, nil
	}
	a.logger.Info("autonomous analysis started", "dataset", ds.Name, "column", column, "reason", reason)

	reply, err := a.Run(ctx, ds, autonomousPrompt(column))
	res := &AutonomousResult{Column: column, Reason: reason, Reply: reply}
	if reply != nil {
		res.Final = reply.Text
		res.Outcome = reply.Outcome
	}
	if err != nil {
		return res, err
	}
	res.Exchanges = autonomousExchanges(a.memory.InitialHistory())
	return res, nil
}

// autonomousExchanges 把助手消息整理成问答：回答为空的一段由下一条助手消息补上；
// 最后一段完整时追加结束提示。
func autonomousExchanges(history []*schema.Message) []Exchange {
	var out []Exchange
	for _, m := range history {
		if m.Role != schema.Assistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Reply == "" {
			out[n-1].Reply = m.Content
			continue
		}
		out = append(out, Exchange{Prompt: AutonomousLabel, Reply: m.Content})
	}
	if n := len(out); n > 0 && out[n-1].Reply != "" {
		out = append(out, Exchange{Reply: MsgAutonomousDone})
	}
	return out
}
