package memory

import (
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

func testContext() *dataset.Context {
	return &dataset.Context{
		Filename: "sales.csv",
		Rows:     100,
		Cols:     2,
		Columns:  []string{"age", "city"},
		Types:    map[string]dataset.Type{"age": dataset.Numeric, "city": dataset.Categorical},
		Missing:  map[string]int{"age": 0, "city": 3},
	}
}

func TestAddConclusionIsIdempotent(t *testing.T) {
	m := New()
	assert.True(t, m.AddConclusion("X"))
	assert.False(t, m.AddConclusion("X"))
	assert.True(t, m.AddConclusion("Y"))
	assert.Equal(t, []string{"X", "Y"}, m.Conclusions())
}

func TestWindowKeepsLastTen(t *testing.T) {
	m := New()
	for i := 0; i < 15; i++ {
		m.AddMessage(schema.User, fmt.Sprintf("msg-%d", i))
	}

	w := m.Window()
	require.Len(t, w, 10)
	assert.Equal(t, "msg-5", w[0].Content)
	assert.Equal(t, "msg-14", w[9].Content)

	all := m.InitialHistory()
	require.Len(t, all, 15)
	assert.Equal(t, "msg-0", all[0].Content)

	// 返回的是副本
	w[0].Content = "changed"
	assert.Equal(t, "msg-5", m.Window()[0].Content)
}

func TestWindowOption(t *testing.T) {
	m := New(WithWindow(3))
	for i := 0; i < 5; i++ {
		m.AddMessage(schema.Assistant, fmt.Sprintf("%d", i))
	}
	w := m.Window()
	require.Len(t, w, 3)
	assert.Equal(t, "2", w[0].Content)
}

func TestAnalysesKeepInsertionOrder(t *testing.T) {
	m := New()
	m.AddAnalysis("get_data_summary", nil)
	m.AddAnalysis("analyze_distribution", map[string]any{"column": "age"})
	m.AddAnalysis("detect_outliers", map[string]any{"column": "age"})
	m.AddAnalysis("analyze_distribution", map[string]any{"column": "city"})

	got := m.Analyses()
	require.Len(t, got, 3)
	assert.Equal(t, "get_data_summary", got[0].Name)
	assert.Equal(t, "analyze_distribution", got[1].Name)
	assert.Equal(t, "city", got[1].Params["column"])
	assert.Equal(t, "detect_outliers", got[2].Name)
}

func TestSummary(t *testing.T) {
	m := New()
	assert.Equal(t, "", m.Summary())

	m.SetDatasetContext(testContext())
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		m.AddAnalysis(name, nil)
	}
	m.AddConclusion("idade média de 40 anos")
	m.AddConclusion("Recife domina")

	want := "Dataset information:\n" +
		"- File: sales.csv\n" +
		"- Shape: (100, 2)\n" +
		"- Columns: age, city\n\n" +
		"Analyses performed:\n" +
		"- a2\n- a3\n- a4\n- a5\n- a6\n" +
		"\nPrevious conclusions:\n" +
		"1. idade média de 40 anos\n" +
		"2. Recife domina\n"
	assert.Equal(t, want, m.Summary())
	assert.Equal(t, m.Summary(), m.Summary())
}

func TestResetKeepsDatasetContext(t *testing.T) {
	m := New()
	m.SetDatasetContext(testContext())
	m.AddMessage(schema.User, "q")
	m.AddAnalysis("get_data_summary", nil)
	m.AddConclusion("c")

	m.Reset()

	assert.Empty(t, m.InitialHistory())
	assert.Empty(t, m.Analyses())
	assert.Empty(t, m.Conclusions())
	require.NotNil(t, m.DatasetContext())
	assert.Equal(t, "sales.csv", m.DatasetContext().Filename)
	assert.Contains(t, m.Summary(), "sales.csv")
	assert.NotContains(t, m.Summary(), "Analyses performed")
}

func TestDatasetContextIsCopied(t *testing.T) {
	m := New()
	c := testContext()
	m.SetDatasetContext(c)
	c.Columns[0] = "changed"
	assert.Equal(t, "age", m.DatasetContext().Columns[0])
}
