package agent

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/EDAgent/internal/dataset"
)

// SystemPromptTemplate 是每轮重建的系统提示词。
// 模板变量: {filename}, {rows}, {cols}, {numeric_count}, {numeric_columns},
// {categorical_count}, {categorical_columns}, {memory_context}, {language}
const SystemPromptTemplate = `You are an agent specialised in generic, adaptable Exploratory Data Analysis (EDA), focused on delivering detailed insights and conclusions.

Current dataset:
- File: {filename}
- Shape: {rows} rows × {cols} columns
- Numeric columns ({numeric_count}): {numeric_columns}
- Categorical columns ({categorical_count}): {categorical_columns}

You have access to analysis tools (get_data_summary, analyze_distribution, analyze_correlation, detect_outliers, compare_groups, analyze_temporal_patterns).

Context from previous analyses:
{memory_context}

IMPORTANT:
- For the initial analysis, or when a summary is requested, call get_data_summary() first.
- Use the tools sequentially and logically.
- Adapt the analyses to the data types.
- Synthesise the information into actionable conclusions.
- Be proactive in suggesting relevant analyses.
- Answer in {language}, clearly structured with markdown.
`

// AutonomousChecklist 是自主分析的固定 EDA 清单。
const AutonomousChecklist = `Perform a complete and detailed Exploratory Data Analysis (EDA) of this dataset.

## 1. Data description and structure (mandatory)
1. Initial summary: use the get_data_summary() tool.
2. Identify the data types.
3. Missing values.
4. Duplicate rows.

## 2. Univariate analysis and distribution (includes an automatic chart)
5. Chart the distribution: IMMEDIATELY GENERATE A CHART with analyze_distribution.
6. Measures of central tendency.
7. Measures of variability.
8. Frequencies of the categorical columns.

## 3. Anomaly detection (outliers)
9. Run detect_outliers on at least two numeric columns.
10. Recommend how to treat the outliers found.

## 4. Relationships and patterns (multivariate)
11. Run analyze_correlation (chart).
12. Point out the strongest correlations.
13. Compare groups with compare_groups.
14. Interpret the relationships found.

## 5. Additional analyses
15. Temporal patterns with analyze_temporal_patterns, when a date column exists.
16. Homogeneity of the data, class balance and cardinality.
17. Quartiles, skewness and possible clusters.
18. Suggested next steps.

## 6. Final conclusions
19. Synthesise the findings.
`

// NewChatTemplate 组装 "System + History"。history 中已包含本轮用户输入。
func NewChatTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(SystemPromptTemplate),
		schema.MessagesPlaceholder("history", true),
	)
}

// promptVars 生成系统提示词的变量。
func promptVars(ds *dataset.Dataset, memoryContext, language string) map[string]any {
	numeric := ds.NumericColumns()
	categorical := ds.CategoricalColumns()
	return map[string]any{
		"filename":            ds.Name,
		"rows":                ds.Rows(),
		"cols":                ds.Cols(),
		"numeric_count":       len(numeric),
		"numeric_columns":     headList(numeric, 10),
		"categorical_count":   len(categorical),
		"categorical_columns": headList(categorical, 10),
		"memory_context":      memoryContext,
		"language":            language,
	}
}

// headList 取前 n 个名字用逗号连接，超出部分以 ... 表示。
func headList(names []string, n int) string {
	if len(names) <= n {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:n], ", ") + "..."
}

// autonomousPrompt 是自主分析的首条用户消息：清单加上强制开局。
func autonomousPrompt(column string) string {
	return fmt.Sprintf(`%s
FORCED INITIAL EXECUTION:
- Use get_data_summary() first.
- Then run analyze_distribution(column='%s').
- Continue with the analysis plan.
`, AutonomousChecklist, column)
}
