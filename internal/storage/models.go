package storage

import "time"

// 审计状态。
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunRecord 记录一次 Agent 运行（一次提问或一次自主分析）。
//
// 它只用于运维侧回看"什么时候对哪个数据集跑了什么"，Agent 的记忆不会从这里恢复。
type RunRecord struct {
	ID uint64 `gorm:"primaryKey"`
	// TraceID 与同一次运行中的 AuditRecord 相同。
	TraceID string `gorm:"size:64;uniqueIndex"`
	// Kind 为 query 或 autonomous。
	Kind    string `gorm:"size:32;not null;index"`
	Dataset string `gorm:"size:255;index"`
	// Query 为用户问题；自主分析时为选中的列。
	Query string `gorm:"type:text"`
	// Outcome 为运行结果（final_answer / max_iterations / no_dataset / no_columns / error）。
	Outcome    string `gorm:"size:32;index"`
	Iterations int
	ToolCalls  int
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	CreatedAt  time.Time `gorm:"not null;autoCreateTime;index"`
}

// AuditRecord 记录一次分析工具调用及其结果。
//
// 复杂入参/输出统一以 JSON 字符串存放，便于快速落地与版本演进。
type AuditRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 串联一次运行内的所有工具调用。
	TraceID string `gorm:"size:64;index"`
	// Dataset 为调用时加载的数据集文件名。
	Dataset string `gorm:"size:255;index"`
	// Action 为工具名，例如 analyze_distribution。
	Action string `gorm:"size:128;not null;index"`
	// CallID 为模型给出的 tool call id。
	CallID     string `gorm:"size:128"`
	ParamsJSON string `gorm:"type:text"`
	ResultJSON string `gorm:"type:text"`
	// ResultStatus 为工具结果里的 status（success/error/warning/info）。
	ResultStatus string `gorm:"size:32;index"`
	// PlotPath 为生成的图表文件（可选）。
	PlotPath string `gorm:"size:512"`
	// Status 表示执行状态（running/success/failed）。
	Status       string `gorm:"size:32;not null;index"`
	ErrorMessage string `gorm:"type:text"`
	// StartedAt/FinishedAt 表示调用起止时间。统计耗时可用 FinishedAt-StartedAt。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time `gorm:"index"`
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}
