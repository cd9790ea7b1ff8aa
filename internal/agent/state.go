package agent

import "github.com/cloudwego/eino/schema"

// Outcome 是一次运行的结束方式。
type Outcome string

const (
	OutcomeFinalAnswer   Outcome = "final_answer"
	OutcomeMaxIterations Outcome = "max_iterations"
	OutcomeNoDataset     Outcome = "no_dataset"
	OutcomeNoColumns     Outcome = "no_columns"
	OutcomeError         Outcome = "error"
)

// Reply 是单次运行的结果。
type Reply struct {
	Text       string
	Outcome    Outcome
	Iterations int
	ToolCalls  int
	// Messages 为系统消息之后的完整消息序列，含最终回答。
	Messages []*schema.Message
}

// Exchange 是展示层的一问一答。Reply 为空表示这一轮还没有回答。
type Exchange struct {
	Prompt string
	Reply  string
}

// loopState 是编排循环的内部状态。
type loopState struct {
	// Messages 为系统消息之后的全部消息。
	Messages          []*schema.Message
	NextStepToolCalls []schema.ToolCall
	Iteration         int
	ToolCalls         int
}
