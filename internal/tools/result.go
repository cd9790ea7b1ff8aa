package tools

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Status 是工具结果的状态标签。
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// Result 是工具执行结果。只有交给模型时才序列化成 JSON 文本。
type Result struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Result   any    `json:"result,omitempty"`
	PlotInfo string `json:"plot_info,omitempty"`
	PlotPath string `json:"plot_path,omitempty"`
}

func Success(result any) Result {
	return Result{Status: StatusSuccess, Result: result}
}

func Errorf(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func Warning(msg string) Result {
	return Result{Status: StatusWarning, Message: msg}
}

// WithPlot 附加图表路径。
func (r Result) WithPlot(path string) Result {
	r.PlotPath = path
	r.PlotInfo = fmt.Sprintf("Chart saved to %s.", path)
	return r
}

func (r Result) IsError() bool { return r.Status == StatusError }

// JSON 返回交给模型的文本。
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(Errorf("failed to encode tool result: %v", err))
	}
	return string(b)
}
