package agent

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// FormatMessage 把一条消息压成一行，用于调试日志和 --verbose 输出。
func FormatMessage(m *schema.Message) string {
	if m == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(m.Role))
	if m.ToolName != "" {
		b.WriteString(" tool=")
		b.WriteString(m.ToolName)
	}
	if m.ToolCallID != "" {
		b.WriteString(" tool_call_id=")
		b.WriteString(m.ToolCallID)
	}
	if len(m.ToolCalls) > 0 {
		b.WriteString(" tool_calls=[")
		for i, tc := range m.ToolCalls {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tc.Function.Name)
			if s := strings.TrimSpace(tc.Function.Arguments); s != "" {
				b.WriteString("(")
				b.WriteString(clip(s, 200))
				b.WriteString(")")
			}
		}
		b.WriteString("]")
	}
	if content := strings.TrimSpace(m.Content); content != "" {
		b.WriteString(" content=")
		b.WriteString(clip(content, 400))
	}
	return b.String()
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
