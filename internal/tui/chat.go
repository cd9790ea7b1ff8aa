package tui

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/ui"
)

type ChatUI struct{}

func (u *ChatUI) Run(ctx context.Context, backend ui.ChatBackend, opts ui.ChatOptions) error {
	m := newChatModel(ctx, backend, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type role int

const (
	roleUser role = iota
	roleAgent
	roleNotice
)

type entry struct {
	role    role
	content string
}

// backendResultMsg 是一次后台调用（提问、命令或自主分析）的结果。
type backendResultMsg struct {
	text       string
	transcript []agent.Exchange
	notice     bool
	exit       bool
}

type streamTickMsg struct{}
type cancelMsg struct{}

var stdioMu sync.Mutex

type chatModel struct {
	ctx     context.Context
	backend ui.ChatBackend
	opts    ui.ChatOptions

	entries    []entry
	transcript []agent.Exchange

	width  int
	height int

	viewport   viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	thinking   bool
	followTail bool

	overrideContent map[int]string
	streaming       bool
	streamIdx       int
	streamPos       int
	streamFull      string

	renderer *glamour.TermRenderer
}

func newChatModel(ctx context.Context, backend ui.ChatBackend, opts ui.ChatOptions) chatModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	ti := textinput.New()
	ti.Placeholder = "Ask about the data, or /help"
	ti.Prompt = ""
	ti.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("")

	m := chatModel{
		ctx:             ctx,
		backend:         backend,
		opts:            opts,
		viewport:        vp,
		input:           ti,
		spinner:         s,
		followTail:      true,
		overrideContent: map[int]string{},
		streamIdx:       -1,
	}
	m.entries = append(m.entries, entry{role: roleNotice, content: backend.DatasetStatus()})
	// 已加载数据集时启动即运行自主分析
	m.thinking = backend.Dataset() != nil && !opts.SkipAutonomous
	return m
}

func (m chatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitCancel(m.ctx)}
	if m.thinking {
		cmds = append(cmds, runBackend(func() backendResultMsg {
			return backendResultMsg{text: ui.RunAutonomous(m.ctx, m.backend)}
		}))
	}
	return tea.Batch(cmds...)
}

func waitCancel(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return cancelMsg{}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cancelMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := 3
		footerHeight := 1
		chatHeight := m.height - inputHeight - footerHeight
		if chatHeight < 1 {
			chatHeight = 1
		}

		m.viewport.Width = m.width
		m.viewport.Height = chatHeight
		m.input.Width = max(10, m.width-4)

		m.resetMarkdownRenderer()
		m.updateViewportContent(m.renderChat())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case backendResultMsg:
		m.thinking = false
		if msg.exit {
			return m, tea.Quit
		}
		if msg.transcript != nil {
			m.transcript = msg.transcript
		}
		r := roleAgent
		if msg.notice {
			r = roleNotice
		}
		m.entries = append(m.entries, entry{role: r, content: msg.text})
		m.followTail = true

		if r == roleAgent {
			m.startStreaming(len(m.entries) - 1)
		}
		m.updateViewportContent(m.renderChat())
		if m.streaming {
			return m, streamTick()
		}
		return m, nil

	case streamTickMsg:
		if !m.streaming {
			return m, nil
		}
		m.streamPos = min(len(m.streamFull), m.streamPos+32)
		m.overrideContent[m.streamIdx] = m.streamFull[:m.streamPos]
		if m.streamPos >= len(m.streamFull) {
			m.streaming = false
		}
		m.updateViewportContent(m.renderChat())
		if m.streaming {
			return m, streamTick()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "pgup", "pageup":
			m.viewport.PageUp()
			m.followTail = false
			return m, nil
		case "pgdown", "pagedown":
			m.viewport.PageDown()
			if m.viewport.AtBottom() {
				m.followTail = true
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)

		if msg.String() == "enter" && !m.thinking {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, cmd
			}
			m.input.SetValue("")
			m.entries = append(m.entries, entry{role: roleUser, content: text})
			m.followTail = true
			m.updateViewportContent(m.renderChat())
			m.thinking = true
			return m, tea.Batch(cmd, m.submit(text))
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit 在后台处理一条输入：命令交给 ui.HandleCommand，其余作为对话提问。
func (m chatModel) submit(text string) tea.Cmd {
	ctx, backend, opts, transcript := m.ctx, m.backend, m.opts, m.transcript
	return runBackend(func() backendResultMsg {
		if res := ui.HandleCommand(ctx, backend, text, opts); res.Handled {
			// /load 和 /auto 的输出是分析结果，其余命令是提示信息
			isAnalysis := strings.HasPrefix(text, "/load") || strings.HasPrefix(text, "/auto")
			return backendResultMsg{text: res.Text, exit: res.Exit, notice: !isAnalysis}
		}
		next, _ := backend.QueryTranscript(ctx, text, transcript)
		reply := "(no answer)"
		if n := len(next); n > 0 && strings.TrimSpace(next[n-1].Reply) != "" {
			reply = next[n-1].Reply
		}
		return backendResultMsg{text: reply, transcript: next}
	})
}

// runBackend 在后台执行 fn。执行期间丢弃标准输出和标准错误，避免日志打乱界面。
func runBackend(fn func() backendResultMsg) tea.Cmd {
	return func() tea.Msg {
		devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return fn()
		}
		defer devNull.Close()

		stdioMu.Lock()
		oldStdout, oldStderr := os.Stdout, os.Stderr
		os.Stdout, os.Stderr = devNull, devNull
		stdioMu.Unlock()

		defer func() {
			stdioMu.Lock()
			os.Stdout, os.Stderr = oldStdout, oldStderr
			stdioMu.Unlock()
		}()
		return fn()
	}
}

func (m chatModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render("EDAgent")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.inputView(), m.footerView())
}

func (m chatModel) footerView() string {
	left := "Enter send | /help commands | PgUp/PgDn scroll | Ctrl+C quit"
	right := ""
	if m.thinking {
		right = m.spinner.View() + " Analysing..."
	}
	style := lipgloss.NewStyle().Width(m.width).Padding(0, 1)
	gap := lipgloss.NewStyle().Width(max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)-2)).Render("")
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, left, gap, right))
}

func (m chatModel) inputView() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(max(1, m.input.Width+2)).
		Render(m.input.View())
}

func (m *chatModel) updateViewportContent(content string) {
	oldYOffset := m.viewport.YOffset
	m.viewport.SetContent(content)
	if m.followTail {
		m.viewport.GotoBottom()
		return
	}
	m.viewport.SetYOffset(oldYOffset)
}

func streamTick() tea.Cmd {
	return tea.Tick(45*time.Millisecond, func(time.Time) tea.Msg { return streamTickMsg{} })
}

// startStreaming 让第 idx 条回答以逐段出现的方式展示。
func (m *chatModel) startStreaming(idx int) {
	m.streaming = false
	m.streamIdx = -1
	full := m.entries[idx].content
	if strings.TrimSpace(full) == "" {
		return
	}
	m.streaming = true
	m.streamIdx = idx
	m.streamFull = full
	m.streamPos = min(len(full), 32)
	m.overrideContent[idx] = full[:m.streamPos]
}

func (m *chatModel) resetMarkdownRenderer() {
	if m.width <= 0 {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.bubbleMaxContentWidth()),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m chatModel) renderChat() string {
	var b strings.Builder
	for i, e := range m.entries {
		content := e.content
		if override, ok := m.overrideContent[i]; ok && m.streaming && m.streamIdx == i {
			content = override
		}
		content = strings.TrimRight(content, "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		b.WriteString(m.renderEntry(e.role, content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m chatModel) renderEntry(r role, content string) string {
	switch r {
	case roleUser:
		return m.renderUser(content)
	case roleAgent:
		return m.renderAgent(content)
	default:
		return m.renderNotice(content)
	}
}

func (m chatModel) bubbleMaxContentWidth() int {
	if m.width <= 0 {
		return 72
	}
	return max(20, m.width-8)
}

func (m chatModel) desiredContentWidth(s string) int {
	return min(m.bubbleMaxContentWidth(), max(10, maxLineWidth(s)))
}

func (m chatModel) wrapToWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func maxLineWidth(s string) int {
	s = strings.TrimRight(s, "\n")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	maxW := 0
	for _, line := range strings.Split(s, "\n") {
		if w := lipgloss.Width(strings.TrimRight(line, " ")); w > maxW {
			maxW = w
		}
	}
	return maxW
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderAgent(content string) string {
	md := m.renderMarkdown(content)
	md = m.wrapToWidth(md, m.desiredContentWidth(md))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(md)
}

func (m chatModel) renderUser(content string) string {
	content = m.wrapToWidth(content, m.desiredContentWidth(content))
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(content)
	return lipgloss.NewStyle().Width(max(1, m.width)).Align(lipgloss.Right).Render(bubble)
}

func (m chatModel) renderNotice(content string) string {
	body := m.renderMarkdown(content)
	body = m.wrapToWidth(body, m.desiredContentWidth(body))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Foreground(lipgloss.Color("245")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render("INFO\n" + body)
}
