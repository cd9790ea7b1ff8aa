package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/ui"
)

type stubBackend struct {
	ds      *dataset.Dataset
	queries []string
}

func (s *stubBackend) Load(context.Context, string) (string, error) { return "loaded", nil }
func (s *stubBackend) Dataset() *dataset.Dataset                    { return s.ds }
func (s *stubBackend) QueryTranscript(_ context.Context, text string, tr []agent.Exchange) ([]agent.Exchange, error) {
	s.queries = append(s.queries, text)
	return append(tr, agent.Exchange{Prompt: text, Reply: "answer to " + text}), nil
}
func (s *stubBackend) Autonomous(context.Context) (*agent.AutonomousResult, error) {
	return &agent.AutonomousResult{Final: "auto done"}, nil
}
func (s *stubBackend) ResetMemory() string        { return "reset" }
func (s *stubBackend) HistorySummary() string     { return "history" }
func (s *stubBackend) ConclusionsSummary() string { return "conclusions" }
func (s *stubBackend) DatasetStatus() string      { return "status" }
func (s *stubBackend) DetailedInfo() string       { return "info" }

func TestSubmitRoutesCommandsAndQueries(t *testing.T) {
	b := &stubBackend{}
	m := newChatModel(context.Background(), b, ui.ChatOptions{})
	assert.False(t, m.thinking)

	msg := m.submit("/history")().(backendResultMsg)
	assert.Equal(t, backendResultMsg{text: "history", notice: true}, msg)

	msg = m.submit("quit")().(backendResultMsg)
	assert.True(t, msg.exit)

	msg = m.submit("mean age?")().(backendResultMsg)
	assert.Equal(t, "answer to mean age?", msg.text)
	require.Len(t, msg.transcript, 1)
	assert.Equal(t, []string{"mean age?"}, b.queries)
}

func TestBackendResultAppendsAndStreams(t *testing.T) {
	m := newChatModel(context.Background(), &stubBackend{}, ui.ChatOptions{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(chatModel)

	next, cmd := m.Update(backendResultMsg{text: "a fairly long answer that will be revealed in several steps", transcript: []agent.Exchange{{Prompt: "q", Reply: "a"}}})
	m = next.(chatModel)
	require.NotNil(t, cmd)
	require.Len(t, m.entries, 2)
	assert.Equal(t, roleAgent, m.entries[1].role)
	assert.True(t, m.streaming)
	assert.Len(t, m.transcript, 1)

	for m.streaming {
		next, _ = m.Update(streamTickMsg{})
		m = next.(chatModel)
	}
	assert.Equal(t, m.entries[1].content, m.overrideContent[1])

	next, _ = m.Update(backendResultMsg{text: "history", notice: true})
	m = next.(chatModel)
	assert.Equal(t, roleNotice, m.entries[2].role)
	assert.False(t, m.streaming)
	assert.Contains(t, m.renderChat(), "INFO")
}

func TestAutonomousOnStartWhenDatasetLoaded(t *testing.T) {
	ds, err := dataset.New("x.csv", []string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	m := newChatModel(context.Background(), &stubBackend{ds: ds}, ui.ChatOptions{})
	assert.True(t, m.thinking)

	m = newChatModel(context.Background(), &stubBackend{ds: ds}, ui.ChatOptions{SkipAutonomous: true})
	assert.False(t, m.thinking)
}
