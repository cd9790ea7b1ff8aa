package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/dataset"
)

type fakeBackend struct {
	ds         *dataset.Dataset
	loadErr    error
	queries    []string
	autoRuns   int
	resets     int
	autoResult *agent.AutonomousResult
}

func (f *fakeBackend) Load(_ context.Context, path string) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	ds, err := dataset.New(path, []string{"a"}, [][]string{{"1"}})
	if err != nil {
		return "", err
	}
	f.ds = ds
	return "✅ loaded " + path, nil
}

func (f *fakeBackend) Dataset() *dataset.Dataset { return f.ds }

func (f *fakeBackend) QueryTranscript(_ context.Context, text string, transcript []agent.Exchange) ([]agent.Exchange, error) {
	f.queries = append(f.queries, text)
	return append(transcript, agent.Exchange{Prompt: text, Reply: "echo: " + text}), nil
}

func (f *fakeBackend) Autonomous(context.Context) (*agent.AutonomousResult, error) {
	f.autoRuns++
	if f.autoResult != nil {
		return f.autoResult, nil
	}
	return &agent.AutonomousResult{Final: agent.MsgNoDatasetAutonomous, Outcome: agent.OutcomeNoDataset}, nil
}

func (f *fakeBackend) ResetMemory() string        { f.resets++; return "reset" }
func (f *fakeBackend) HistorySummary() string     { return "history" }
func (f *fakeBackend) ConclusionsSummary() string { return "conclusions" }
func (f *fakeBackend) DatasetStatus() string      { return "status" }
func (f *fakeBackend) DetailedInfo() string       { return "info" }

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}

	assert.Equal(t, CommandResult{}, HandleCommand(ctx, b, "what is the mean?", ChatOptions{}))
	assert.True(t, HandleCommand(ctx, b, " QUIT ", ChatOptions{}).Exit)
	assert.Equal(t, "history", HandleCommand(ctx, b, "/history", ChatOptions{}).Text)
	assert.Equal(t, "conclusions", HandleCommand(ctx, b, "/conclusions", ChatOptions{}).Text)
	assert.Equal(t, "info", HandleCommand(ctx, b, "/info", ChatOptions{}).Text)
	assert.Equal(t, "status", HandleCommand(ctx, b, "/status", ChatOptions{}).Text)
	assert.Equal(t, "reset", HandleCommand(ctx, b, "/reset", ChatOptions{}).Text)
	assert.Equal(t, 1, b.resets)
	assert.Equal(t, HelpText, HandleCommand(ctx, b, "/help", ChatOptions{}).Text)
	assert.Contains(t, HandleCommand(ctx, b, "/nope", ChatOptions{}).Text, "Unknown command /nope")
	assert.Equal(t, "❌ Usage: /load <path>", HandleCommand(ctx, b, "/load", ChatOptions{}).Text)
}

func TestLoadAndAnalyze(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{autoResult: &agent.AutonomousResult{
		Column: "a",
		Reason: "numeric column with the highest variance",
		Exchanges: []agent.Exchange{
			{Prompt: agent.AutonomousLabel, Reply: "found things"},
			{Reply: agent.MsgAutonomousDone},
		},
	}}

	text := HandleCommand(ctx, b, "/load data.csv", ChatOptions{SkipAutonomous: true}).Text
	assert.Equal(t, "✅ loaded data.csv", text)
	assert.Equal(t, 0, b.autoRuns)

	text = HandleCommand(ctx, b, "/load data.csv", ChatOptions{}).Text
	assert.Equal(t, 1, b.autoRuns)
	assert.Contains(t, text, "Autonomous analysis started")
	assert.Contains(t, text, "_First chart: `a` (numeric column with the highest variance)_")
	assert.Contains(t, text, agent.AutonomousLabel+"\n\nfound things")
	assert.True(t, strings.HasSuffix(text, agent.MsgAutonomousDone))

	b.loadErr = errors.New("no such file")
	text = HandleCommand(ctx, b, "/load missing.csv", ChatOptions{}).Text
	assert.Equal(t, "❌ Failed to load CSV: no such file", text)

	b.loadErr = agent.ErrBusy
	assert.Equal(t, agent.MsgBusy, HandleCommand(ctx, b, "/load x.csv", ChatOptions{}).Text)
}

func TestFormatAutonomousWithoutExchanges(t *testing.T) {
	assert.Equal(t, agent.MsgNoColumns, FormatAutonomous(&agent.AutonomousResult{Final: agent.MsgNoColumns}))
	assert.Equal(t, "", FormatAutonomous(nil))
}

func TestConsoleChat(t *testing.T) {
	b := &fakeBackend{}
	in := strings.NewReader("/history\n\nhello\nsecond question\nexit\n")
	var out bytes.Buffer

	ui := &ConsoleChatUI{In: in, Out: &out}
	require.NoError(t, ui.Run(context.Background(), b, ChatOptions{}))

	assert.Equal(t, []string{"hello", "second question"}, b.queries)
	assert.Equal(t, 0, b.autoRuns)
	got := out.String()
	assert.Contains(t, got, "You: history\n")
	assert.Contains(t, got, "Agent: echo: hello\n")
	assert.Contains(t, got, "Agent: echo: second question\n")
	assert.True(t, strings.HasSuffix(got, "Bye.\n"))
}

func TestConsoleChatRunsAutonomousOnStart(t *testing.T) {
	b := &fakeBackend{}
	_, err := b.Load(context.Background(), "x.csv")
	require.NoError(t, err)

	var out bytes.Buffer
	ui := &ConsoleChatUI{In: strings.NewReader("last line without newline"), Out: &out}
	require.NoError(t, ui.Run(context.Background(), b, ChatOptions{}))

	assert.Equal(t, 1, b.autoRuns)
	assert.Equal(t, []string{"last line without newline"}, b.queries)
}

func TestConsoleChatRequiresIO(t *testing.T) {
	assert.Error(t, (&ConsoleChatUI{Out: &bytes.Buffer{}}).Run(context.Background(), &fakeBackend{}, ChatOptions{}))
	assert.Error(t, (&ConsoleChatUI{In: strings.NewReader("")}).Run(context.Background(), &fakeBackend{}, ChatOptions{}))
}
