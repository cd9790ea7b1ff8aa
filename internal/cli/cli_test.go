package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,city\n20,Recife\n35,Natal\n50,Recife\n"), 0o644))

	got := execute(t, "inspect", path)
	assert.Contains(t, got, "3 rows × 2 columns")
	assert.Contains(t, got, "#### 🔢 **age**")
	assert.Contains(t, got, "Autonomous analysis would start with `age`")
}

func TestToolsCommand(t *testing.T) {
	got := execute(t, "tools")
	assert.Contains(t, got, "get_data_summary")
	assert.Contains(t, got, "compare_groups")
	assert.Contains(t, got, "column, group_by")
	assert.NotContains(t, got, "execute_custom_code")
}

func TestToolsRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,city\n20,Recife\n35,Natal\n50,Recife\n"), 0o644))
	t.Setenv("EDAGENT_STORAGE_PATH", filepath.Join(dir, "edagent.db"))
	t.Setenv("EDAGENT_AGENT_PLOTS_DIR", filepath.Join(dir, "plots"))

	got := execute(t, "tools", "run", "detect_outliers", path, "--args", `{"column":"age"}`)
	assert.Contains(t, got, `"status": "success"`)
	assert.Contains(t, got, `"total_outliers": 0`)

	got = execute(t, "storage", "info")
	assert.Contains(t, got, "AuditRecords")
	assert.Contains(t, got, "detect_outliers")
}

func TestParamsSummary(t *testing.T) {
	assert.Equal(t, "-", paramsSummary(nil))
	assert.Equal(t, "columns?, x", paramsSummary(map[string]*schema.ParameterInfo{
		"x":       {Type: schema.String, Desc: "x", Required: true},
		"columns": {Type: schema.Array, Desc: "c"},
	}))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, "abcdefgh", shortID("abcdefghijk"))
	assert.Equal(t, "-", shortID(""))
	assert.Equal(t, "a b...", oneLine("a\nbcd", 3))
}
