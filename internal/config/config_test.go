package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"ARK_API_KEY", "ARK_MODEL_ID", "ARK_BASE_URL",
		"EDAGENT_LLM_PROVIDER", "EDAGENT_LLM_API_KEY", "EDAGENT_LLM_MODEL_ID", "EDAGENT_LLM_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "dummy-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "dummy-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.ModelID)
	assert.Equal(t, 0, cfg.LLM.Retry.Attempts)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, 5, cfg.Agent.RecentAnalyses)
	assert.Equal(t, DefaultConclusionKeywords, cfg.Agent.ConclusionKeywords)
	assert.False(t, cfg.Agent.EnableCustomCode)
	assert.Equal(t, "plots", cfg.Agent.PlotsDir)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "edagent.db", cfg.Storage.Path)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearProviderEnv(t)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
log_level: "debug"
llm:
  provider: "ark"
  api_key: "file-key"
  model_id: "file-model"
  retry:
    attempts: 2
    backoff: "250ms"
agent:
  max_iterations: 4
  enable_custom_code: true
  conclusion_keywords: ["conclusions", "key findings"]
storage:
  path: "test.db"
  busy_timeout: "10s"
`)
	require.NoError(t, os.WriteFile(configFile, content, 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ark", cfg.LLM.Provider)
	assert.Equal(t, "file-model", cfg.LLM.ModelID)
	assert.Equal(t, "https://ark.cn-beijing.volces.com/api/v3", cfg.LLM.BaseURL)
	assert.Equal(t, 2, cfg.LLM.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.Retry.Backoff)
	assert.Equal(t, 4, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Agent.EnableCustomCode)
	assert.Equal(t, []string{"conclusions", "key findings"}, cfg.Agent.ConclusionKeywords)
	assert.Equal(t, "test.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Storage.BusyTimeout)

	// 未覆盖的字段保持默认值
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, DefaultConfig().Agent.Language, cfg.Agent.Language)
}

func TestLoad_EnvOverride(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("EDAGENT_LOG_LEVEL", "warn")
	t.Setenv("EDAGENT_STORAGE_PATH", "env.db")
	t.Setenv("EDAGENT_AGENT_MAX_ITERATIONS", "3")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("EDAGENT_LLM_MODEL_ID", "gpt-4o-mini")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "env.db", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ModelID)
}

func TestLoad_ArkEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("EDAGENT_LLM_PROVIDER", "ark")
	t.Setenv("ARK_API_KEY", "ark-key")
	t.Setenv("ARK_MODEL_ID", "doubao-pro")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ark", cfg.LLM.Provider)
	assert.Equal(t, "ark-key", cfg.LLM.APIKey)
	assert.Equal(t, "doubao-pro", cfg.LLM.ModelID)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "edagent.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)

	// 修改返回值不能影响包级默认关键词
	cfg.Agent.ConclusionKeywords[0] = "changed"
	assert.Equal(t, "conclusões", DefaultConclusionKeywords[0])
}

func TestLoad_ValidateAPIKey(t *testing.T) {
	clearProviderEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key is required")

	// Read 不校验，inspect 等命令不需要密钥
	cfg, err := Read("")
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.ModelID)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.LLM.ModelID = "m"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.LLM.Provider = "gemini"
	assert.ErrorContains(t, bad.Validate(), "llm.provider")

	bad = cfg
	bad.Agent.MaxIterations = 0
	assert.ErrorContains(t, bad.Validate(), "agent.max_iterations")

	bad = cfg
	bad.LLM.Retry.Attempts = -1
	assert.ErrorContains(t, bad.Validate(), "llm.retry.attempts")
}
