package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wwwzy/EDAgent/internal/storage"
)

// RetryConfig 控制模型调用失败后的重试。Attempts 为 0 时只调用一次。
type RetryConfig struct {
	Attempts   int           `mapstructure:"attempts"`
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // ark | openai
	APIKey   string        `mapstructure:"api_key"`
	ModelID  string        `mapstructure:"model_id"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retry    RetryConfig   `mapstructure:"retry"`
}

// AgentConfig 控制编排循环与分析工具。
type AgentConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations"`
	HistoryWindow      int           `mapstructure:"history_window"`
	RecentAnalyses     int           `mapstructure:"recent_analyses"`
	Language           string        `mapstructure:"language"`
	ConclusionKeywords []string      `mapstructure:"conclusion_keywords"`
	EnableCustomCode   bool          `mapstructure:"enable_custom_code"`
	CustomCodeTimeout  time.Duration `mapstructure:"custom_code_timeout"`
	PlotsDir           string        `mapstructure:"plots_dir"`
}

type StorageConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	storage.Config `mapstructure:",squash"`
}

type Config struct {
	Storage  StorageConfig `mapstructure:"storage"`
	LLM      LLMConfig     `mapstructure:"llm"`
	Agent    AgentConfig   `mapstructure:"agent"`
	LogLevel string        `mapstructure:"log_level"`
}

// DefaultConclusionKeywords 出现在最终回答中即视为一条结论（大小写不敏感）。
var DefaultConclusionKeywords = []string{"conclusões", "insights", "resumo dos achados"}

// Load 读取并校验配置。
func Load(cfgFile string) (*Config, error) {
	cfg, err := Read(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read 读取配置但不校验，供不需要模型的命令（inspect、storage）使用。
func Read(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.edagent")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("EDAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal 只会解码 viper 已知的 key，所以所有 key 都要有默认值。
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}
	bindProviderEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ark", "openai":
	default:
		return fmt.Errorf("llm.provider must be one of ark, openai (got %q)", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set %s_API_KEY env var)", strings.ToUpper(c.LLM.Provider))
	}
	if c.LLM.ModelID == "" {
		return fmt.Errorf("llm.model_id is required")
	}
	if c.LLM.Retry.Attempts < 0 {
		return fmt.Errorf("llm.retry.attempts must be >= 0")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be >= 1")
	}
	if c.Agent.HistoryWindow < 1 {
		return fmt.Errorf("agent.history_window must be >= 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// -------------------------------------------------------------------------
	// Global
	// -------------------------------------------------------------------------
	v.SetDefault("log_level", d.LogLevel)

	// -------------------------------------------------------------------------
	// Storage (审计记录)
	// -------------------------------------------------------------------------
	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.in_memory", d.Storage.InMemory)
	v.SetDefault("storage.enable_wal", d.Storage.EnableWAL)
	v.SetDefault("storage.busy_timeout", d.Storage.BusyTimeout)

	// -------------------------------------------------------------------------
	// Agent
	// -------------------------------------------------------------------------
	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.history_window", d.Agent.HistoryWindow)
	v.SetDefault("agent.recent_analyses", d.Agent.RecentAnalyses)
	v.SetDefault("agent.language", d.Agent.Language)
	v.SetDefault("agent.conclusion_keywords", d.Agent.ConclusionKeywords)
	v.SetDefault("agent.enable_custom_code", d.Agent.EnableCustomCode)
	v.SetDefault("agent.custom_code_timeout", d.Agent.CustomCodeTimeout)
	v.SetDefault("agent.plots_dir", d.Agent.PlotsDir)

	// -------------------------------------------------------------------------
	// LLM
	// -------------------------------------------------------------------------
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model_id", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.retry.attempts", d.LLM.Retry.Attempts)
	v.SetDefault("llm.retry.backoff", d.LLM.Retry.Backoff)
	v.SetDefault("llm.retry.max_backoff", d.LLM.Retry.MaxBackoff)
}

// bindProviderEnv 在读取配置文件之后调用，此时才知道最终的 provider。
func bindProviderEnv(v *viper.Viper) {
	// 供应商自己的环境变量，EDAGENT_LLM_* 仍然优先
	provider := strings.ToLower(v.GetString("llm.provider"))
	switch provider {
	case "ark":
		v.SetDefault("llm.base_url", "https://ark.cn-beijing.volces.com/api/v3")
		_ = v.BindEnv("llm.api_key", "EDAGENT_LLM_API_KEY", "ARK_API_KEY")
		_ = v.BindEnv("llm.model_id", "EDAGENT_LLM_MODEL_ID", "ARK_MODEL_ID")
		_ = v.BindEnv("llm.base_url", "EDAGENT_LLM_BASE_URL", "ARK_BASE_URL")
	default:
		v.SetDefault("llm.model_id", "gpt-4o")
		_ = v.BindEnv("llm.api_key", "EDAGENT_LLM_API_KEY", "OPENAI_API_KEY")
		_ = v.BindEnv("llm.model_id", "EDAGENT_LLM_MODEL_ID", "OPENAI_MODEL")
		_ = v.BindEnv("llm.base_url", "EDAGENT_LLM_BASE_URL", "OPENAI_BASE_URL")
	}
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Enabled: true,
			Config: storage.Config{
				Path:        "edagent.db",
				BusyTimeout: 5 * time.Second,
			},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  2 * time.Minute,
			Retry: RetryConfig{
				Backoff:    time.Second,
				MaxBackoff: 10 * time.Second,
			},
		},
		Agent: AgentConfig{
			MaxIterations:      10,
			HistoryWindow:      10,
			RecentAnalyses:     5,
			Language:           "Portuguese (Brazil)",
			ConclusionKeywords: append([]string(nil), DefaultConclusionKeywords...),
			CustomCodeTimeout:  5 * time.Second,
			PlotsDir:           "plots",
		},
	}
}
