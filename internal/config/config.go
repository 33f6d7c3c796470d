package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/opsgate/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Policy      PolicyConfig      `koanf:"policy"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
	Models      ModelsConfig      `koanf:"models"`
	Prompts     PromptsConfig     `koanf:"prompts"`
	Notify      NotifyConfig      `koanf:"notify"`
	Reports     ReportsConfig     `koanf:"reports"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Schedules   []ScheduleConfig  `koanf:"schedules"`
	Daemon      DaemonConfig      `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type PolicyConfig struct {
	Path string `koanf:"path"`
}

type DiagnosticsConfig struct {
	Workdir        string `koanf:"workdir"`
	CommandTimeout string `koanf:"command_timeout"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name           string  `koanf:"name"`
	Provider       string  `koanf:"provider"`
	BaseURL        string  `koanf:"base_url"`
	APIKey         string  `koanf:"api_key"`
	RequestTimeout string  `koanf:"request_timeout"`
	Temperature    float32 `koanf:"temperature"`
}

type PromptsConfig struct {
	Assistant string `koanf:"assistant"`
	Summary   string `koanf:"summary"`
}

type NotifyConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

type ReportsConfig struct {
	Dir string `koanf:"dir"`
}

type SchedulerConfig struct {
	TickInterval    string `koanf:"tick_interval"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// ScheduleConfig describes a goal submitted as a job on a cron schedule.
type ScheduleConfig struct {
	Name            string `koanf:"name"`
	Spec            string `koanf:"spec"`
	Goal            string `koanf:"goal"`
	Environment     string `koanf:"environment"`
	Risk            string `koanf:"risk"`
	SkipDiagnostics bool   `koanf:"skip_diagnostics"`
}

type DaemonConfig struct {
	StateDir               string `koanf:"state_dir"`
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	LockTimeout            string `koanf:"lock_timeout"`
	LockRetry              string `koanf:"lock_retry"`
	StaleLockTTL           string `koanf:"stale_lock_ttl"`
}

const (
	DefaultServerPort                   = 8080
	DefaultServerLogLevel               = "info"
	DefaultServerReadTimeout            = "10s"
	DefaultServerWriteTimeout           = "5m"
	DefaultServerIdleTimeout            = "60s"
	DefaultServerShutdownTimeout        = "5s"
	DefaultPolicyPath                   = "docs/ai-agent-policy.yaml"
	DefaultDiagnosticsCommandTimeout    = "30s"
	DefaultModelDefault                 = "gpt-oss:20b"
	DefaultModelMaxFallbackAttempts     = 2
	DefaultModelRequestTimeout          = "60s"
	DefaultModelTemperature             = 0.2
	DefaultOpenAIBaseURL                = "https://api.openai.com/v1"
	DefaultOllamaBaseURL                = "http://localhost:11434/v1"
	DefaultOllamaAPIKey                 = "ollama"
	DefaultAssistantSystemPrompt        = "You are a pragmatic SRE/coding assistant. Provide concise, evidence-driven next steps and mention rollback considerations when relevant."
	DefaultSummarySystemPrompt          = "You summarize diagnostics for SRE and coding teams with concise action items."
	DefaultSchedulerTickInterval        = "15s"
	DefaultSchedulerShutdownTimeout     = "10s"
	DefaultDaemonShutdownTimeout        = "30s"
	DefaultDaemonStartupShutdownTimeout = "10s"
	DefaultDaemonHealthCheckInterval    = "30s"
	DefaultDaemonLockTimeout            = "5s"
	DefaultDaemonLockRetry              = "100ms"
	DefaultDaemonStaleLockTTL           = "24h"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                  DefaultServerPort,
		"server.log_level":             DefaultServerLogLevel,
		"server.read_timeout":          DefaultServerReadTimeout,
		"server.write_timeout":         DefaultServerWriteTimeout,
		"server.idle_timeout":          DefaultServerIdleTimeout,
		"server.shutdown_timeout":      DefaultServerShutdownTimeout,
		"policy.path":                  DefaultPolicyPath,
		"diagnostics.workdir":          "",
		"diagnostics.command_timeout":  DefaultDiagnosticsCommandTimeout,
		"models.default":               DefaultModelDefault,
		"models.fallback":              "",
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "ollama", BaseURL: DefaultOllamaBaseURL},
		},
		"prompts.assistant":               DefaultAssistantSystemPrompt,
		"prompts.summary":                 DefaultSummarySystemPrompt,
		"reports.dir":                     "",
		"scheduler.tick_interval":         DefaultSchedulerTickInterval,
		"scheduler.shutdown_timeout":      DefaultSchedulerShutdownTimeout,
		"daemon.state_dir":                filepath.Join(os.Getenv("HOME"), ".opsgate"),
		"daemon.shutdown_timeout":         DefaultDaemonShutdownTimeout,
		"daemon.startup_shutdown_timeout": DefaultDaemonStartupShutdownTimeout,
		"daemon.health_check_interval":    DefaultDaemonHealthCheckInterval,
		"daemon.lock_timeout":             DefaultDaemonLockTimeout,
		"daemon.lock_retry":               DefaultDaemonLockRetry,
		"daemon.stale_lock_ttl":           DefaultDaemonStaleLockTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".opsgate", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables: OPSGATE_SERVER_LOG_LEVEL -> server.log_level
	k.Load(env.Provider("OPSGATE_", ".", envKey), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "ollama"
		}
		if m.Temperature == 0 {
			cfg.Models.Registry[i].Temperature = DefaultModelTemperature
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	injectProviderEnv(&cfg)

	return &cfg, nil
}

func envKey(s string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(s, "OPSGATE_"))
	return strings.Replace(trimmed, "_", ".", 1)
}

// Post-Process: Inject standard provider env vars if missing
func injectProviderEnv(cfg *Config) {
	keys := map[string]string{
		"openai":    os.Getenv("OPENAI_API_KEY"),
		"anthropic": os.Getenv("ANTHROPIC_API_KEY"),
		"gemini":    os.Getenv("GEMINI_API_KEY"),
		"ollama":    os.Getenv("OLLAMA_API_KEY"),
	}
	ollamaBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")), "/")

	for i, m := range cfg.Models.Registry {
		if key := keys[m.Provider]; key != "" && m.APIKey == "" {
			cfg.Models.Registry[i].APIKey = key
		}
		if m.Provider == "ollama" && ollamaBaseURL != "" {
			cfg.Models.Registry[i].BaseURL = ollamaBaseURL
		}
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	policyPath, err := pathutil.ExpandAbs(cfg.Policy.Path)
	if err != nil {
		return err
	}
	cfg.Policy.Path = policyPath

	workdir, err := pathutil.ExpandAbs(cfg.Diagnostics.Workdir)
	if err != nil {
		return err
	}
	cfg.Diagnostics.Workdir = workdir

	reportsDir, err := expandConfiguredPath(cfg.Reports.Dir)
	if err != nil {
		return err
	}
	cfg.Reports.Dir = reportsDir

	stateDir, err := expandConfiguredPath(cfg.Daemon.StateDir)
	if err != nil {
		return err
	}
	if stateDir != "" {
		cfg.Daemon.StateDir = stateDir
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
