package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides read by ApplyEnv.
const EnvPrefix = "NOTION_SYNC"

// Sync modes.
const (
	ModeIncremental = "incremental"
	ModeFullRefresh = "full_refresh"
)

// SyncConfig is the document read by notion-sync: one source, one
// destination and where per-stream state is persisted.
type SyncConfig struct {
	Source      BaseConfig `yaml:"source" json:"source"`
	Destination BaseConfig `yaml:"destination" json:"destination"`
	// StatePath is the JSON file holding per-stream cursors
	StatePath string `yaml:"state_path" json:"state_path"`
	// Mode is incremental or full_refresh
	Mode string `yaml:"mode" json:"mode"`
	// Streams restricts the sync to a subset of the source streams
	Streams []string `yaml:"streams" json:"streams"`
}

// NewSyncConfig returns a SyncConfig with a notion source and a JSON Lines
// destination on stdout.
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		Source:      *NewBaseConfig("notion", "notion"),
		Destination: *NewBaseConfig("json", "json"),
		StatePath:   "state.json",
		Mode:        ModeIncremental,
	}
}

// Validate validates both connector sections and the sync mode.
func (sc *SyncConfig) Validate() error {
	if err := sc.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := sc.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	switch sc.Mode {
	case ModeIncremental, ModeFullRefresh:
	default:
		return fmt.Errorf("unsupported mode %q", sc.Mode)
	}
	return nil
}

// Load reads a YAML file into cfg after substituting ${VAR} references
// with environment values. Fields absent from the file keep the values
// already present in cfg.
func Load(filePath string, cfg interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // path comes from the CLI flag
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// LoadSync builds defaults, overlays the file at filePath (when non-empty)
// and then the environment, and validates the result.
func LoadSync(filePath string) (*SyncConfig, error) {
	cfg := NewSyncConfig()
	if filePath != "" {
		if err := Load(filePath, cfg); err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envBinding maps a viper key to the environment variables that set it.
type envBinding struct {
	key   string
	envs  []string
	apply func(cfg *SyncConfig, value string)
}

var envBindings = []envBinding{
	{"token", []string{"NOTION_TOKEN"}, func(c *SyncConfig, v string) { c.Source.Security.SetCredential("token", v) }},
	{"start_date", nil, func(c *SyncConfig, v string) { c.Source.Security.SetCredential("start_date", v) }},
	{"base_url", nil, func(c *SyncConfig, v string) { c.Source.Security.SetCredential("base_url", v) }},
	{"output_path", nil, func(c *SyncConfig, v string) { c.Destination.Security.SetCredential("path", v) }},
	{"state_path", nil, func(c *SyncConfig, v string) { c.StatePath = v }},
	{"mode", nil, func(c *SyncConfig, v string) { c.Mode = v }},
	{"log_level", nil, func(c *SyncConfig, v string) { c.Source.Observability.LogLevel = v }},
}

// ApplyEnv overlays NOTION_SYNC_* variables (and NOTION_TOKEN) on cfg.
func ApplyEnv(cfg *SyncConfig) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range envBindings {
		args := []string{b.key, EnvPrefix + "_" + strings.ToUpper(b.key)}
		args = append(args, b.envs...)
		_ = v.BindEnv(args...)
		if value := v.GetString(b.key); value != "" {
			b.apply(cfg, value)
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		out.WriteString(content[:start])
		out.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}
