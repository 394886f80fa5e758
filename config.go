package archchan

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	defaults "github.com/berkucuk/archchan/default"
)

const defaultTemperature = 0.7

// Config represents the daemon configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Generation GenerationConfig `toml:"generation"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Weather    WeatherConfig    `toml:"weather"`
	Sandbox    SandboxConfig    `toml:"sandbox"`
	Audit      AuditConfig      `toml:"audit"`
	History    HistoryConfig    `toml:"history"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	StatusAddr      string `toml:"status_addr"`
	MaxFrameBytes   int    `toml:"max_frame_bytes"`
	DefaultLanguage string `toml:"default_language"`
}

// GenerationConfig holds settings for the text-completion API.
type GenerationConfig struct {
	BaseURL         string   `toml:"base_url"`
	APIKey          string   `toml:"api_key"`
	APIType         string   `toml:"api_type"`
	Model           string   `toml:"model"`
	MaxTokens       int      `toml:"max_tokens"`
	Temperature     *float64 `toml:"temperature"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	MaxHistoryTurns int      `toml:"max_history_turns"`
}

// EmbeddingConfig holds settings for the embedding API used by the history index.
type EmbeddingConfig struct {
	BaseURL            string `toml:"base_url"`
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	TTLMinutes         int    `toml:"ttl_minutes"`
	MaxHistoryCommands int    `toml:"max_history_commands"`
}

// WeatherConfig holds settings for the weather service.
type WeatherConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// SandboxConfig controls execution of model-proposed shell commands.
type SandboxConfig struct {
	Enabled        *bool  `toml:"enabled"`
	Shell          string `toml:"shell"`
	WorkDir        string `toml:"work_dir"`
	MaxOutputBytes int    `toml:"max_output_bytes"`
}

// AuditConfig controls the command audit trail. An empty DBPath disables it.
type AuditConfig struct {
	DBPath string `toml:"db_path"`
}

// HistoryConfig controls whether the host's shell history is read into
// command prompts. It is off unless enabled explicitly.
type HistoryConfig struct {
	Enabled *bool `toml:"enabled"`
}

// ConfigDir returns the config directory path.
// Resolution order: $ARCHCHAN_CONFIG_DIR > $XDG_CONFIG_HOME/archchan > ~/.config/archchan
func ConfigDir() string {
	if dir := os.Getenv("ARCHCHAN_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "archchan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "archchan-config")
	}
	return filepath.Join(home, ".config", "archchan")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptDir returns the directory holding user prompt overrides.
func PromptDir() string {
	return filepath.Join(ConfigDir(), "prompts")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("archchan: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from ConfigPath or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling missing fields from defaults.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	applyDefaults(&cfg, DefaultConfig())
	return &cfg, nil
}

func applyDefaults(cfg, d *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.MaxFrameBytes == 0 {
		cfg.Server.MaxFrameBytes = d.Server.MaxFrameBytes
	}
	if cfg.Server.DefaultLanguage == "" {
		cfg.Server.DefaultLanguage = d.Server.DefaultLanguage
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = d.Generation.BaseURL
	}
	if cfg.Generation.APIType == "" {
		cfg.Generation.APIType = d.Generation.APIType
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = d.Generation.Model
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if cfg.Generation.Temperature == nil {
		cfg.Generation.Temperature = d.Generation.Temperature
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = d.Generation.TimeoutSeconds
	}
	if cfg.Generation.MaxHistoryTurns == 0 {
		cfg.Generation.MaxHistoryTurns = d.Generation.MaxHistoryTurns
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.TTLMinutes == 0 {
		cfg.Embedding.TTLMinutes = d.Embedding.TTLMinutes
	}
	if cfg.Embedding.MaxHistoryCommands == 0 {
		cfg.Embedding.MaxHistoryCommands = d.Embedding.MaxHistoryCommands
	}
	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = d.Weather.BaseURL
	}
	if cfg.Weather.TimeoutSeconds == 0 {
		cfg.Weather.TimeoutSeconds = d.Weather.TimeoutSeconds
	}
	if cfg.Weather.CacheTTLMinutes == 0 {
		cfg.Weather.CacheTTLMinutes = d.Weather.CacheTTLMinutes
	}
	if cfg.Sandbox.Enabled == nil {
		cfg.Sandbox.Enabled = d.Sandbox.Enabled
	}
	if cfg.History.Enabled == nil {
		cfg.History.Enabled = d.History.Enabled
	}
	if cfg.Sandbox.Shell == "" {
		cfg.Sandbox.Shell = d.Sandbox.Shell
	}
	if cfg.Sandbox.MaxOutputBytes == 0 {
		cfg.Sandbox.MaxOutputBytes = d.Sandbox.MaxOutputBytes
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if ResolveGenerationAPIKey(cfg) == "" {
		warnings = append(warnings, "generation API key is not configured; every agent will answer with its fallback text")
	}
	if ResolveWeatherAPIKey(cfg) == "" {
		warnings = append(warnings, "weather API key is not configured; weather requests will fail")
	}
	switch cfg.Generation.APIType {
	case "chat_completions", "responses":
	default:
		warnings = append(warnings, "unknown generation api_type "+strconv.Quote(cfg.Generation.APIType)+"; using responses")
	}
	if SandboxEnabled(cfg) && cfg.Audit.DBPath == "" {
		warnings = append(warnings, "command execution is enabled without an audit database")
	}
	return warnings
}

// ListenAddr returns the TCP address the daemon listens on.
// Priority: $ARCHCHAN_HOST / $ARCHCHAN_PORT env > config values.
func ListenAddr(cfg *Config) string {
	host := cfg.Server.Host
	if h := os.Getenv("ARCHCHAN_HOST"); h != "" {
		host = h
	}
	port := strconv.Itoa(cfg.Server.Port)
	if p := os.Getenv("ARCHCHAN_PORT"); p != "" {
		port = p
	}
	return net.JoinHostPort(host, port)
}

// ResolveGenerationBaseURL returns the generation API base URL.
// Priority: $ARCHCHAN_GENERATION_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	if url := os.Getenv("ARCHCHAN_GENERATION_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.BaseURL
	}
	return ""
}

// ResolveGenerationAPIKey returns the generation API key.
// Priority: $ARCHCHAN_GENERATION_API_KEY env > $GEMINI_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	if key := os.Getenv("ARCHCHAN_GENERATION_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveGenerationModel returns the generation model name.
// Priority: $ARCHCHAN_GENERATION_MODEL env > config value.
func ResolveGenerationModel(cfg *Config) string {
	if model := os.Getenv("ARCHCHAN_GENERATION_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// ResolveWeatherAPIKey returns the weather service key.
// Priority: $WEATHER_API_KEY env > config value.
func ResolveWeatherAPIKey(cfg *Config) string {
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Weather.APIKey
	}
	return ""
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $ARCHCHAN_EMBEDDING_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("ARCHCHAN_EMBEDDING_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $ARCHCHAN_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("ARCHCHAN_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}

// GenerationTemperature returns the sampling temperature. An explicit 0 is kept.
func GenerationTemperature(cfg *Config) float64 {
	if cfg == nil || cfg.Generation.Temperature == nil {
		return defaultTemperature
	}
	return *cfg.Generation.Temperature
}

// SandboxEnabled reports whether model-proposed commands may be executed.
func SandboxEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Sandbox.Enabled == nil {
		return true // default true
	}
	return *cfg.Sandbox.Enabled
}

// HistoryEnabled reports whether shell history may be read into prompts.
func HistoryEnabled(cfg *Config) bool {
	if cfg == nil || cfg.History.Enabled == nil {
		return false
	}
	return *cfg.History.Enabled
}
