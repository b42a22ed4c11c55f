package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultUserPath is the per-user override file layered over the project config.
const DefaultUserPath = "~/.lowkeyllama/config.yaml"

// Config holds runtime parameters for the service.
type Config struct {
	LogLevel     string        `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string        `json:"log_format" yaml:"log_format" toml:"log_format"`
	DefaultModel string        `json:"default_model" yaml:"default_model" toml:"default_model"`
	API          APIConfig     `json:"api" yaml:"api" toml:"api"`
	Backend      BackendConfig `json:"backend" yaml:"backend" toml:"backend"`
	Stream       StreamConfig  `json:"stream" yaml:"stream" toml:"stream"`
	Privacy      PrivacyConfig `json:"privacy" yaml:"privacy" toml:"privacy"`
	Models       Profiles      `json:"models" yaml:"models" toml:"models"`
}

// APIConfig configures the HTTP facade.
type APIConfig struct {
	Host                  string     `json:"host" yaml:"host" toml:"host"`
	Port                  int        `json:"port" yaml:"port" toml:"port"`
	RequestTimeoutSeconds int        `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	MaxBodyBytes          int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	SkipModelCheck        bool       `json:"skip_model_check" yaml:"skip_model_check" toml:"skip_model_check"`
	CORS                  CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig is opt-in CORS for the chat UI origin.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// BackendConfig describes where the Ollama server lives and whether we launch it.
type BackendConfig struct {
	Host string `json:"host" yaml:"host" toml:"host"`
	Port int    `json:"port" yaml:"port" toml:"port"`
	// PortRangeEnd bounds the port fallback when Port is taken by something else.
	PortRangeEnd int `json:"port_range_end" yaml:"port_range_end" toml:"port_range_end"`
	Manage       bool   `json:"manage" yaml:"manage" toml:"manage"`
	Binary       string `json:"binary" yaml:"binary" toml:"binary"`
	// Mode selects the streaming endpoint: "generate" (/api/generate) or "chat" (/api/chat).
	Mode                  string            `json:"mode" yaml:"mode" toml:"mode"`
	ConnectTimeoutSeconds int               `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	StartTimeoutSeconds   int               `json:"start_timeout_seconds" yaml:"start_timeout_seconds" toml:"start_timeout_seconds"`
	ConnectRetries        int               `json:"connect_retries" yaml:"connect_retries" toml:"connect_retries"`
	RetryDelaySeconds     int               `json:"retry_delay_seconds" yaml:"retry_delay_seconds" toml:"retry_delay_seconds"`
	Env                   map[string]string `json:"env" yaml:"env" toml:"env"`
}

// StreamConfig tunes response reassembly.
type StreamConfig struct {
	// StrictFallback disables regex extraction from broken JSON lines.
	StrictFallback bool `json:"strict_fallback" yaml:"strict_fallback" toml:"strict_fallback"`
}

// PrivacyConfig restricts who may call the API. Empty means no restriction
// beyond the listen address.
type PrivacyConfig struct {
	AllowedIPs []string `json:"allowed_ips" yaml:"allowed_ips" toml:"allowed_ips"`
}

// ModelProfile holds generation defaults for one model. Nil pointers and zero
// counts mean "let the backend decide".
// Ranges are not checked here; the backend rejects what it cannot use.
type ModelProfile struct {
	Temperature    *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP           *float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK           *int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	RepeatPenalty  *float64 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	Seed           *int     `json:"seed" yaml:"seed" toml:"seed"`
	Stop           []string `json:"stop" yaml:"stop" toml:"stop"`
	MaxTokens      int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	ContextWindow  int      `json:"context_window" yaml:"context_window" toml:"context_window"`
	SystemPrompt   string   `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	PromptTemplate string   `json:"prompt_template" yaml:"prompt_template" toml:"prompt_template"`
}

func float64Ptr(v float64) *float64 { return &v }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "auto",
		DefaultModel: "mistral",
		API: APIConfig{
			Host:                  "127.0.0.1",
			Port:                  8000,
			RequestTimeoutSeconds: 120,
			MaxBodyBytes:          1 << 20,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"http://localhost:8501", "http://127.0.0.1:8501"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Log-Level"},
			},
		},
		Backend: BackendConfig{
			Host:                  "127.0.0.1",
			Port:                  11434,
			PortRangeEnd:          11444,
			Manage:                true,
			Mode:                  "generate",
			ConnectTimeoutSeconds: 5,
			StartTimeoutSeconds:   30,
			ConnectRetries:        5,
			RetryDelaySeconds:     2,
			Env:                   map[string]string{"OLLAMA_NO_TELEMETRY": "true"},
		},
		Models: Profiles{
			"mistral": {
				Temperature:    float64Ptr(0.7),
				MaxTokens:      500,
				ContextWindow:  8192,
				PromptTemplate: "[INST] {{prompt}} [/INST]",
				Stop:           []string{"[INST]"},
			},
			"codellama": {Temperature: float64Ptr(0.7), MaxTokens: 500, ContextWindow: 16384},
			"llama2":    {Temperature: float64Ptr(0.7), MaxTokens: 500, ContextWindow: 4096},
		},
	}
}

// Profiles maps model names to their generation defaults.
type Profiles map[string]ModelProfile

// Lookup returns the profile for model. A tagged name such as "mistral:latest"
// falls back to the profile of its base name.
func (p Profiles) Lookup(model string) (ModelProfile, bool) {
	if mp, ok := p[model]; ok {
		return mp, true
	}
	if i := strings.IndexByte(model, ':'); i > 0 {
		if mp, ok := p[model[:i]]; ok {
			return mp, true
		}
	}
	return ModelProfile{}, false
}

// Profile is shorthand for c.Models.Lookup(model).
func (c Config) Profile(model string) (ModelProfile, bool) { return c.Models.Lookup(model) }

// APIAddr is the listen address of the HTTP facade.
func (c Config) APIAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// BackendURL is the base URL of the Ollama server.
func (c Config) BackendURL() string {
	return "http://" + net.JoinHostPort(c.Backend.Host, strconv.Itoa(c.Backend.Port))
}

// RequestTimeout is the overall deadline for one generation request (0 disables).
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "critical": true, "fatal": true, "disabled": true,
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug|info|warning|error|critical", c.LogLevel))
	}
	switch c.LogFormat {
	case "auto", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be auto, json or console", c.LogFormat))
	}
	if err := checkPort("api.port", c.API.Port); err != nil {
		errs = append(errs, err)
	}
	if err := checkPort("backend.port", c.Backend.Port); err != nil {
		errs = append(errs, err)
	}
	if end := c.Backend.PortRangeEnd; end != 0 && (end < c.Backend.Port || end > 65535) {
		errs = append(errs, fmt.Errorf("backend.port_range_end %d must be between backend.port and 65535", end))
	}
	switch c.Backend.Mode {
	case "generate", "chat":
	default:
		errs = append(errs, fmt.Errorf("backend.mode %q must be generate or chat", c.Backend.Mode))
	}
	if c.API.RequestTimeoutSeconds < 0 {
		errs = append(errs, errors.New("api.request_timeout_seconds must not be negative"))
	}
	if c.Backend.ConnectRetries < 0 || c.Backend.RetryDelaySeconds < 0 {
		errs = append(errs, errors.New("backend.connect_retries and backend.retry_delay_seconds must not be negative"))
	}
	return errors.Join(errs...)
}

func checkPort(name string, p int) error {
	if p <= 0 || p >= 65536 {
		return fmt.Errorf("%s %d out of range 1-65535", name, p)
	}
	return nil
}
