package config

import (
	"fmt"
	"time"
)

// BaseConfig is the unified connector configuration.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type is the registry key of the connector (e.g., "notion", "json")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Advanced      AdvancedConfig      `yaml:"advanced" json:"advanced"`
}

// PerformanceConfig controls batching and buffering.
type PerformanceConfig struct {
	// BatchSize is the number of records handed to a destination per write
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize is the capacity of the record channel between source and pipeline
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// FlushInterval forces a partial batch out when records arrive slowly
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for individual HTTP calls
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for TCP keep-alives
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig holds retry and rate limit settings.
type ReliabilityConfig struct {
	// RetryAttempts is the total number of attempts per request, first try included
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the backoff factor for transient failures
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateLimitBurst is the token bucket size, defaults to RateLimitPerSec
	RateLimitBurst int `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	// AuthType specifies authentication method (bearer)
	AuthType string `yaml:"auth_type" json:"auth_type"`
	// Credentials stores connector settings and secrets (use ${VAR} references)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// AdvancedConfig contains optional output features.
type AdvancedConfig struct {
	EnableCompression bool `yaml:"enable_compression" json:"enable_compression"`
	// CompressionAlgorithm selects compression type (gzip, zstd)
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	// CompressionLevel sets compression ratio vs speed (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// NewBaseConfig creates a BaseConfig with defaults tuned for the Notion API:
// six attempts with an 8s exponential factor and three requests per second.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:     500,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Request:    60 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   6,
			RetryDelay:      8 * time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   10 * time.Minute,
			RateLimitPerSec: 3,
		},
		Security: SecurityConfig{
			AuthType:    "bearer",
			Credentials: make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 1.0,
		},
		Advanced: AdvancedConfig{
			CompressionAlgorithm: "gzip",
			CompressionLevel:     6,
		},
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if bc.Performance.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if bc.Reliability.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if bc.Reliability.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be at least 1")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	if bc.Advanced.EnableCompression {
		switch bc.Advanced.CompressionAlgorithm {
		case "gzip", "zstd":
		default:
			return fmt.Errorf("unsupported compression_algorithm %q", bc.Advanced.CompressionAlgorithm)
		}
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// Burst returns the configured burst, falling back to the per second rate.
func (r *ReliabilityConfig) Burst() int {
	if r.RateLimitBurst > 0 {
		return r.RateLimitBurst
	}
	return r.RateLimitPerSec
}

// Credential returns a credential value or def when unset.
func (s *SecurityConfig) Credential(key, def string) string {
	if v, ok := s.Credentials[key]; ok && v != "" {
		return v
	}
	return def
}

// SetCredential sets a credential, allocating the map when needed.
func (s *SecurityConfig) SetCredential(key, value string) {
	if s.Credentials == nil {
		s.Credentials = make(map[string]string)
	}
	s.Credentials[key] = value
}

// IsCompressionEnabled returns true if compression should be used
func (a *AdvancedConfig) IsCompressionEnabled() bool {
	return a.EnableCompression && a.CompressionAlgorithm != ""
}
