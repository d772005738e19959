package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds the vecmatch API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Explanation ExplanationConfig `yaml:"explanation"`
	Matching    MatchingConfig    `yaml:"matching"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CacheConfig controls the embedding cache kept in the database.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"` // 0 = no expiry
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"` // label used in metrics and logs
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"`
	TimeoutSec int         `yaml:"timeout_sec"`
	Cache      CacheConfig `yaml:"cache"`
	// Instructions override the per-category prefixes, keyed by category name.
	Instructions map[string]string `yaml:"instructions"`
}

// ExplanationConfig holds chat model settings for match explanations.
type ExplanationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// MatchingConfig holds ranking and embedding pipeline settings.
type MatchingConfig struct {
	Weights         map[string]float64 `yaml:"weights"`
	DefaultTopK     int                `yaml:"default_top_k"`
	DefaultMinScore *float64           `yaml:"default_min_score"`
	ChunkSize       int                `yaml:"fetch_chunk_size"`
	FetchParallel   int                `yaml:"fetch_parallel"`
	MaxBatchSize    int                `yaml:"max_batch_size"`
	MaxAttempts     int                `yaml:"max_attempts"`
	BackoffBaseMs   int                `yaml:"backoff_base_ms"`
	BackoffMaxMs    int                `yaml:"backoff_max_ms"`
	// ProviderConcurrency caps in-flight embedding calls across the process.
	ProviderConcurrency int64   `yaml:"provider_concurrency"`
	ProviderRPS         float64 `yaml:"provider_rps"` // 0 = unlimited
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-large"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 3072
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.Explanation.Provider == "" {
		c.Explanation.Provider = c.Embedding.Provider
	}
	if c.Explanation.APIKey == "" {
		c.Explanation.APIKey = c.Embedding.APIKey
	}
	if c.Explanation.BaseURL == "" {
		c.Explanation.BaseURL = c.Embedding.BaseURL
	}
	if c.Explanation.Model == "" {
		c.Explanation.Model = "gpt-4"
	}
	if c.Explanation.TimeoutSec <= 0 {
		c.Explanation.TimeoutSec = 30
	}

	m := &c.Matching
	if len(m.Weights) == 0 {
		m.Weights = make(map[string]float64, len(domain.AllCategories))
		for cat, w := range domain.DefaultWeights().Map() {
			m.Weights[cat.String()] = w
		}
	}
	if m.DefaultTopK <= 0 {
		m.DefaultTopK = 5
	}
	if m.DefaultMinScore == nil {
		v := 0.3
		m.DefaultMinScore = &v
	}
	if m.ChunkSize <= 0 {
		m.ChunkSize = 500
	}
	if m.FetchParallel <= 0 {
		m.FetchParallel = 8
	}
	if m.MaxBatchSize <= 0 {
		m.MaxBatchSize = 100
	}
	if m.MaxAttempts <= 0 {
		m.MaxAttempts = 3
	}
	if m.BackoffBaseMs <= 0 {
		m.BackoffBaseMs = 200
	}
	if m.BackoffMaxMs <= 0 {
		m.BackoffMaxMs = 5000
	}
	if m.ProviderConcurrency <= 0 {
		m.ProviderConcurrency = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverMemory, c.Database.Driver)
	}
	if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return errors.New("embedding.api_key is required unless embedding.base_url points to a keyless gateway")
	}
	if c.Embedding.Cache.TTLHours < 0 {
		return fmt.Errorf("embedding.cache.ttl_hours must be >= 0, got %d", c.Embedding.Cache.TTLHours)
	}
	if _, err := c.Embedding.CategoryInstructions(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return c.Matching.validate()
}

func (m *MatchingConfig) validate() error {
	if _, err := m.WeightSet(); err != nil {
		return err
	}
	if m.DefaultTopK > 100 {
		return fmt.Errorf("matching.default_top_k must be between 1 and 100, got %d", m.DefaultTopK)
	}
	if s := *m.DefaultMinScore; math.IsNaN(s) || s < -1 || s > 1 {
		return fmt.Errorf("matching.default_min_score must be within [-1,1], got %v", s)
	}
	if m.BackoffMaxMs < m.BackoffBaseMs {
		return fmt.Errorf("matching.backoff_max_ms (%d) must be >= backoff_base_ms (%d)", m.BackoffMaxMs, m.BackoffBaseMs)
	}
	if m.ProviderRPS < 0 {
		return fmt.Errorf("matching.provider_rps must be >= 0, got %v", m.ProviderRPS)
	}
	return nil
}

// WeightSet converts the configured weights into a validated domain.WeightSet.
func (m *MatchingConfig) WeightSet() (domain.WeightSet, error) {
	parsed := make(map[domain.Category]float64, len(m.Weights))
	for name, w := range m.Weights {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return domain.WeightSet{}, fmt.Errorf("matching.weights: %w", err)
		}
		parsed[c] = w
	}
	ws, err := domain.NewWeightSet(parsed)
	if err != nil {
		return domain.WeightSet{}, fmt.Errorf("matching.weights: %w", err)
	}
	return ws, nil
}

// BackoffBase returns the first retry delay.
func (m *MatchingConfig) BackoffBase() time.Duration {
	return time.Duration(m.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry delay cap.
func (m *MatchingConfig) BackoffMax() time.Duration {
	return time.Duration(m.BackoffMaxMs) * time.Millisecond
}

// CategoryInstructions merges configured overrides into the default instruction prefixes.
func (e *EmbeddingConfig) CategoryInstructions() (map[domain.Category]string, error) {
	out := make(map[domain.Category]string, len(domain.DefaultCategoryInstructions))
	for c, s := range domain.DefaultCategoryInstructions {
		out[c] = s
	}
	for name, s := range e.Instructions {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("embedding.instructions: %w", err)
		}
		out[c] = s
	}
	return out, nil
}

// CacheTTL returns the embedding cache entry lifetime. Zero means no expiry.
func (e *EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(e.Cache.TTLHours) * time.Hour
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
