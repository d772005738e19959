package vecmatch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis" or "memory"
	addrs    []string
	password string

	embedder     Embedder
	instructions map[Category]string
	weights      Weights

	maxBatchSize int
	concurrency  int64
	rps          float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores embeddings in a Redis-protocol database (Redis, Valkey).
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps embeddings in process memory. Useful for tests and single-node tools.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithInstructions overrides the per-category prefixes put in front of the text before embedding.
func WithInstructions(m map[Category]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instructions = m
	})
}

// WithWeights sets the initial category weights.
// Defaults: skills 0.4, career 0.3, culture 0.2, salary 0.1.
func WithWeights(w Weights) Option {
	return optionFunc(func(c *clientConfig) {
		c.weights = w
	})
}

// WithMaxBatchSize sets the maximum number of items per EmbedBatch call.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithProviderLimits caps in-flight embedding calls and their rate (0 rps = unlimited).
// Default: 4 concurrent calls, no rate limit.
func WithProviderLimits(concurrency int64, rps float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = concurrency
		c.rps = rps
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
