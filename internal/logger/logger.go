package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output encodings accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options tune the logger beyond the environment defaults. Zero values keep the defaults.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // json or console
	Service string // attached to every entry as "service"
	Version string // attached to every entry as "version"
}

// New creates a zap logger for the given environment.
// prod logs JSON at info, local/dev/docker log colored console output at debug.
func New(env string, o Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if o.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(o.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch o.Format {
	case "":
	case FormatJSON:
		cfg.Encoding = FormatJSON
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case FormatConsole:
		cfg.Encoding = FormatConsole
	default:
		return nil, fmt.Errorf("invalid log format %q", o.Format)
	}

	fields := map[string]any{}
	if o.Service != "" {
		fields["service"] = o.Service
	}
	if o.Version != "" {
		fields["version"] = o.Version
	}
	if len(fields) > 0 {
		cfg.InitialFields = fields
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
