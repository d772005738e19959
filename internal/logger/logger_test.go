package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		format  string
		wantErr bool
		enabled zapcore.Level
	}{
		{env: "prod", enabled: zapcore.InfoLevel},
		{env: "local", enabled: zapcore.DebugLevel},
		{env: "prod", level: "warn", enabled: zapcore.WarnLevel},
		{env: "staging", wantErr: true},
		{env: "prod", level: "loud", wantErr: true},
		{env: "local", format: FormatJSON, enabled: zapcore.DebugLevel},
		{env: "prod", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := New(tt.env, Options{Level: tt.level, Format: tt.format})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}

func TestNew_InitialFields(t *testing.T) {
	l, err := New("prod", Options{Service: "vecmatch", Version: "1.2.3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected logger")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger, got nil")
	}
	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected stored logger")
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	if FromContextOr(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback")
	}
	if FromContextOr(context.Background(), nil) == nil {
		t.Fatal("expected nop for nil fallback")
	}
	stored := zap.NewExample()
	if FromContextOr(ContextWithLogger(context.Background(), stored), fallback) != stored {
		t.Fatal("context logger must win")
	}
}
