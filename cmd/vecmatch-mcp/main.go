// Command vecmatch-mcp serves the matching tools over the Model Context Protocol on stdio.
// Logs go to stderr; stdout carries protocol messages only.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/app"
	"github.com/kailas-cloud/vecmatch/internal/config"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
	mcpTransport "github.com/kailas-cloud/vecmatch/internal/transport/mcp"
	"github.com/kailas-cloud/vecmatch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, logpkg.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "vecmatch-mcp",
		Version: version.String(),
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecmatch MCP server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build services", zap.Error(err))
	}
	defer svc.Close()

	tools := mcpTransport.NewServer(svc.Embeddings, svc.Matches, svc.Explanations, svc.Weights, svc.Health, logger)
	stdio := server.NewStdioServer(mcpTransport.NewMCPServer(tools, "vecmatch", version.String()))
	stdio.SetErrorLogger(zap.NewStdLog(logger))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("MCP server stopped", zap.Error(err))
		return
	}
	logger.Info("MCP server stopped")
}
