// Moodle MCP Server - A Model Context Protocol server for Moodle web services
// Provides tools for calling web-service functions, listing courses and
// participants, and uploading files to a Moodle site.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unige/moodle-ws-mcp-server/moodle"
	"github.com/unige/moodle-ws-mcp-server/tools"
	"github.com/unige/moodle-ws-mcp-server/tracing"
)

const (
	ServerName    = "moodle-ws-mcp-server"
	ServerVersion = "0.1.0"
)

const instructions = `Moodle MCP Server provides tools for a Moodle site's web-service API.

Available tools:
- moodle_get_site_info: Site name, release and the token's user
- moodle_get_courses: List courses, optionally by id
- moodle_get_enrolled_users: List participants of a course
- moodle_upload_file: Upload a local file to the draft area
- moodle_call_function: Call any web-service function, with an optional jq filter

Configure via environment variables:
- MOODLE_URL: Site root (e.g., https://moodle.example.edu)
- MOODLE_TOKEN: Web-service token
- MOODLE_VERIFY_TLS: Set to true to verify certificates
- MOODLE_PROXY_HOST / MOODLE_PROXY_PORT: HTTP proxy
- MOODLE_METRICS_ADDR: Serve Prometheus metrics (e.g., :9090)`

// recoverPanic logs a panic instead of crashing
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

func main() {
	// Configure logging to stderr (stdout is used for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	config, err := moodle.LoadConfig()
	if err != nil {
		return err
	}

	traceConfig, err := tracing.LoadConfig()
	if err != nil {
		return err
	}
	shutdownTracing, err := tracing.Setup(ctx, traceConfig)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	if config.MetricsAddr != "" {
		srv := startMetricsServer(config.MetricsAddr, logger)
		defer srv.Close()
	}

	client := moodle.NewClientFromConfig(config, moodle.WithLogger(logger))
	if client.GetToken() == "" {
		logger.Warn("MOODLE_TOKEN is not set; web-service calls will fail until a token is configured")
	}

	server := newServer(client, logger)

	logger.Info("Starting Moodle MCP Server",
		"name", ServerName,
		"version", ServerVersion,
		"site", client.Site(),
		"endpoint", client.Endpoint(),
		"verify_tls", client.VerifyTLS(),
	)

	return server.Run(ctx, &mcp.StdioTransport{})
}

// newServer creates the MCP server with every tool registered
func newServer(client *moodle.Client, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: instructions,
	})

	tools.NewHandlerRegistry(client, logger).RegisterAll(server)
	return server
}

// metricsMux serves Prometheus metrics and a liveness probe
func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer recoverPanic(logger, "metrics server")
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return srv
}

// logLevel reads MOODLE_LOG_LEVEL (debug, info, warn, error)
func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("MOODLE_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
