// Command marrowd runs the marrow pipeline as a service: an HTTP API by
// default, or an MCP stdio server when MCP_TRANSPORT=stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/marrow"
	"github.com/hazyhaar/marrow/api"
	"github.com/hazyhaar/marrow/mapper"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// MCP stdio owns stdout; logs must not corrupt the protocol stream.
	logOut := os.Stdout
	mcpTransport := env("MCP_TRANSPORT", "")
	if mcpTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if cfg.Provider.Kind == mapper.ProviderGemini && cfg.Provider.APIKey == "" {
		slog.Error("GEMINI_API_KEY is required for the gemini provider")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := marrow.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("marrow client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if mcpTransport == "stdio" {
		runMCP(ctx, client)
		return
	}
	runHTTP(ctx, cfg, client, logger)
}

// loadConfig reads the optional YAML config file, then applies env
// overrides. Env parsing lives here and nowhere else.
func loadConfig() (*marrow.Config, error) {
	var cfg *marrow.Config
	if path := env("CONFIG", ""); path != "" {
		loaded, err := marrow.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &marrow.Config{}
	}

	if v := env("DB_PATH", ""); v != "" {
		cfg.Registry.DBPath = v
	}
	if cfg.Registry.DBPath == "" {
		cfg.Registry.DBPath = "db/marrow.db"
	}
	if v := env("PORT", ""); v != "" {
		cfg.HTTP.Addr = ":" + v
	}
	if v := env("SESSION_DIR", ""); v != "" {
		cfg.SessionDir = v
	}
	if v := env("AI_PROVIDER", ""); v != "" {
		cfg.Provider.Kind = mapper.ProviderKind(v)
	}
	if v := env("GEMINI_API_KEY", ""); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := env("AI_MODEL", ""); v != "" {
		cfg.Provider.Model = v
	}
	if v := env("OLLAMA_ENDPOINT", ""); v != "" {
		cfg.Provider.Endpoint = v
	}
	switch env("HEADLESS", "") {
	case "true":
		cfg.Headless = true
	case "false":
		cfg.Headless = false
	case "":
		// server deployments default to headless; escalation opens its
		// own visible browser regardless
		if os.Getenv("CONFIG") == "" {
			cfg.Headless = true
		}
	}
	return cfg, nil
}

func runMCP(ctx context.Context, client *marrow.Client) {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "marrow",
		Version: api.Version,
	}, nil)
	client.RegisterMCP(srv)

	slog.Info("MCP stdio server starting")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("MCP server", "error", err)
		os.Exit(1)
	}
}

func runHTTP(ctx context.Context, cfg *marrow.Config, client *marrow.Client, logger *slog.Logger) {
	r := api.NewServer(client, logger).Router(cfg.HTTP)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Mapping requests block on navigation and AI discovery.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
