package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/portfolio-assistant/internal/app"
	"github.com/arturoeanton/portfolio-assistant/internal/handler"
	"github.com/arturoeanton/portfolio-assistant/internal/logging"
	"github.com/arturoeanton/portfolio-assistant/internal/mcp"
	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
	"github.com/arturoeanton/portfolio-assistant/pkg/config"
)

const version = "1.0.0"

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load()

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("🚀 Starting portfolio assistant",
		"port", cfg.Port,
		"ai_provider", cfg.EmbedProvider,
		"chat_provider", cfg.ChatProvider,
		"vector_store", cfg.VectorStore,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Adapters & services ──────────────────────────────────────────────
	startCtx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout())
	defer cancel()

	deps, err := app.Build(startCtx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	chatModel, err := deps.ChatModel(startCtx)
	if err != nil {
		return err
	}

	auditWriter, err := deps.AuditWriter(startCtx)
	if err != nil {
		return err
	}

	tokenCfg := deps.TokenConfig()
	if cfg.AdminRequireToken && tokenCfg.Secret == "" {
		return errors.New("ADMIN_REQUIRE_TOKEN needs ADMIN_TOKEN_SECRET")
	}
	if cfg.AdminPassword == "" {
		slog.Warn("ADMIN_PASSWORD not set; admin panel is disabled")
	}

	chatService := service.NewChatService(chatModel, deps.Retrieval, service.NewPromptBuilder(deps.Persona), deps.ChatOptions())
	authService := service.NewAuthService(cfg.AdminPassword, tokenCfg)

	// ── Fiber App ────────────────────────────────────────────────────────
	fiberApp := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		BodyLimit:   (cfg.MaxUploadMB + 1) << 20,
		ReadTimeout: 30 * time.Second,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(fiberlogger.New())
	corsHandler, err := middleware.CORS(cfg.AllowedOrigins)
	if err != nil {
		return err
	}
	fiberApp.Use(corsHandler)

	guard := middleware.AdminGuard(tokenCfg)

	handler.NewMetaHandler(cfg.AppName, version, deps.Persona, deps.Docs).Register(fiberApp)
	handler.NewDocumentHandler(deps.Docs, guard, auditWriter, int64(cfg.MaxUploadMB)<<20).Register(fiberApp)
	handler.NewChatHandler(chatService, cfg.ChatTimeout()).Register(fiberApp)
	handler.NewSearchHandler(deps.Retrieval).Register(fiberApp)
	handler.NewAuthHandler(authService, auditWriter).Register(fiberApp)
	if deps.Postgres != nil {
		handler.NewAuditHandler(deps.Postgres, guard).Register(fiberApp)
	}

	// ── MCP Server (separate port) ───────────────────────────────────────
	var mcpServer *mcp.Server
	if cfg.MCPEnabled {
		mcpServer = mcp.NewServer(deps.Retrieval, deps.Docs, "portfolio-assistant", version, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		slog.Info("🌐 Fiber listening", "port", cfg.Port)
		errCh <- fiberApp.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP shutdown failed", "error", err)
		}
	}
	return fiberApp.ShutdownWithContext(shutdownCtx)
}
