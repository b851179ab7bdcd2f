package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/config"
	"github.com/MeKo-Tech/tlpr/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP recognition service",
	Long: `Start an HTTP server exposing the recognition pipeline.

Endpoints:
  GET  /                  service banner
  GET  /health            health check
  POST /process-image     {"image_path": url} -> plate result
  POST /recognize         multipart upload (field "image") -> plate result
  GET  /provinces         province catalog
  GET  /provinces/match   ?text= -> closest province
  GET  /metrics           Prometheus metrics
  GET  /ws/recognize      WebSocket, one result per frame

Examples:
  tlpr serve
  tlpr serve --host 0.0.0.0 --port 3000 --strict-status`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()

		ocrServer, err := server.NewServer(serverConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           ocrServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout + cfg.ToFetchConfig().Timeout,
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("Starting recognition server", "addr", addr, "strict_status", cfg.Server.StrictStatus)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				_ = ocrServer.Close()
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			slog.Info("Received shutdown signal")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := ocrServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func serverConfig(cfg *config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		StrictStatus:   cfg.Server.StrictStatus,
		Fetch:          cfg.ToFetchConfig(),
		PipelineConfig: cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.DefaultConfig().Server
	f := serveCmd.Flags()
	f.StringP("host", "H", d.Host, "server host")
	f.IntP("port", "p", d.Port, "server port")
	f.String("cors-origin", d.CORSOrigin, "CORS allowed origin")
	f.Int("max-upload-size", d.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", d.TimeoutSec, "request timeout in seconds")
	f.Int("shutdown-timeout", d.ShutdownTimeout, "shutdown timeout in seconds")
	f.Bool("strict-status", d.StrictStatus, "map failures to 4xx/5xx status codes instead of 200")
	f.Bool("rate-limit", d.RateLimit.Enabled, "enable per-client rate limiting")
	f.Int("requests-per-minute", d.RateLimit.RequestsPerMinute, "rate limit: requests per minute per client")
	f.Int("requests-per-hour", d.RateLimit.RequestsPerHour, "rate limit: requests per hour per client")

	mustBind("server.host", f.Lookup("host"))
	mustBind("server.port", f.Lookup("port"))
	mustBind("server.cors_origin", f.Lookup("cors-origin"))
	mustBind("server.max_upload_mb", f.Lookup("max-upload-size"))
	mustBind("server.timeout_sec", f.Lookup("timeout"))
	mustBind("server.shutdown_timeout", f.Lookup("shutdown-timeout"))
	mustBind("server.strict_status", f.Lookup("strict-status"))
	mustBind("server.rate_limit.enabled", f.Lookup("rate-limit"))
	mustBind("server.rate_limit.requests_per_minute", f.Lookup("requests-per-minute"))
	mustBind("server.rate_limit.requests_per_hour", f.Lookup("requests-per-hour"))
}
