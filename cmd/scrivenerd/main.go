// Command scrivenerd runs the documentation pipeline backend: config load,
// HTTP+WS server, and signal-aware graceful shutdown, following the
// teacher's single-process bootstrap shape.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"scrivener/pkg/api"
	"scrivener/pkg/config"
	"scrivener/pkg/docs"
	"scrivener/pkg/llm"
	_ "scrivener/pkg/llm/anthropic"
	_ "scrivener/pkg/llm/openaicompat"
	"scrivener/pkg/monitor"
	"scrivener/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, sysCfg, err := config.Load()
	if err != nil {
		monitor.PrintBanner()
		monitor.SetupSlog("info")
		slog.Error("failed to load configuration", "error", err)
		return
	}

	monitor.Startup(sysCfg.LogLevel)

	client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		slog.Error("failed to initialize llm client", "error", err)
		return
	}

	otelTracer, shutdownTracing, err := telemetry.SetupProvider(ctx, "scrivener")
	if err != nil {
		slog.Error("failed to configure tracing; continuing without it", "error", err)
		otelTracer = nil
	}
	defer func() {
		if shutdownTracing != nil {
			_ = shutdownTracing(context.Background())
		}
	}()

	var tracer *telemetry.Handler
	if otelTracer != nil {
		tracer = telemetry.New(otelTracer)
	}
	pipeline := docs.New(client, sysCfg, tracer)

	server := api.New(cfg, sysCfg, client, pipeline)

	debounce := time.Duration(sysCfg.ConfigReloadDebounceMs) * time.Millisecond
	reloadCh := config.WatchConfig(ctx, debounce, "config.json", "system.json")
	go watchConfig(ctx, reloadCh, server)

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: server,
	}

	go func() {
		slog.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down: cancelling running documentation tasks")
	pipeline.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during http shutdown", "error", err)
	}
}

// watchConfig reloads config.json/system.json on change and swaps the
// server's live config and LLM client, following the teacher's
// hot-reload-in-place pattern rather than restarting the process.
func watchConfig(ctx context.Context, reloadCh <-chan struct{}, server *api.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-reloadCh:
			if !ok {
				return
			}
			cfg, sysCfg, err := config.Load()
			if err != nil {
				slog.Error("config reload failed; keeping previous configuration", "error", err)
				continue
			}
			client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
			if err != nil {
				slog.Error("config reload produced an invalid llm client; keeping previous configuration", "error", err)
				continue
			}
			server.SetConfig(cfg, sysCfg)
			server.SetClient(client)
			slog.Info("configuration reloaded")
		}
	}
}
