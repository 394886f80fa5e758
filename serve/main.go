// Command archchand is the archchan daemon.
// It accepts line-framed requests over TCP, routes each one to a task agent
// and answers with exactly one response frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	archchan "github.com/berkucuk/archchan"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response")
	configPath := flag.String("config", "", "config file (default: $ARCHCHAN_CONFIG_DIR/config.toml)")
	addr := flag.String("addr", "", "listen address, overrides config and ARCHCHAN_HOST/ARCHCHAN_PORT")
	flag.Parse()

	if *showVersion {
		fmt.Println("archchand", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range archchan.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = archchan.ListenAddr(cfg)
	}

	svc, err := buildServices(cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	srv, err := NewServerWithDispatcher(listenAddr, svc.dispatcher, OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var status *http.Server
	if cfg.Server.StatusAddr != "" {
		status = &http.Server{
			Addr:              cfg.Server.StatusAddr,
			Handler:           newStatusHandler(srv, svc.audit),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			slog.Info("status server listening", "addr", status.Addr)
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if status != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				slog.Warn("status server forced to shutdown", "error", err)
			}
		}
		srv.Close()
	}()

	slog.Info("ready", "addr", srv.Addr().String())
	if err := srv.Serve(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	srv.Close()
	slog.Info("stopped")
}

func loadConfig(path string) (*archchan.Config, error) {
	if path == "" {
		return archchan.LoadConfig()
	}
	return archchan.LoadConfigFile(path)
}
