package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crimson-sun/pilar/internal/api"
	"github.com/crimson-sun/pilar/internal/config"
	"github.com/crimson-sun/pilar/internal/logging"
	"github.com/crimson-sun/pilar/internal/service"
	"github.com/crimson-sun/pilar/internal/vision/orb"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run starts the server and blocks until it stops. Deferred cleanup runs
// before the exit code is returned.
func run(args []string, stdout io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("pilar", flag.ContinueOnError)
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "listen address")
	fs.StringVar(&cfg.Artifact.Path, "artifact", cfg.Artifact.Path, "local model artifact path")
	fs.BoolVar(&cfg.Artifact.LazyLoad, "lazy", cfg.Artifact.LazyLoad, "load the artifact on first request")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if cfg.ShowVersion {
		fmt.Fprintln(stdout, "pilar", config.Version)
		return 0
	}

	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	detector := orb.New(cfg.Engine.ORBFeatures)
	defer detector.Close()

	svc, err := service.FromConfig(ctx, cfg, detector, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		return 1
	}
	defer svc.Close()

	// A failed initial load keeps the server up: status endpoints report
	// the failure and predictions answer 503 until an admin reload.
	if err := svc.Start(ctx); err != nil {
		logger.Error("initial artifact load failed", "error", err)
	}

	go reloadOnHangup(ctx, svc, logger)

	srv := newHTTPServer(cfg.Server.Addr, api.New(svc, cfg.Server, logger))
	errCh := make(chan error, 1)
	go func() {
		logger.Info("pilar listening", "addr", cfg.Server.Addr, "version", config.Version,
			"artifact_source", cfg.Artifact.Source, "lazy", cfg.Artifact.LazyLoad)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown timeout exceeded, in-flight requests dropped", "error", err)
		}
	}
	return 0
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// reloadOnHangup reloads the artifact each time the process gets SIGHUP.
func reloadOnHangup(ctx context.Context, svc *service.Service, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading artifact")
			if err := svc.Reload(ctx); err != nil {
				logger.Error("artifact reload failed, keeping current artifact", "error", err)
			}
		}
	}
}
