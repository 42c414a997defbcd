// Command server runs the CRUD API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/config"
	"github.com/goliatone/go-crud-service/pkg/di"
)

func main() {
	envDir := flag.String("env-dir", ".", "directory holding .env files")
	flag.Parse()

	if err := run(*envDir); err != nil {
		log.Printf("server: %v", err)
		os.Exit(1)
	}
}

func run(envDir string) error {
	cfg, err := config.Load(envDir)
	if err != nil {
		return err
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	logger := container.Logger()

	if rl := container.RateLimiter(); rl != nil {
		go rl.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           container.Router().Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "prefix", cfg.Prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
