// Command writer-server serves the writer pipeline over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hupe1980/writermesh/artifact"
	"github.com/hupe1980/writermesh/internal/bootstrap"
	"github.com/hupe1980/writermesh/internal/config"
	"github.com/hupe1980/writermesh/internal/server"
	"github.com/hupe1980/writermesh/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	var artifacts artifact.Store = artifact.NewInMemoryStore()
	if dir := os.Getenv("ARTIFACT_DIR"); dir != "" {
		artifacts = artifact.NewDirStore(filepath.Clean(dir))
	}

	srv := server.New(c.Pipeline, func(o *server.Options) {
		o.Port = cfg.Server.Port
		o.Artifacts = artifacts
		o.Logger = logging.With(c.Logger, "component", "http")
	})

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.Logger.Error("server.shutdown.failed", "error", err.Error())
		}
	}()

	if err := srv.Listen(); err != nil {
		c.Logger.Error("server.listen.failed", "error", err.Error())
	}

	_ = c.Close(context.Background())
}
