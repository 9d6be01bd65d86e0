// Package bootstrap wires configuration into a ready pipeline for the
// command line and server binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/writermesh"
	"github.com/hupe1980/writermesh/internal/config"
	"github.com/hupe1980/writermesh/internal/tracing"
	"github.com/hupe1980/writermesh/logging"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/model/anthropic"
	"github.com/hupe1980/writermesh/model/openai"
	"github.com/hupe1980/writermesh/notify"
	"github.com/hupe1980/writermesh/session"
	"github.com/hupe1980/writermesh/tool"
)

// Container holds the long-lived dependencies of a process.
type Container struct {
	Config    *config.Config
	Logger    logging.Logger
	Model     model.Model
	Publisher notify.Publisher
	Sessions  *session.InMemoryStore
	Pipeline  *writermesh.Pipeline

	closers []func(context.Context) error
}

// Options tweaks the container for a particular binary.
type Options struct {
	// LogOutput defaults to stdout.
	LogOutput io.Writer
	// Pipeline is applied after the configuration.
	Pipeline func(o *writermesh.Options)
}

// NewContainer builds every dependency described by cfg.
func NewContainer(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Container, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	level, err := logging.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	zl := logging.NewZapLogger(logging.ZapConfig{
		Level:    level,
		Format:   cfg.Log.Format,
		Output:   opts.LogOutput,
		FilePath: cfg.Log.File,
	})
	logger := logging.NewZapAdapter(zl)

	c := &Container{Config: cfg, Logger: logger}
	c.closers = append(c.closers, func(context.Context) error {
		_ = zl.Sync()
		return nil
	})

	shutdownTracing, err := tracing.Init(ctx, func(o *tracing.Options) {
		o.Endpoint = cfg.Tracing.Endpoint
		o.ServiceName = cfg.Tracing.ServiceName
	})
	if err != nil {
		logger.Warn("bootstrap.tracing.disabled", "error", err.Error())
	} else {
		c.closers = append(c.closers, shutdownTracing)
	}

	c.Model, err = NewModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	logger.Info("bootstrap.model", "provider", cfg.Model.Provider, "model", cfg.Model.Name)

	c.Publisher = notify.NoopPublisher{}

	if cfg.Notify.NatsURL != "" {
		pub, err := notify.NewNatsPublisher(cfg.Notify.NatsURL, func(o *notify.NatsOptions) {
			o.Subject = cfg.Notify.Subject
			o.Logger = logger
		})
		if err != nil {
			logger.Warn("bootstrap.notify.disabled", "error", err.Error())
		} else {
			c.Publisher = pub
			c.closers = append(c.closers, func(context.Context) error { return pub.Close() })
		}
	}

	overrides, err := config.LoadStageOverrides(cfg.Pipeline.StagesFile)
	if err != nil {
		return nil, err
	}

	var searcher tool.Searcher
	if cfg.Pipeline.SearchURL != "" {
		searcher = tool.NewSearxSearcher(cfg.Pipeline.SearchURL)
	} else {
		logger.Warn("bootstrap.search.disabled", "reason", "SEARCH_URL not set")
	}

	c.Sessions = session.NewInMemoryStore(func(o *session.Options) { o.Logger = logger })

	c.Pipeline, err = writermesh.New(func(o *writermesh.Options) {
		o.Model = c.Model
		o.Searcher = searcher
		o.AppName = cfg.Session.AppName
		o.UserID = cfg.Session.UserID
		o.SessionID = cfg.Session.SessionID
		o.StageTimeout = cfg.Pipeline.StageTimeout
		o.MaxModelCalls = cfg.Pipeline.MaxModelCalls
		o.MaxParallelTools = cfg.Pipeline.MaxParallelTools
		o.EnableStreaming = cfg.Pipeline.EnableStreaming
		o.Overrides = overrides
		o.SessionStore = c.Sessions
		o.Publisher = c.Publisher
		o.Logger = logger

		if opts.Pipeline != nil {
			opts.Pipeline(o)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return c, nil
}

// NewModel returns the adapter for the configured provider.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "gemini":
		return openai.NewGeminiModel(cfg.APIKey(), func(o *openai.Options) {
			o.Model = cfg.Name
			if cfg.BaseURL != "" {
				o.BaseURL = cfg.BaseURL
			}
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey()
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.APIKey = cfg.APIKey()
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
