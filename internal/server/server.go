// Package server exposes the writer pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/artifact"
	"github.com/hupe1980/writermesh/logging"
)

// Pipeline is the part of writermesh.Pipeline the server needs.
type Pipeline interface {
	Run(ctx context.Context, topic string) aggregate.Result
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, topic string) aggregate.Result

// Run implements Pipeline.
func (f PipelineFunc) Run(ctx context.Context, topic string) aggregate.Result { return f(ctx, topic) }

// Options configures a Server.
type Options struct {
	Port      string
	BodyLimit int
	// Artifacts receives the downloads of every run that produced output.
	// Nil disables exports and the download route.
	Artifacts artifact.Store
	Logger    logging.Logger
}

// Server is the HTTP surface of the pipeline.
type Server struct {
	app      *fiber.App
	pipeline Pipeline
	opts     Options
	validate *validator.Validate
	logger   logging.Logger
}

// PipelineRequest is the body of POST /api/pipeline.
type PipelineRequest struct {
	Topic string `json:"topic" validate:"max=2000"`
}

// New builds the fiber app and registers the routes.
func New(p Pipeline, optFns ...func(o *Options)) *Server {
	opts := Options{
		Port:      "8080",
		BodyLimit: 1 * 1024 * 1024,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())

	s := &Server{
		app:      app,
		pipeline: p,
		opts:     opts,
		validate: validator.New(),
		logger:   opts.Logger,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	api.Post("/pipeline", s.runPipeline)

	if s.opts.Artifacts != nil {
		api.Get("/runs/:runID/artifacts", s.listArtifacts)
		api.Get("/runs/:runID/artifacts/:name", s.getArtifact)
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on the configured port until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("server.listen", "port", s.opts.Port)
	return s.app.Listen(":" + s.opts.Port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) runPipeline(c *fiber.Ctx) error {
	var req PipelineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{aggregate.KeyError: "invalid request body"})
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{aggregate.KeyError: err.Error()})
	}

	result := s.pipeline.Run(c.UserContext(), req.Topic)

	if result.RunID != "" {
		c.Set("X-Run-ID", result.RunID)
		s.export(result)
	}

	return c.Status(statusCode(result)).JSON(result.Map())
}

func (s *Server) export(result aggregate.Result) {
	if s.opts.Artifacts == nil || len(result.Outputs) == 0 {
		return
	}

	if _, err := artifact.Export(s.opts.Artifacts, result); err != nil {
		s.logger.Error("server.export.failed", "run_id", result.RunID, "error", err.Error())
	}
}

func (s *Server) listArtifacts(c *fiber.Ctx) error {
	names, err := s.opts.Artifacts.List(c.Params("runID"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"artifacts": names})
}

func (s *Server) getArtifact(c *fiber.Ctx) error {
	name := c.Params("name")

	data, err := s.opts.Artifacts.Get(c.Params("runID"), name)
	if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, artifact.ErrInvalidName) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{aggregate.KeyError: "artifact not found"})
	}

	if err != nil {
		return err
	}

	contentType := "text/plain; charset=utf-8"
	if path.Ext(name) == ".md" {
		contentType = "text/markdown; charset=utf-8"
	}

	c.Attachment(name)
	c.Set(fiber.HeaderContentType, contentType)

	return c.Send(data)
}

func statusCode(r aggregate.Result) int {
	switch {
	case r.Failure == nil:
		return fiber.StatusOK
	case r.Failure.Kind == aggregate.KindInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadGateway
	}
}
