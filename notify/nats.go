package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hupe1980/writermesh/logging"
)

// DefaultSubject is the subject completion notices are published on.
const DefaultSubject = "writer.pipeline.completed"

// NatsOptions configures a NatsPublisher.
type NatsOptions struct {
	Subject string
	// Stream is created (or updated) to capture Subject.
	Stream        string
	MaxReconnects int
	ReconnectWait time.Duration
	Logger        logging.Logger
}

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NatsPublisher publishes completion notices to a JetStream subject.
type NatsPublisher struct {
	nc      *nats.Conn
	js      streamPublisher
	subject string
}

// NewNatsPublisher connects to the NATS server at url and makes sure the
// stream exists. A stream setup failure is logged, not returned: the stream
// may be managed elsewhere.
func NewNatsPublisher(url string, optFns ...func(o *NatsOptions)) (*NatsPublisher, error) {
	opts := NatsOptions{
		Subject:       DefaultSubject,
		Stream:        "WRITER",
		MaxReconnects: 5,
		ReconnectWait: 2 * time.Second,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      opts.Stream,
		Subjects:  []string{opts.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	}); err != nil {
		opts.Logger.Warn("notify.stream.ensure_failed", "stream", opts.Stream, "error", err.Error())
	}

	return &NatsPublisher{nc: nc, js: js, subject: opts.Subject}, nil
}

// Publish implements Publisher.
func (p *NatsPublisher) Publish(ctx context.Context, c Completion) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal completion: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", p.subject, err)
	}

	return nil
}

// Close drains and closes the connection.
func (p *NatsPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}
