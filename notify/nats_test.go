package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.subject = subject
	f.data = data

	return &jetstream.PubAck{Stream: "WRITER", Sequence: 1}, nil
}

func TestNatsPublisher_Publish(t *testing.T) {
	js := &fakeStream{}
	p := &NatsPublisher{js: js, subject: DefaultSubject}

	c := Completion{
		RunID:      "run-1",
		SessionID:  "session-1",
		Topic:      "renewable energy",
		Status:     "incomplete",
		Stages:     map[string]int{"Researcher": 5},
		Missing:    []string{"Writer", "Editor"},
		FinishedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), c))
	assert.Equal(t, DefaultSubject, js.subject)

	var got Completion
	require.NoError(t, json.Unmarshal(js.data, &got))
	assert.Equal(t, c, got)
	assert.NoError(t, p.Close())
}

func TestNatsPublisher_PublishError(t *testing.T) {
	boom := errors.New("no responders")
	p := &NatsPublisher{js: &fakeStream{err: boom}, subject: "writer.custom"}

	err := p.Publish(context.Background(), Completion{RunID: "run-1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "writer.custom")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}

	assert.NoError(t, p.Publish(context.Background(), Completion{}))
	assert.NoError(t, p.Close())
}
