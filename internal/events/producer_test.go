package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/logging"
)

type failingPublisher struct {
	calls int
}

func (f *failingPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	f.calls++
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return errors.New("expected deadline")
	}
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil)
	require.Error(t, err)

	p, err := NewProducer([]string{"localhost:9092"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublish_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), logging.NewWithWriter(&buf, "info"))

	p := &failingPublisher{}
	Publish(ctx, p, TopicOrders, "1", map[string]any{"type": "order_placed"})

	assert.Equal(t, 1, p.calls)
	assert.Contains(t, buf.String(), "event_publish_error")
	assert.Contains(t, buf.String(), "order_placed")
}

func TestPublish_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Publish(context.Background(), nil, TopicCarts, "1", map[string]any{"type": "cart_cleared"})
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := LogPublisher{Logger: logging.NewWithWriter(&buf, "debug")}

	require.NoError(t, p.PublishEvent(context.Background(), TopicCarts, "3", map[string]any{"type": "cart_cleared"}))
	assert.Contains(t, buf.String(), "cart_cleared")
	require.NoError(t, p.Close())
}
