package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"
)

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	id, body, err := newEnvelope(RoutingPaymentRecorded, PaymentRecorded{
		PaymentID:        "10",
		StudentID:        "7",
		Amount:           65000,
		SettledChargeIDs: []string{"1", "2"},
		Remaining:        5000,
	}, now)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, id, env.ID)
	assert.Len(t, env.ID, 26)
	assert.Equal(t, RoutingPaymentRecorded, env.Type)
	assert.True(t, env.OccurredAt.Equal(now))

	var data PaymentRecorded
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(65000), data.Amount)
	assert.Equal(t, []string{"1", "2"}, data.SettledChargeIDs)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoop()
	assert.NoError(t, p.Publish(context.Background(), RoutingChargesGenerated, ChargesGenerated{}))
	assert.NoError(t, p.Close())
}

func TestNewAMQPPublisherValidatesInput(t *testing.T) {
	_, err := NewAMQPPublisher("", "x", zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewAMQPPublisher("amqp://localhost", " ", zaptest.NewLogger(t))
	assert.Error(t, err)
}

type recordingPublisher struct {
	done chan string
}

func (r *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	r.done <- key
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestPublishAsync(t *testing.T) {
	rec := &recordingPublisher{done: make(chan string, 1)}
	PublishAsync(rec, zaptest.NewLogger(t), RoutingChargesGenerated, ChargesGenerated{})

	select {
	case key := <-rec.done:
		assert.Equal(t, RoutingChargesGenerated, key)
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
}

type slowPublisher struct {
	mu        sync.Mutex
	delay     time.Duration
	published []string
	closedAt  int
	closed    bool
}

func (p *slowPublisher) Publish(_ context.Context, key string, _ any) error {
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("channel closed")
	}
	p.published = append(p.published, key)
	return nil
}

func (p *slowPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closedAt = len(p.published)
	return nil
}

func TestDispatcherCloseDrainsInFlight(t *testing.T) {
	inner := &slowPublisher{delay: 20 * time.Millisecond}
	d := NewDispatcher(inner, zaptest.NewLogger(t))

	PublishAsync(d, zaptest.NewLogger(t), RoutingChargesGenerated, ChargesGenerated{})
	PublishAsync(d, zaptest.NewLogger(t), RoutingPaymentRecorded, PaymentRecorded{})
	require.NoError(t, d.Close())

	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.True(t, inner.closed)
	assert.Equal(t, 2, inner.closedAt)
	assert.ElementsMatch(t, []string{RoutingChargesGenerated, RoutingPaymentRecorded}, inner.published)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	inner := &slowPublisher{}
	d := NewDispatcher(inner, zaptest.NewLogger(t))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.ErrorIs(t, d.Publish(context.Background(), RoutingPaymentRecorded, PaymentRecorded{}), ErrPublisherClosed)
	d.PublishAsync(RoutingPaymentRecorded, PaymentRecorded{})
	assert.Empty(t, inner.published)
}

func TestNewDrainsOnStop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	publisher := New(lc, config.Config{}, zaptest.NewLogger(t))
	_, ok := publisher.(*Dispatcher)
	require.True(t, ok)

	lc.RequireStart()
	lc.RequireStop()
	assert.ErrorIs(t, publisher.Publish(context.Background(), RoutingChargesGenerated, ChargesGenerated{}), ErrPublisherClosed)
}
