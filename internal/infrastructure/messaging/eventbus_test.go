package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/circuitbreaker"
)

func incomeEvent(id string) shared.Event {
	return shared.NewIncomeRecordedEvent(id, "tuition", decimal.NewFromInt(500), "u-desk")
}

func TestInMemoryBusSyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventIncomeRecorded, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.Subscribe(shared.EventDayClosed, func(shared.Event) error { t.Fatal("wrong type"); return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(incomeEvent("tx-1")))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, all)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryBusIsolatesHandlerFailures(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var after bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return assert.AnError }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { after = true; return nil }))

	assert.NoError(t, bus.Publish(incomeEvent("tx-1")))
	assert.True(t, after)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryBusAsyncDrainsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		n.Add(1)
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(incomeEvent("tx")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), n.Load())
	assert.ErrorIs(t, bus.Publish(incomeEvent("late")), ErrEventBusClosed)
}

// fakeRedis loops published messages back to every subscriber.
type fakeRedis struct {
	mu   sync.Mutex
	subs []chan RedisMessage
	sent []string
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message.(string))
	for _, ch := range f.subs {
		ch <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	f.subs = append(f.subs, ch)
	return ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisBusDeliversToOtherInstancesOnce(t *testing.T) {
	redis := &fakeRedis{}
	a, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "b"})
	require.NoError(t, err)
	defer b.Close()

	var local atomic.Int32
	require.NoError(t, a.SubscribeAll(func(shared.Event) error { local.Add(1); return nil }))

	remote := make(chan shared.Event, 1)
	require.NoError(t, b.SubscribeAll(func(e shared.Event) error { remote <- e; return nil }))

	require.NoError(t, a.Publish(incomeEvent("tx-9")))

	select {
	case e := <-remote:
		assert.Equal(t, shared.EventIncomeRecorded, e.EventType())
		assert.Equal(t, "tx-9", e.AggregateID())
		assert.Equal(t, "tuition", e.Payload()["category"])
	case <-time.After(time.Second):
		t.Fatal("remote instance did not receive the event")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), local.Load(), "own events are not handled twice")
}

// downRedis accepts subscriptions but fails every publish.
type downRedis struct {
	publishes atomic.Int32
}

func (d *downRedis) Publish(context.Context, string, interface{}) error {
	d.publishes.Add(1)
	return errors.New("connection refused")
}

func (d *downRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return make(chan RedisMessage), nil
}

func (d *downRedis) Close() error { return nil }

func TestRedisBusStopsContactingRedisWhileCircuitOpen(t *testing.T) {
	redis := &downRedis{}
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithTimeout(time.Hour))
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "a", Breaker: breaker})
	require.NoError(t, err)
	defer bus.Close()

	var local atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { local.Add(1); return nil }))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(incomeEvent("tx")))
	}

	assert.Equal(t, int32(2), redis.publishes.Load())
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
	assert.Equal(t, int32(5), local.Load(), "local handlers run regardless of redis")
}
