package eventhandler

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

type sent struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to, subject, body})
	return f.err
}

type fakeBus struct {
	handlers map[shared.EventType]shared.EventHandler
}

func (b *fakeBus) Subscribe(t shared.EventType, h shared.EventHandler) error {
	b.handlers[t] = h
	return nil
}

func (b *fakeBus) SubscribeAll(shared.EventHandler) error { return nil }

func TestExpenseCreatedNotifiesPayer(t *testing.T) {
	n := &fakeNotifier{}
	h := NewOnExpenseCreatedHandler(n, nil)

	ev := shared.NewExpenseCreatedEvent("e-1", "Electricity May", decimal.NewFromInt(10000), "u-saud",
		map[string]string{"u-waqar": "4000", "u-zahid": "3000", "u-saud": "3000"})
	require.NoError(t, h.Handle(ev))

	require.Len(t, n.msgs, 1)
	assert.Equal(t, "u-saud", n.msgs[0].to)
	assert.Contains(t, n.msgs[0].body, `"Electricity May"`)
	assert.Contains(t, n.msgs[0].body, "3 partners")
}

func TestExpenseCreatedWithoutPayerIsSkipped(t *testing.T) {
	n := &fakeNotifier{}
	ev := shared.NewExpenseCreatedEvent("e-1", "Water", decimal.NewFromInt(100), "", nil)
	require.NoError(t, NewOnExpenseCreatedHandler(n, nil).Handle(ev))
	assert.Empty(t, n.msgs)
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: assert.AnError}

	ev := shared.NewSettlementRecordedEvent("s-1", "u-zahid", decimal.NewFromInt(3000), 1, decimal.Zero)
	assert.NoError(t, NewOnSettlementRecordedHandler(n, nil).Handle(ev))

	require.Len(t, n.msgs, 1)
	assert.Equal(t, "u-zahid", n.msgs[0].to)
	assert.Contains(t, n.msgs[0].body, "Remaining debt: 0")
}

func TestUnexpectedEventIsIgnored(t *testing.T) {
	n := &fakeNotifier{}
	ev := shared.NewDayClosedEvent("c-1", "2026-05-10", "u-saud", 3)
	assert.NoError(t, NewOnSettlementRecordedHandler(n, nil).Handle(ev))
	assert.Empty(t, n.msgs)
}

func TestRegisterSubscribesHandlers(t *testing.T) {
	bus := &fakeBus{handlers: map[shared.EventType]shared.EventHandler{}}
	require.NoError(t, Register(bus, &fakeNotifier{}, nil))

	assert.Contains(t, bus.handlers, shared.EventExpenseCreated)
	assert.Contains(t, bus.handlers, shared.EventSettlementRecorded)
}
