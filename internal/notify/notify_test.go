package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp down")
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingSender) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func sampleOrder() models.Order {
	return models.Order{
		ID: 12, CustomerID: 3, CustomerName: "Nila", Status: models.StatusConfirmed,
		Total:    decimal.NewFromInt(2060),
		Delivery: models.Delivery{Address: "4 Oak Rd", Phone: "555"},
		Lines: []models.OrderLine{
			{ItemName: "Truffle", Quantity: 1, Price: decimal.NewFromInt(2000), Variant: models.VariantEggless},
			{ItemName: "Candles", Quantity: 1, Price: decimal.NewFromInt(60)},
		},
	}
}

func TestComposeRecipients(t *testing.T) {
	d, err := NewDeliverer(&recordingSender{}, "ops@bakery.test")
	require.NoError(t, err)
	o := sampleOrder()

	tests := []struct {
		kind Kind
		to   []string
	}{
		{KindOrderPlaced, []string{"nila@example.com", "ops@bakery.test"}},
		{KindOutForDelivery, []string{"nila@example.com"}},
		{KindDelivered, []string{"nila@example.com", "ops@bakery.test"}},
		{KindAddressChanged, []string{"ops@bakery.test"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msgs := d.Compose(NewEvent(tt.kind, o, "nila@example.com", time.Now()))
			var to []string
			for _, m := range msgs {
				to = append(to, m.To)
			}
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestComposeOrderSummary(t *testing.T) {
	d, err := NewDeliverer(&recordingSender{}, "ops@bakery.test")
	require.NoError(t, err)
	msgs := d.Compose(NewEvent(KindOrderPlaced, sampleOrder(), "nila@example.com", time.Now()))
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Body, "1 x Truffle (eggless) @ 2000.00")
	assert.Contains(t, msgs[0].Body, "Total: 2060.00")
}

func TestAddressDiffCarriesOldValues(t *testing.T) {
	d, err := NewDeliverer(&recordingSender{}, "ops@bakery.test")
	require.NoError(t, err)
	e := NewEvent(KindAddressChanged, sampleOrder(), "", time.Now())
	e.Previous = &models.Delivery{Address: "1 Elm St", Phone: "111"}

	msgs := d.Compose(e)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "Old address: 1 Elm St")
	assert.Contains(t, msgs[0].Body, "New address: 4 Oak Rd")
}

func TestHandleSkipsMissingRecipient(t *testing.T) {
	s := &recordingSender{}
	d, err := NewDeliverer(s, "")
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), NewEvent(KindOrderPlaced, sampleOrder(), "nila@example.com", time.Now())))
	assert.Len(t, s.messages(), 1)
}

func TestDispatcherDeliversQueuedEvents(t *testing.T) {
	s := &recordingSender{}
	d, err := NewDeliverer(s, "ops@bakery.test")
	require.NoError(t, err)

	disp := NewDispatcher(d, 8)
	disp.Start(context.Background())
	require.NoError(t, disp.Publish(context.Background(), NewEvent(KindOutForDelivery, sampleOrder(), "nila@example.com", time.Now())))
	disp.Close()

	assert.Len(t, s.messages(), 1)
	assert.ErrorIs(t, disp.Publish(context.Background(), Event{}), ErrClosed)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	disp := NewDispatcher(HandlerFunc(func(context.Context, Event) error { return nil }), 1)
	require.NoError(t, disp.Publish(context.Background(), Event{Kind: KindOrderPlaced}))
	assert.ErrorIs(t, disp.Publish(context.Background(), Event{Kind: KindOrderPlaced}), ErrQueueFull)
}

func TestDispatcherCloseWithoutStart(t *testing.T) {
	var handled int
	disp := NewDispatcher(HandlerFunc(func(context.Context, Event) error { handled++; return nil }), 1)
	require.NoError(t, disp.Publish(context.Background(), Event{Kind: KindOrderPlaced}))

	closed := make(chan struct{})
	go func() {
		disp.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without a running worker")
	}

	disp.Start(context.Background())
	disp.Close()
	assert.Zero(t, handled)
	assert.ErrorIs(t, disp.Publish(context.Background(), Event{}), ErrClosed)
}

func TestEmitSwallowsErrors(t *testing.T) {
	calls := 0
	p := PublisherFunc(func(context.Context, Event) error {
		calls++
		return errors.New("broker down")
	})
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, Event{Kind: KindDelivered})
		Emit(context.Background(), nil, Event{Kind: KindDelivered})
	})
	assert.Equal(t, 1, calls)
}

func TestHandleReportsSendFailure(t *testing.T) {
	d, err := NewDeliverer(&recordingSender{fail: true}, "ops@bakery.test")
	require.NoError(t, err)
	err = d.Handle(context.Background(), NewEvent(KindDelivered, sampleOrder(), "nila@example.com", time.Now()))
	assert.ErrorContains(t, err, "smtp down")
}
