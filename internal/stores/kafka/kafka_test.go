package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	hold    bool
}

// TryProduce completes the promise inline unless hold is set, which models a
// broker that never answers.
func (f *fakeProducer) TryProduce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.records = append(f.records, r)
	if !f.hold {
		promise(r, f.err)
	}
}

func sampleEvent() notify.Event {
	o := models.Order{
		ID:           42,
		CustomerID:   7,
		CustomerName: "Asha",
		Total:        decimal.RequireFromString("3830"),
		Status:       models.StatusConfirmed,
		Delivery:     models.Delivery{Address: "12 MG Road", Phone: "9876543210"},
		Lines: []models.OrderLine{
			{ItemName: "Black Forest", Quantity: 2, Price: decimal.NewFromInt(930), Variant: models.VariantEggless},
		},
	}
	return notify.NewEvent(notify.KindOrderPlaced, o, "asha@example.com", time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC))
}

func TestPublisherThenHandle(t *testing.T) {
	fp := &fakeProducer{}
	p := &Publisher{p: fp, topic: TopicOrderEvents}
	e := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, fp.records, 1)
	rec := fp.records[0]
	assert.Equal(t, TopicOrderEvents, rec.Topic)
	assert.Equal(t, "42", string(rec.Key))
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, HeaderKind, rec.Headers[0].Key)
	assert.Equal(t, string(notify.KindOrderPlaced), string(rec.Headers[0].Value))

	var got notify.Event
	h := notify.HandlerFunc(func(_ context.Context, e notify.Event) error {
		got = e
		return nil
	})
	require.NoError(t, handleRecord(context.Background(), h, rec))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "asha@example.com", got.CustomerEmail)
	assert.True(t, got.Total.Equal(e.Total))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, models.VariantEggless, got.Lines[0].Variant)
}

func TestPublishDoesNotWaitForDelivery(t *testing.T) {
	p := &Publisher{p: &fakeProducer{err: errors.New("broker down")}, topic: TopicOrderEvents}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))

	held := &fakeProducer{hold: true}
	p = &Publisher{p: held, topic: TopicOrderEvents}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Len(t, held.records, 1)
}

func TestPublishToUnreachableBrokerReturnsPromptly(t *testing.T) {
	c, err := NewConf([]string{"127.0.0.1:1"})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	notify.Emit(ctx, NewPublisher(c), sampleEvent())
	assert.Less(t, time.Since(start), time.Second)
}

func TestHandleRecordRejectsGarbage(t *testing.T) {
	called := false
	h := notify.HandlerFunc(func(context.Context, notify.Event) error {
		called = true
		return nil
	})
	err := handleRecord(context.Background(), h, &kgo.Record{Value: []byte("{not json")})
	assert.ErrorIs(t, err, errUndecodable)
	assert.False(t, called)
}

func TestNewConfNeedsBrokers(t *testing.T) {
	_, err := NewConf(nil)
	assert.Error(t, err)
}
