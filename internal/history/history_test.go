package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"
	"fulfillment-service/internal/stores/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// faultyStore fails selected writes for one order so atomicity can be observed.
type faultyStore struct {
	stores.Store
	orderID      int64
	failInsert   bool
	failDeletion bool
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(stores.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx stores.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

type faultyTx struct {
	stores.Tx
	s *faultyStore
}

func (t *faultyTx) InsertHistory(ctx context.Context, h models.OrderHistory) (int64, error) {
	if t.s.failInsert && h.SourceOrderID == t.s.orderID {
		return 0, errInjected
	}
	return t.Tx.InsertHistory(ctx, h)
}

func (t *faultyTx) DeleteOrder(ctx context.Context, id int64) error {
	if t.s.failDeletion && id == t.s.orderID {
		return errInjected
	}
	return t.Tx.DeleteOrder(ctx, id)
}

func seedOrder(t *testing.T, s stores.Store, status models.OrderStatus) models.Order {
	t.Helper()
	ctx := context.Background()
	itemID := int64(77)
	var out models.Order
	require.NoError(t, s.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = tx.InsertOrder(ctx, models.Order{
			CustomerID: 1, CustomerName: "Kiran", Status: status,
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Total:     decimal.NewFromInt(4060),
			Delivery:  models.Delivery{Address: "12 Baker St", Phone: "98450"},
			Payment:   models.Payment{PaymentID: "pay_" + uuid.NewString(), Verified: true},
			Lines: []models.OrderLine{
				{ItemID: &itemID, ItemName: "Truffle", Quantity: 2, Price: decimal.NewFromInt(2000),
					Variant: models.VariantEggless, Weight: decimal.NewNullDecimal(decimal.RequireFromString("1.5"))},
				{ItemName: "Candles", Quantity: 1, Price: decimal.NewFromInt(60)},
			},
		})
		return err
	}))
	return out
}

func exists(t *testing.T, s stores.Store, orderID int64) (order, hist bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx stores.Tx) error {
		_, err := tx.Order(ctx, orderID)
		order = err == nil
		_, err = tx.HistoryBySourceOrder(ctx, orderID)
		hist = err == nil
		return nil
	}))
	return order, hist
}

func TestArchiveOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c, err := NewConf(s)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	o := seedOrder(t, s, models.StatusDelivered)
	h, err := c.ArchiveOrder(ctx, o.ID)
	require.NoError(t, err)

	order, hist := exists(t, s, o.ID)
	assert.False(t, order)
	assert.True(t, hist)

	assert.Equal(t, o.CustomerName, h.CustomerName)
	assert.Equal(t, o.CreatedAt, h.OrderDate)
	assert.Equal(t, c.now(), h.DeliveredAt)
	assert.Equal(t, models.StatusDelivered, h.Status)
	require.Len(t, h.Lines, len(o.Lines))
	for i, l := range o.Lines {
		hl := h.Lines[i]
		assert.Equal(t, l.ItemName, hl.ItemName)
		assert.Equal(t, l.Quantity, hl.Quantity)
		assert.Equal(t, l.Price.String(), hl.Price.String())
		assert.Equal(t, l.Variant, hl.Variant)
		assert.True(t, models.NullDecimalEqual(l.Weight, hl.Weight))
		assert.Equal(t, l.ItemID, hl.ItemID)
	}

	stored, err := c.BySourceOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, stored.ID)
}

func TestArchiveRequiresDelivered(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c, err := NewConf(s)
	require.NoError(t, err)

	o := seedOrder(t, s, models.StatusOutForDelivery)
	_, err = c.ArchiveOrder(ctx, o.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	order, hist := exists(t, s, o.ID)
	assert.True(t, order)
	assert.False(t, hist)
}

func TestArchiveIsAtomic(t *testing.T) {
	tests := []struct {
		name         string
		failInsert   bool
		failDeletion bool
	}{
		{name: "history write fails", failInsert: true},
		{name: "order delete fails", failDeletion: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New()
			o := seedOrder(t, mem, models.StatusDelivered)
			fs := &faultyStore{Store: mem, orderID: o.ID, failInsert: tt.failInsert, failDeletion: tt.failDeletion}
			c, err := NewConf(fs)
			require.NoError(t, err)

			_, err = c.ArchiveOrder(context.Background(), o.ID)
			require.ErrorIs(t, err, errInjected)

			order, hist := exists(t, mem, o.ID)
			assert.True(t, order)
			assert.False(t, hist)
		})
	}
}

func TestBulkArchiveContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	bad := seedOrder(t, mem, models.StatusDelivered)
	good := seedOrder(t, mem, models.StatusDelivered)
	pending := seedOrder(t, mem, models.StatusConfirmed)

	c, err := NewConf(&faultyStore{Store: mem, orderID: bad.ID, failInsert: true})
	require.NoError(t, err)

	n, err := c.BulkArchive(ctx)
	assert.Equal(t, 1, n)
	require.ErrorIs(t, err, errInjected)

	order, hist := exists(t, mem, good.ID)
	assert.False(t, order)
	assert.True(t, hist)

	order, hist = exists(t, mem, bad.ID)
	assert.True(t, order)
	assert.False(t, hist)

	order, _ = exists(t, mem, pending.ID)
	assert.True(t, order)
}

func TestIsItemReferenced(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c, err := NewConf(s)
	require.NoError(t, err)

	ok, err := c.IsItemReferenced(ctx, 77)
	require.NoError(t, err)
	assert.False(t, ok)

	o := seedOrder(t, s, models.StatusDelivered)
	_, err = c.ArchiveOrder(ctx, o.ID)
	require.NoError(t, err)

	ok, err = c.IsItemReferenced(ctx, 77)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := c.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	mine, err := c.ListByCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
