// Package memory is an in-process Store. Transactions are serialised by a
// single mutex; each runs against a private copy of the state which replaces
// the live state only when the transaction function succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"
)

type cartRow struct {
	ID         int64
	CustomerID int64
}

type state struct {
	nextID    int64
	items     map[int64]models.Item
	customers map[int64]models.Customer
	carts     map[int64]cartRow
	cartLines map[int64]models.CartLine
	orders    map[int64]models.Order
	history   map[int64]models.OrderHistory
	coupons   map[int64]models.Coupon
}

func newState() *state {
	return &state{
		items:     map[int64]models.Item{},
		customers: map[int64]models.Customer{},
		carts:     map[int64]cartRow{},
		cartLines: map[int64]models.CartLine{},
		orders:    map[int64]models.Order{},
		history:   map[int64]models.OrderHistory{},
		coupons:   map[int64]models.Coupon{},
	}
}

func (s *state) clone() *state {
	c := &state{
		nextID:    s.nextID,
		items:     make(map[int64]models.Item, len(s.items)),
		customers: make(map[int64]models.Customer, len(s.customers)),
		carts:     make(map[int64]cartRow, len(s.carts)),
		cartLines: make(map[int64]models.CartLine, len(s.cartLines)),
		orders:    make(map[int64]models.Order, len(s.orders)),
		history:   make(map[int64]models.OrderHistory, len(s.history)),
		coupons:   make(map[int64]models.Coupon, len(s.coupons)),
	}
	for k, v := range s.items {
		c.items[k] = cloneItem(v)
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartLines {
		c.cartLines[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.history {
		c.history[k] = cloneHistory(v)
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ stores.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(stores.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

// Items

func (t *tx) Item(_ context.Context, id int64) (models.Item, error) {
	it, ok := t.st.items[id]
	if !ok {
		return models.Item{}, apperr.ErrItemNotFound
	}
	return cloneItem(it), nil
}

func (t *tx) CreateItem(_ context.Context, item models.Item) (int64, error) {
	item.ID = t.st.id()
	t.st.items[item.ID] = cloneItem(item)
	return item.ID, nil
}

func (t *tx) SaveItemStock(_ context.Context, item models.Item) error {
	cur, ok := t.st.items[item.ID]
	if !ok {
		return apperr.ErrItemNotFound
	}
	cur.RegularStock = item.RegularStock
	cur.EgglessStock = item.EgglessStock
	cur.Available = item.Available
	t.st.items[item.ID] = cur
	return nil
}

func (t *tx) DeleteItem(_ context.Context, id int64) error {
	if _, ok := t.st.items[id]; !ok {
		return apperr.ErrItemNotFound
	}
	delete(t.st.items, id)
	for lid, l := range t.st.cartLines {
		if l.ItemID == id {
			delete(t.st.cartLines, lid)
		}
	}
	for oid, o := range t.st.orders {
		for i := range o.Lines {
			if o.Lines[i].ItemID != nil && *o.Lines[i].ItemID == id {
				o.Lines[i].ItemID = nil
			}
		}
		t.st.orders[oid] = o
	}
	for hid, h := range t.st.history {
		for i := range h.Lines {
			if h.Lines[i].ItemID != nil && *h.Lines[i].ItemID == id {
				h.Lines[i].ItemID = nil
			}
		}
		t.st.history[hid] = h
	}
	return nil
}

func (t *tx) CountActiveOrderLines(_ context.Context, itemID int64) (int, error) {
	n := 0
	for _, o := range t.st.orders {
		if o.Status.IsDelivered() {
			continue
		}
		for _, l := range o.Lines {
			if l.ItemID != nil && *l.ItemID == itemID {
				n++
			}
		}
	}
	return n, nil
}

// Customers

func (t *tx) CreateCustomer(_ context.Context, c models.Customer) (int64, error) {
	for _, existing := range t.st.customers {
		if c.Email != "" && strings.EqualFold(existing.Email, c.Email) {
			return 0, apperr.ErrConflict
		}
	}
	c.ID = t.st.id()
	t.st.customers[c.ID] = c
	return c.ID, nil
}

func (t *tx) Customer(_ context.Context, id int64) (models.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return models.Customer{}, apperr.ErrCustomerNotFound
	}
	return c, nil
}

func (t *tx) DeleteCustomer(_ context.Context, id int64) error {
	if _, ok := t.st.customers[id]; !ok {
		return apperr.ErrCustomerNotFound
	}
	delete(t.st.customers, id)
	for cid, c := range t.st.carts {
		if c.CustomerID != id {
			continue
		}
		for lid, l := range t.st.cartLines {
			if l.CartID == cid {
				delete(t.st.cartLines, lid)
			}
		}
		delete(t.st.carts, cid)
	}
	for oid, o := range t.st.orders {
		if o.CustomerID == id {
			delete(t.st.orders, oid)
		}
	}
	return nil
}

// Carts

func (t *tx) CreateCart(_ context.Context, customerID int64) (int64, error) {
	for _, c := range t.st.carts {
		if c.CustomerID == customerID {
			return 0, apperr.ErrConflict
		}
	}
	id := t.st.id()
	t.st.carts[id] = cartRow{ID: id, CustomerID: customerID}
	return id, nil
}

func (t *tx) CartByCustomer(_ context.Context, customerID int64) (models.Cart, error) {
	for _, c := range t.st.carts {
		if c.CustomerID != customerID {
			continue
		}
		cart := models.Cart{ID: c.ID, CustomerID: c.CustomerID, Lines: []models.CartLine{}}
		for _, l := range t.st.cartLines {
			if l.CartID == c.ID {
				cart.Lines = append(cart.Lines, l)
			}
		}
		sort.Slice(cart.Lines, func(i, j int) bool { return cart.Lines[i].ID < cart.Lines[j].ID })
		return cart, nil
	}
	return models.Cart{}, apperr.ErrCartNotFound
}

func (t *tx) CartLine(_ context.Context, lineID int64) (models.CartLine, error) {
	l, ok := t.st.cartLines[lineID]
	if !ok {
		return models.CartLine{}, apperr.ErrCartLineNotFound
	}
	return l, nil
}

func (t *tx) InsertCartLine(_ context.Context, line models.CartLine) (int64, error) {
	if _, ok := t.st.carts[line.CartID]; !ok {
		return 0, apperr.ErrCartNotFound
	}
	line.ID = t.st.id()
	t.st.cartLines[line.ID] = line
	return line.ID, nil
}

func (t *tx) UpdateCartLine(_ context.Context, line models.CartLine) error {
	if _, ok := t.st.cartLines[line.ID]; !ok {
		return apperr.ErrCartLineNotFound
	}
	t.st.cartLines[line.ID] = line
	return nil
}

func (t *tx) DeleteCartLine(_ context.Context, lineID int64) error {
	if _, ok := t.st.cartLines[lineID]; !ok {
		return apperr.ErrCartLineNotFound
	}
	delete(t.st.cartLines, lineID)
	return nil
}

func (t *tx) ClearCart(_ context.Context, cartID int64) error {
	for lid, l := range t.st.cartLines {
		if l.CartID == cartID {
			delete(t.st.cartLines, lid)
		}
	}
	return nil
}

// Orders

func (t *tx) InsertOrder(_ context.Context, o models.Order) (models.Order, error) {
	if o.Payment.PaymentID != "" && t.paymentUsed(o.Payment.PaymentID) {
		return models.Order{}, apperr.ErrConflict
	}
	o = cloneOrder(o)
	o.ID = t.st.id()
	for i := range o.Lines {
		o.Lines[i].ID = t.st.id()
		o.Lines[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (t *tx) paymentUsed(paymentID string) bool {
	for _, o := range t.st.orders {
		if o.Payment.PaymentID == paymentID {
			return true
		}
	}
	for _, h := range t.st.history {
		if h.PaymentID == paymentID {
			return true
		}
	}
	return false
}

func (t *tx) Order(_ context.Context, id int64) (models.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return models.Order{}, apperr.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *tx) OrdersByCustomer(_ context.Context, customerID int64) ([]models.Order, error) {
	return t.selectOrders(func(o models.Order) bool { return o.CustomerID == customerID }), nil
}

func (t *tx) Orders(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	return t.selectOrders(func(o models.Order) bool { return status == "" || o.Status == status }), nil
}

func (t *tx) selectOrders(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range t.st.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateOrder persists the mutable header fields. Lines are fixed at insert.
func (t *tx) UpdateOrder(_ context.Context, o models.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return apperr.ErrOrderNotFound
	}
	cur.Status = o.Status
	cur.Delivery = o.Delivery
	cur.Delivery.Latitude = copyFloat(o.Delivery.Latitude)
	cur.Delivery.Longitude = copyFloat(o.Delivery.Longitude)
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.st.orders[id]; !ok {
		return apperr.ErrOrderNotFound
	}
	delete(t.st.orders, id)
	return nil
}

// History

func (t *tx) InsertHistory(_ context.Context, h models.OrderHistory) (int64, error) {
	for _, existing := range t.st.history {
		if existing.SourceOrderID == h.SourceOrderID {
			return 0, apperr.ErrConflict
		}
	}
	h = cloneHistory(h)
	h.ID = t.st.id()
	for i := range h.Lines {
		h.Lines[i].ID = t.st.id()
		h.Lines[i].HistoryID = h.ID
	}
	t.st.history[h.ID] = h
	return h.ID, nil
}

func (t *tx) HistoryByCustomer(_ context.Context, customerID int64) ([]models.OrderHistory, error) {
	return t.selectHistory(func(h models.OrderHistory) bool { return h.CustomerID == customerID }), nil
}

func (t *tx) HistoryBySourceOrder(_ context.Context, orderID int64) (models.OrderHistory, error) {
	for _, h := range t.st.history {
		if h.SourceOrderID == orderID {
			return cloneHistory(h), nil
		}
	}
	return models.OrderHistory{}, apperr.ErrHistoryNotFound
}

func (t *tx) History(_ context.Context) ([]models.OrderHistory, error) {
	return t.selectHistory(func(models.OrderHistory) bool { return true }), nil
}

func (t *tx) selectHistory(keep func(models.OrderHistory) bool) []models.OrderHistory {
	out := []models.OrderHistory{}
	for _, h := range t.st.history {
		if keep(h) {
			out = append(out, cloneHistory(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *tx) CountHistoryLines(_ context.Context, itemID int64) (int, error) {
	n := 0
	for _, h := range t.st.history {
		for _, l := range h.Lines {
			if l.ItemID != nil && *l.ItemID == itemID {
				n++
			}
		}
	}
	return n, nil
}

// Coupons

func (t *tx) CouponByCode(_ context.Context, code string) (models.Coupon, error) {
	for _, c := range t.st.coupons {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return models.Coupon{}, apperr.ErrCouponNotFound
}

func (t *tx) CreateCoupon(ctx context.Context, c models.Coupon) (int64, error) {
	if _, err := t.CouponByCode(ctx, c.Code); err == nil {
		return 0, apperr.ErrConflict
	}
	c.ID = t.st.id()
	t.st.coupons[c.ID] = c
	return c.ID, nil
}

func (t *tx) IncrementCouponUsage(_ context.Context, id int64) error {
	c, ok := t.st.coupons[id]
	if !ok {
		return apperr.ErrCouponNotFound
	}
	c.UsageCount++
	t.st.coupons[id] = c
	return nil
}

func cloneItem(it models.Item) models.Item {
	it.WeightPrices = maps.Clone(it.WeightPrices)
	return it
}

func cloneOrder(o models.Order) models.Order {
	o.Delivery.Latitude = copyFloat(o.Delivery.Latitude)
	o.Delivery.Longitude = copyFloat(o.Delivery.Longitude)
	o.Lines = slices.Clone(o.Lines)
	for i := range o.Lines {
		o.Lines[i].ItemID = copyID(o.Lines[i].ItemID)
	}
	return o
}

func cloneHistory(h models.OrderHistory) models.OrderHistory {
	h.Delivery.Latitude = copyFloat(h.Delivery.Latitude)
	h.Delivery.Longitude = copyFloat(h.Delivery.Longitude)
	h.Lines = slices.Clone(h.Lines)
	for i := range h.Lines {
		h.Lines[i].ItemID = copyID(h.Lines[i].ItemID)
	}
	return h
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
