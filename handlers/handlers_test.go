package handlers

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/auth"
	"fulfillment-service/internal/cart"
	"fulfillment-service/internal/coupons"
	"fulfillment-service/internal/customers"
	"fulfillment-service/internal/history"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/orders"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/payment/paymenttest"
	"fulfillment-service/internal/stores/memory"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "rzp_test_secret"

type env struct {
	t      *testing.T
	router *gin.Engine
	priv   *rsa.PrivateKey
	admin  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("GIN_MODE", gin.TestMode)
	gin.SetMode(gin.TestMode)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys, err := auth.NewKeys(&priv.PublicKey)
	require.NoError(t, err)

	store := memory.New()
	verifier, err := payment.NewRazorpayVerifier(secret)
	require.NoError(t, err)

	cartConf, err := cart.NewConf(store)
	require.NoError(t, err)
	orderConf, err := orders.NewConf(store, verifier)
	require.NoError(t, err)
	historyConf, err := history.NewConf(store)
	require.NoError(t, err)
	invConf, err := inventory.NewConf(store)
	require.NoError(t, err)
	couponConf, err := coupons.NewConf(store)
	require.NoError(t, err)
	custConf, err := customers.NewConf(store)
	require.NoError(t, err)

	e := &env{t: t, priv: priv}
	e.router = API("/v1", keys, Services{
		Cart:      &cartConf,
		Orders:    &orderConf,
		History:   &historyConf,
		Inventory: &invConf,
		Coupons:   &couponConf,
		Customers: &custConf,
	})
	e.admin = e.token("1", auth.RoleAdmin)
	return e
}

func (e *env) token(subject string, roles ...string) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}).SignedString(e.priv)
	require.NoError(e.t, err)
	return s
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seedShop creates one cake and one customer and returns the customer's token.
func (e *env) seedShop() (itemID int64, customerToken string) {
	w := e.do(http.MethodPost, "/v1/admin/items", e.admin, map[string]any{
		"name": "Black Forest", "price": "900", "regular_stock": 5, "eggless_stock": 3, "available": true,
		"weight_prices": map[string]string{"1": "1200", "1.5": "1750"},
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.Item](e.t, w)

	w = e.do(http.MethodPost, "/v1/admin/customers", e.admin, map[string]string{"name": "Asha", "email": "asha@example.com"})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	cust := decode[models.Customer](e.t, w)
	return item.ID, e.token(strconv.FormatInt(cust.ID, 10), auth.RoleUser)
}

func confirmation(paymentID string) map[string]any {
	return map[string]any{
		"payment_order_id":  "order_" + paymentID,
		"payment_id":        paymentID,
		"payment_signature": paymenttest.Sign(secret, "order_"+paymentID, paymentID),
		"delivery_address":  "12 MG Road",
		"delivery_phone":    "9876543210",
	}
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestCheckoutToHistory(t *testing.T) {
	e := newEnv(t)
	itemID, user := e.seedShop()

	w := e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 2, "variant": "eggless"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 1, "weight": "1.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ct := decode[models.Cart](t, w)
	require.Len(t, ct.Lines, 2)
	assert.Equal(t, models.VariantEggless, ct.Lines[0].Variant)

	w = e.do(http.MethodPost, "/v1/orders", user, confirmation("pay_1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[models.Order](t, w)
	// 2 x (900 + 30) + 1750
	assert.Equal(t, "3610", o.Total.String())
	assert.Equal(t, models.StatusConfirmed, o.Status)

	w = e.do(http.MethodGet, "/v1/cart", user, nil)
	assert.Empty(t, decode[models.Cart](t, w).Lines)

	w = e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, "/v1/orders", user, confirmation("pay_1"))
	assert.Equal(t, http.StatusConflict, w.Code, "reused payment")
	w = e.do(http.MethodGet, "/v1/cart", user, nil)
	assert.Len(t, decode[models.Cart](t, w).Lines, 1, "failed placement keeps the cart")

	path := fmt.Sprintf("/v1/admin/orders/%d/status", o.ID)
	w = e.do(http.MethodPatch, path, e.admin, map[string]string{"status": "out for delivery"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(http.MethodPatch, path, e.admin, map[string]string{"status": "Confirmed"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = e.do(http.MethodPatch, path, e.admin, map[string]string{"status": "Delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/v1/history", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		History []models.OrderHistory `json:"history"`
	}](t, w)
	require.Len(t, hist.History, 1)
	assert.Equal(t, o.ID, hist.History[0].SourceOrderID)
	assert.Equal(t, "pay_1", hist.History[0].PaymentID)

	w = e.do(http.MethodGet, fmt.Sprintf("/v1/admin/items/%d", itemID), e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_history":true`)
}

func TestCheckoutFailures(t *testing.T) {
	e := newEnv(t)
	itemID, user := e.seedShop()

	w := e.do(http.MethodPost, "/v1/orders", user, confirmation("pay_empty"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperr.ErrEmptyCart.Error())

	w = e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 4, "variant": "eggless"})
	assert.Equal(t, http.StatusConflict, w.Code, "only 3 eggless")

	w = e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	bad := confirmation("pay_2")
	bad["payment_signature"] = "deadbeef"
	w = e.do(http.MethodPost, "/v1/orders", user, bad)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	missing := confirmation("pay_3")
	delete(missing, "delivery_address")
	w = e.do(http.MethodPost, "/v1/orders", user, missing)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 1, "variant": "vegan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelAndAddressRules(t *testing.T) {
	e := newEnv(t)
	itemID, user := e.seedShop()

	w := e.do(http.MethodPost, "/v1/cart/lines", user, map[string]any{"item_id": itemID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, "/v1/orders", user, confirmation("pay_c"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[models.Order](t, w)

	stranger := e.token("999", auth.RoleUser)
	w = e.do(http.MethodPost, fmt.Sprintf("/v1/orders/%d/cancel", o.ID), stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodGet, fmt.Sprintf("/v1/orders/%d", o.ID), stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPatch, fmt.Sprintf("/v1/orders/%d/address", o.ID), user,
		map[string]any{"address": "7 Brigade Road", "phone": "9000000000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "7 Brigade Road", decode[models.Order](t, w).Delivery.Address)

	w = e.do(http.MethodPost, fmt.Sprintf("/v1/orders/%d/cancel", o.ID), user, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = e.do(http.MethodGet, fmt.Sprintf("/v1/admin/items/%d", itemID), e.admin, nil)
	got := decode[struct {
		Item models.Item `json:"item"`
	}](t, w)
	assert.Equal(t, 5, got.Item.RegularStock)

	w = e.do(http.MethodDelete, fmt.Sprintf("/v1/admin/items/%d", itemID), e.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCoupons(t *testing.T) {
	e := newEnv(t)
	_, user := e.seedShop()

	w := e.do(http.MethodPost, "/v1/admin/coupons", e.admin, map[string]any{
		"code": "cap20", "discount_type": "PERCENTAGE", "discount_value": "20",
		"max_discount_amount": "100", "active": true, "usage_limit": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/v1/coupons/calculate", user, map[string]any{"code": "CAP20", "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decode[coupons.Discount](t, w)
	assert.Equal(t, "100", d.Amount.String())
	assert.Equal(t, "900", d.Payable.String())

	w = e.do(http.MethodPost, "/v1/coupons/apply", user, map[string]any{"code": "CAP20", "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, "/v1/coupons/apply", user, map[string]any{"code": "CAP20", "amount": "1000"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPost, "/v1/coupons/calculate", user, map[string]any{"code": "NOPE", "amount": "10"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAuthBoundaries(t *testing.T) {
	e := newEnv(t)
	_, user := e.seedShop()

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/v1/cart", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/v1/admin/orders", user, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/admin/orders?status=confirmed", e.admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/v1/admin/orders?status=lost", e.admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPatch, "/v1/cart/lines/abc", user, map[string]int{"quantity": 1}).Code)

	w := e.do(http.MethodGet, "/v1/customers/me", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asha@example.com", decode[models.Customer](t, w).Email)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.E("op", apperr.ErrOrderNotFound, 1), http.StatusNotFound},
		{apperr.E("op", apperr.ErrInvalidTransition, 1), http.StatusConflict},
		{apperr.E("op", apperr.Wrapf(apperr.ErrInsufficientStock, "x")), http.StatusConflict},
		{apperr.E("op", apperr.ErrValidationFailed), http.StatusBadRequest},
		{apperr.E("op", apperr.ErrPaymentVerificationFailed), http.StatusPaymentRequired},
		{apperr.E("op", apperr.ErrCouponExpired), http.StatusUnprocessableEntity},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
	assert.Equal(t, "Internal Server Error", publicMessage(fmt.Errorf("db down"), http.StatusInternalServerError))
	assert.Equal(t, "order not found", publicMessage(apperr.E("op", apperr.ErrOrderNotFound, 1), http.StatusNotFound))
}
