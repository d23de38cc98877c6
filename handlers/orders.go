package handlers

import (
	"log/slog"
	"net/http"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/orders"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// PlaceOrder checks out the caller's cart against a gateway payment confirmation.
func (h *Handler) PlaceOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	id, ok := customerID(c)
	if !ok {
		return
	}
	var req orders.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.s.Orders.PlaceOrder(c.Request.Context(), id, req)
	if err != nil {
		respondErr(c, "error placing order", err)
		return
	}
	slog.Info("order placed", slog.String(logkey.TraceID, traceId),
		slog.Int64(logkey.OrderID, o.ID), slog.Int64(logkey.CustomerID, id))
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) MyOrders(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	list, err := h.s.Orders.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "error listing orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) MyOrder(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.s.Orders.GetOrder(c.Request.Context(), orderID)
	if err == nil && !o.OwnedBy(id) {
		err = apperr.E("orders.GetOrder", apperr.ErrUnauthorized, orderID)
	}
	if err != nil {
		respondErr(c, "error fetching order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req orders.AddressUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.s.Orders.UpdateAddress(c.Request.Context(), orderID, id, req)
	if err != nil {
		respondErr(c, "error updating delivery address", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.s.Orders.Cancel(c.Request.Context(), orderID, id); err != nil {
		respondErr(c, "error cancelling order", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MyHistory(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	list, err := h.s.History.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "error listing order history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}
