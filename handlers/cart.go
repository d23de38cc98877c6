package handlers

import (
	"log/slog"
	"net/http"

	"fulfillment-service/internal/cart"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	cust, err := h.s.Customers.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "error fetching customer", err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) GetCart(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	ct, err := h.s.Cart.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "error fetching cart", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) AddCartLine(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	id, ok := customerID(c)
	if !ok {
		return
	}
	var req cart.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ct, err := h.s.Cart.AddLine(c.Request.Context(), id, req)
	if err != nil {
		respondErr(c, "error adding item to cart", err)
		return
	}
	slog.Info("item added to cart", slog.String(logkey.TraceID, traceId),
		slog.Int64(logkey.CustomerID, id), slog.Int64(logkey.ItemID, req.ItemID), slog.Int("Quantity", req.Quantity))
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) UpdateCartLine(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	lineID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ct, err := h.s.Cart.UpdateLine(c.Request.Context(), id, lineID, req.Quantity)
	if err != nil {
		respondErr(c, "error updating cart line", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) RemoveCartLine(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	lineID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ct, err := h.s.Cart.RemoveLine(c.Request.Context(), id, lineID)
	if err != nil {
		respondErr(c, "error removing cart line", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) ClearCart(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}
	if err := h.s.Cart.Clear(c.Request.Context(), id); err != nil {
		respondErr(c, "error clearing cart", err)
		return
	}
	c.Status(http.StatusNoContent)
}
