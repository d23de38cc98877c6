package handlers

import (
	"log/slog"
	"net/http"

	"fulfillment-service/internal/coupons"
	"fulfillment-service/internal/customers"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AllOrders(c *gin.Context) {
	var status models.OrderStatus
	if q := c.Query("status"); q != "" {
		s, err := models.ParseStatus(q)
		if err != nil {
			respondErr(c, "bad status filter", err)
			return
		}
		status = s
	}
	list, err := h.s.Orders.ListAll(c.Request.Context(), status)
	if err != nil {
		respondErr(c, "error listing orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.s.Orders.UpdateStatus(c.Request.Context(), orderID, models.OrderStatus(req.Status))
	if err != nil {
		respondErr(c, "error updating order status", err)
		return
	}
	slog.Info("order status updated", slog.String(logkey.TraceID, traceId),
		slog.Int64(logkey.OrderID, orderID), slog.String(logkey.Status, string(o.Status)))
	c.JSON(http.StatusOK, o)
}

func (h *Handler) ArchiveOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.s.History.ArchiveOrder(c.Request.Context(), orderID)
	if err != nil {
		respondErr(c, "error archiving order", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// BulkArchive reports partial success: archived orders stay archived even
// when others fail.
func (h *Handler) BulkArchive(c *gin.Context) {
	n, err := h.s.History.BulkArchive(c.Request.Context())
	if err != nil {
		slog.Error("bulk archive incomplete", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
			slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusMultiStatus, gin.H{"archived": n, "message": "some orders could not be archived"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": n})
}

func (h *Handler) AllHistory(c *gin.Context) {
	list, err := h.s.History.ListAll(c.Request.Context())
	if err != nil {
		respondErr(c, "error listing order history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

func (h *Handler) HistoryForOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.s.History.BySourceOrder(c.Request.Context(), orderID)
	if err != nil {
		respondErr(c, "error fetching order history", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) CreateItem(c *gin.Context) {
	var req inventory.NewItem
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.s.Inventory.AddItem(c.Request.Context(), req)
	if err != nil {
		respondErr(c, "error creating item", err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) GetItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	it, err := h.s.Inventory.Item(c.Request.Context(), itemID)
	if err != nil {
		respondErr(c, "error fetching item", err)
		return
	}
	referenced, err := h.s.History.IsItemReferenced(c.Request.Context(), itemID)
	if err != nil {
		respondErr(c, "error checking item history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": it, "in_history": referenced})
}

// DeleteItem refuses while live orders hold the item; archived lines keep
// their snapshot and lose only the reference.
func (h *Handler) DeleteItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.s.Inventory.RemoveItem(c.Request.Context(), itemID); err != nil {
		respondErr(c, "error deleting item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RestockItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Quantity int            `json:"quantity"`
		Variant  models.Variant `json:"variant"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.s.Inventory.Restore(c.Request.Context(), itemID, req.Quantity, req.Variant)
	if err != nil {
		respondErr(c, "error restocking item", err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	var req coupons.NewCoupon
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cp, err := h.s.Coupons.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		respondErr(c, "error creating coupon", err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

func (h *Handler) RegisterCustomer(c *gin.Context) {
	var req customers.NewCustomer
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cust, err := h.s.Customers.Register(c.Request.Context(), req)
	if err != nil {
		respondErr(c, "error registering customer", err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.s.Customers.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, "error deleting customer", err)
		return
	}
	c.Status(http.StatusNoContent)
}
