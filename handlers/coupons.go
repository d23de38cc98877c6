package handlers

import (
	"log/slog"
	"net/http"

	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type couponRequest struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) CalculateDiscount(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.s.Coupons.CalculateDiscount(c.Request.Context(), req.Code, req.Amount)
	if err != nil {
		respondErr(c, "coupon rejected", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ApplyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.s.Coupons.ApplyCoupon(c.Request.Context(), req.Code, req.Amount)
	if err != nil {
		respondErr(c, "coupon rejected", err)
		return
	}
	slog.Info("coupon applied", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.String(logkey.Coupon, d.Code))
	c.JSON(http.StatusOK, d)
}
