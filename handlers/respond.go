package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/auth"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// statusOf maps domain sentinels to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidationFailed), errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusBadRequest
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrDuplicatePayment),
		errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrConflict),
		apperr.IsInventoryError(err):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUsageLimitReached):
		return http.StatusConflict
	case apperr.IsCouponError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// publicMessage drops the operation prefix so clients see the domain reason.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return http.StatusText(status)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Err.Error()
	}
	return err.Error()
}

func respondErr(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	} else {
		slog.Info(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"message": publicMessage(err, status)})
}

func badRequest(c *gin.Context, err error) {
	slog.Error("invalid request body", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
}

// customerID reads the caller's customer id from the token subject.
func customerID(c *gin.Context) (int64, bool) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": http.StatusText(http.StatusUnauthorized)})
		return 0, false
	}
	id, err := claims.CustomerID()
	if err != nil {
		slog.Error("bad subject", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": http.StatusText(http.StatusUnauthorized)})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}
