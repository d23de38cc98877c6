package ctxmanage

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetTraceIdOfRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ping", nil)
	assert.Equal(t, "Unknown", GetTraceIdOfRequest(c))

	c.Request = c.Request.WithContext(WithTraceId(c.Request.Context(), "abc"))
	assert.Equal(t, "abc", GetTraceIdOfRequest(c))
}

func TestTraceIdFromContext(t *testing.T) {
	assert.Equal(t, "Unknown", TraceIdFromContext(context.Background()))
	assert.Equal(t, "t-1", TraceIdFromContext(WithTraceId(context.Background(), "t-1")))
}
