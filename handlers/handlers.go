package handlers

import (
	"net/http"
	"os"

	"fulfillment-service/internal/auth"
	"fulfillment-service/internal/cart"
	"fulfillment-service/internal/coupons"
	"fulfillment-service/internal/customers"
	"fulfillment-service/internal/history"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/orders"
	"fulfillment-service/middleware"

	"github.com/gin-gonic/gin"
)

// Services bundles the domain services the HTTP layer dispatches to.
type Services struct {
	Cart      *cart.Conf
	Orders    *orders.Conf
	History   *history.Conf
	Inventory *inventory.Conf
	Coupons   *coupons.Conf
	Customers *customers.Conf
}

type Handler struct {
	s Services
}

func NewHandler(s Services) *Handler {
	return &Handler{s: s}
}

func API(endpointPrefix string, k *auth.Keys, s Services) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(k)
	if err != nil {
		panic(err)
	}

	h := NewHandler(s)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.Use(m.Authentication())

		v1.GET("/customers/me", m.Authorize(h.Me, auth.RoleUser))

		v1.GET("/cart", m.Authorize(h.GetCart, auth.RoleUser))
		v1.DELETE("/cart", m.Authorize(h.ClearCart, auth.RoleUser))
		v1.POST("/cart/lines", m.Authorize(h.AddCartLine, auth.RoleUser))
		v1.PATCH("/cart/lines/:id", m.Authorize(h.UpdateCartLine, auth.RoleUser))
		v1.DELETE("/cart/lines/:id", m.Authorize(h.RemoveCartLine, auth.RoleUser))

		v1.POST("/orders", m.Authorize(h.PlaceOrder, auth.RoleUser))
		v1.GET("/orders", m.Authorize(h.MyOrders, auth.RoleUser))
		v1.GET("/orders/:id", m.Authorize(h.MyOrder, auth.RoleUser))
		v1.PATCH("/orders/:id/address", m.Authorize(h.UpdateAddress, auth.RoleUser))
		v1.POST("/orders/:id/cancel", m.Authorize(h.CancelOrder, auth.RoleUser))
		v1.GET("/history", m.Authorize(h.MyHistory, auth.RoleUser))

		v1.POST("/coupons/calculate", m.Authorize(h.CalculateDiscount, auth.RoleUser))
		v1.POST("/coupons/apply", m.Authorize(h.ApplyCoupon, auth.RoleUser))
	}

	admin := r.Group(endpointPrefix + "/admin")
	{
		admin.Use(m.Authentication())

		admin.GET("/orders", m.Authorize(h.AllOrders, auth.RoleAdmin))
		admin.PATCH("/orders/:id/status", m.Authorize(h.UpdateStatus, auth.RoleAdmin))
		admin.POST("/orders/:id/archive", m.Authorize(h.ArchiveOrder, auth.RoleAdmin))

		admin.GET("/history", m.Authorize(h.AllHistory, auth.RoleAdmin))
		admin.GET("/history/orders/:id", m.Authorize(h.HistoryForOrder, auth.RoleAdmin))
		admin.POST("/history/archive", m.Authorize(h.BulkArchive, auth.RoleAdmin))

		admin.POST("/items", m.Authorize(h.CreateItem, auth.RoleAdmin))
		admin.GET("/items/:id", m.Authorize(h.GetItem, auth.RoleAdmin))
		admin.DELETE("/items/:id", m.Authorize(h.DeleteItem, auth.RoleAdmin))
		admin.POST("/items/:id/restock", m.Authorize(h.RestockItem, auth.RoleAdmin))

		admin.POST("/coupons", m.Authorize(h.CreateCoupon, auth.RoleAdmin))

		admin.POST("/customers", m.Authorize(h.RegisterCustomer, auth.RoleAdmin))
		admin.DELETE("/customers/:id", m.Authorize(h.DeleteCustomer, auth.RoleAdmin))
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
