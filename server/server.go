// Package server assembles the storefront HTTP API.
package server

import (
	"candle-shop/auth"
	"candle-shop/handlers"
	"candle-shop/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const ServiceName = "candle-shop"

type Handlers struct {
	Auth     *handlers.AuthHandler
	Products *handlers.ProductHandler
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
}

func NewRouter(h Handlers, tokens *auth.TokenManager, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// otelgin must run first so later middleware sees the span.
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.ErrorHandler(logger))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	requireAuth := middleware.RequireAuth(tokens)
	requireAdmin := middleware.RequireAdmin()

	authRoutes := router.Group("/auth")
	authRoutes.POST("/register", h.Auth.Register)
	authRoutes.POST("/login", h.Auth.Login)
	authRoutes.GET("/me", requireAuth, h.Auth.Me)
	authRoutes.PUT("/profile", requireAuth, h.Auth.UpdateProfile)
	authRoutes.GET("/users", requireAuth, requireAdmin, h.Auth.ListUsers)
	authRoutes.DELETE("/users/:id", requireAuth, requireAdmin, h.Auth.DeleteUser)

	products := router.Group("/products")
	products.GET("", h.Products.GetProducts)
	products.GET("/featured", h.Products.GetFeatured)
	products.GET("/:id", h.Products.GetProduct)
	products.POST("", requireAuth, requireAdmin, h.Products.CreateProduct)
	products.PUT("/:id", requireAuth, requireAdmin, h.Products.UpdateProduct)
	products.DELETE("/:id", requireAuth, requireAdmin, h.Products.DeleteProduct)
	products.POST("/:id/reviews", requireAuth, h.Products.CreateReview)

	orders := router.Group("/orders", requireAuth)
	orders.POST("", h.Orders.CreateOrder)
	orders.GET("/myorders", h.Orders.GetMyOrders)
	orders.GET("/:id", h.Orders.GetOrder)
	orders.PUT("/:id/pay", h.Orders.PayOrder)
	orders.GET("", requireAdmin, h.Orders.GetOrders)
	orders.PUT("/:id/deliver", requireAdmin, h.Orders.DeliverOrder)
	orders.PUT("/:id/status", requireAdmin, h.Orders.UpdateStatus)

	payments := router.Group("/payments")
	payments.GET("/config", h.Payments.GetConfig)
	payments.POST("/mock/process", requireAuth, h.Payments.ProcessMockPayment)
	payments.POST("/mock/refund", requireAuth, requireAdmin, h.Payments.RefundMockPayment)

	return router
}
