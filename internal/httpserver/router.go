package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/metrics"
	ordersvc "marketplace-checkout/internal/service/order"
)

type CartService interface {
	AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error)
	GetCart(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetCartTotal(ctx context.Context, userID string) (domain.CartTotal, error)
	UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error)
	RemoveFromCart(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type OrderService interface {
	Checkout(ctx context.Context, userID string, in ordersvc.CheckoutInput) (*domain.Order, error)
	QueueCheckout(ctx context.Context, userID string, in ordersvc.CheckoutInput) (ordersvc.QueueResult, error)
	CreateOrder(ctx context.Context, buyerID string, in ordersvc.CreateOrderInput) (*domain.Order, error)
	FindOne(ctx context.Context, id string) (*domain.Order, error)
	FindByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, in ordersvc.UpdateStatusInput) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) (*domain.Order, error)
}

type Deps struct {
	CartSvc      CartService
	OrderSvc     OrderService
	CheckoutMode string
	CORSOrigins  []string
	Metrics      *metrics.Metrics
	Readiness    []ReadinessCheck
}

// buildRouter wires routes for the API.
func buildRouter(l *slog.Logger, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil || deps.OrderSvc == nil {
		return nil, errors.New("cart and order services are required")
	}
	switch deps.CheckoutMode {
	case "":
		deps.CheckoutMode = config.CheckoutModeSaga
	case config.CheckoutModeSaga, config.CheckoutModeQueue:
	default:
		return nil, errors.New("unknown checkout mode " + deps.CheckoutMode)
	}
	l = logger.OrDiscard(l)

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestID(), requestLogger(l), gin.Recovery(), observe(deps.Metrics))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Readiness))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handlers{cart: deps.CartSvc, orders: deps.OrderSvc, mode: deps.CheckoutMode, logger: l}

	cart := router.Group("/cart", requireUser())
	cart.GET("", h.getCart)
	cart.GET("/total", h.getCartTotal)
	cart.POST("/items", h.addToCart)
	cart.PATCH("/items/:productId", h.updateCartItem)
	cart.DELETE("/items/:productId", h.removeFromCart)
	cart.DELETE("", h.clearCart)
	cart.POST("/checkout", h.checkout)

	orders := router.Group("/orders", requireUser())
	orders.POST("", h.createOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.PATCH("/:id/status", h.updateStatus)
	orders.PATCH("/:id/payment-status", h.updatePaymentStatus)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", userHeader, requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
