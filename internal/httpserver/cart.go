package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/domain"
	ordersvc "marketplace-checkout/internal/service/order"
)

type handlers struct {
	cart   CartService
	orders OrderService
	mode   string
	logger *slog.Logger
}

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type checkoutRequest struct {
	PaymentMethod   string `json:"paymentMethod" binding:"required,oneof=credit_card debit_card pix boleto paypal"`
	Notes           string `json:"notes"`
	ShippingAddress string `json:"shippingAddress"`
	BillingAddress  string `json:"billingAddress"`
}

func (h *handlers) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *handlers) getCart(c *gin.Context) {
	lines, err := h.cart.GetCart(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	c.JSON(http.StatusOK, lines)
}

func (h *handlers) getCartTotal(c *gin.Context) {
	total, err := h.cart.GetCartTotal(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if total.Items == nil {
		total.Items = []domain.CartLine{}
	}
	c.JSON(http.StatusOK, total)
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if !h.bind(c, &req) {
		return
	}
	line, err := h.cart.AddToCart(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if !h.bind(c, &req) {
		return
	}
	line, err := h.cart.UpdateCartItem(c.Request.Context(), currentUser(c), c.Param("productId"), req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *handlers) removeFromCart(c *gin.Context) {
	if err := h.cart.RemoveFromCart(c.Request.Context(), currentUser(c), c.Param("productId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.cart.ClearCart(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkout turns the caller's cart into an order, synchronously or through the payment queue.
func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if !h.bind(c, &req) {
		return
	}
	in := ordersvc.CheckoutInput{
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}

	if h.mode == config.CheckoutModeQueue {
		res, err := h.orders.QueueCheckout(c.Request.Context(), currentUser(c), in)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, res)
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), currentUser(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
