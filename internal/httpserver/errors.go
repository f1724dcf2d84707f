package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-checkout/internal/domain"
	ordersvc "marketplace-checkout/internal/service/order"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	OrderID    string `json:"orderId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, l *slog.Logger, err error) {
	// The charge went through; a retryable status would invite a second payment.
	var stockErr *ordersvc.StockDecrementError
	if errors.As(err, &stockErr) {
		l.ErrorContext(c.Request.Context(), "checkout completed with stock error",
			"order_id", stockErr.OrderID, "product_id", stockErr.ProductID, "err", stockErr.Err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			StatusCode: http.StatusInternalServerError,
			Error:      http.StatusText(http.StatusInternalServerError),
			Message:    err.Error(),
			OrderID:    stockErr.OrderID,
			RequestID:  c.GetString(requestIDKey),
		})
		return
	}

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		l.ErrorContext(c.Request.Context(), "unhandled error", "path", c.FullPath(), "err", err)
		msg = "internal error"
	}
	abortWithError(c, status, msg)
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    msg,
		RequestID:  c.GetString(requestIDKey),
	})
}
