package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/httpclient"
	"marketplace-checkout/internal/resilience"
)

type Client struct {
	http   *httpclient.Client
	exec   *resilience.Executor
	policy resilience.Policy
}

func NewClient(hc *httpclient.Client, exec *resilience.Executor, policy resilience.Policy) *Client {
	return &Client{http: hc, exec: exec, policy: policy}
}

type processRequest struct {
	OrderID       string      `json:"orderId"`
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
	BuyerID       string      `json:"buyerId"`
}

// ProcessPayment charges the buyer. An explicit rejection is ErrPaymentFailed and
// is never retried; transport and 5xx failures end as ErrServiceUnavailable.
func (c *Client) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	body := processRequest{
		OrderID:       req.OrderID,
		Amount:        json.Number(req.Amount.StringFixed(2)),
		PaymentMethod: req.PaymentMethod,
		BuyerID:       req.BuyerID,
	}
	return resilience.Do(ctx, c.exec, "payments.process", c.policy,
		func(ctx context.Context) (domain.PaymentResult, error) {
			var res domain.PaymentResult
			err := c.http.DoJSON(ctx, http.MethodPost, "/payments/process", body, &res)
			var se *httpclient.StatusError
			if errors.As(err, &se) && se.Code == http.StatusBadRequest {
				msg := se.Message()
				if msg == "" {
					msg = "payment rejected"
				}
				return res, resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrPaymentFailed, msg))
			}
			if err != nil {
				return res, err
			}
			if rejected(res.Status) {
				msg := res.Message
				if msg == "" {
					msg = "payment " + res.Status
				}
				return res, resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrPaymentFailed, msg))
			}
			return res, nil
		},
		func(_ context.Context, err error) (domain.PaymentResult, error) {
			if errors.Is(err, domain.ErrPaymentFailed) {
				return domain.PaymentResult{}, err
			}
			return domain.PaymentResult{}, fmt.Errorf("%w: payments: %v", domain.ErrServiceUnavailable, err)
		})
}

func rejected(status string) bool {
	switch strings.ToLower(status) {
	case "failed", "declined", "rejected":
		return true
	}
	return false
}
