package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/application"
)

// ErrNotConfigured is returned when no Stripe secret key was provided.
var ErrNotConfigured = errors.New("stripe is not configured")

// StripeGateway opens Stripe Checkout sessions.
type StripeGateway struct {
	client *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a gateway bound to the given secret key.
func NewStripeGateway(secretKey string, logger *zap.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	sc := client.New(secretKey, nil)
	logger.Info("stripe client initialized")
	return &StripeGateway{client: sc, logger: logger}, nil
}

// CreateCheckoutSession implements application.PaymentGateway and returns the hosted checkout URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req application.CheckoutRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("invalid checkout amount: %d", req.AmountCents)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error("failed to create checkout session", zap.Error(err))
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}

	g.logger.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.Int64("amount", req.AmountCents),
		zap.String("booking_id", req.Metadata["booking_id"]),
	)
	return sess.URL, nil
}
