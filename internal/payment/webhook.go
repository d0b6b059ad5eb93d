package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/eventoh/service-booking/internal/contracts"
)

const eventCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Confirmation is a verified payment for a booking.
type Confirmation struct {
	BookingID uuid.UUID
	Kind      string
	SessionID string
	Amount    int64
}

// WebhookVerifier checks Stripe signatures and extracts booking confirmations.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the endpoint's signing secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifies payload and returns the confirmation it carries. ok is false for
// events that are not relevant to bookings.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (conf Confirmation, ok bool, err error) {
	if v.secret == "" {
		return Confirmation{}, false, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Confirmation{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if string(event.Type) != eventCheckoutCompleted {
		return Confirmation{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Confirmation{}, false, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Confirmation{}, false, nil
	}

	raw, found := sess.Metadata["booking_id"]
	if !found {
		return Confirmation{}, false, nil
	}
	bookingID, err := uuid.Parse(raw)
	if err != nil {
		return Confirmation{}, false, fmt.Errorf("invalid booking_id metadata %q: %w", raw, err)
	}

	kind := sess.Metadata["payment_kind"]
	if kind == "" {
		kind = contracts.PaymentKindRemaining
	}
	return Confirmation{
		BookingID: bookingID,
		Kind:      kind,
		SessionID: sess.ID,
		Amount:    sess.AmountTotal,
	}, true, nil
}
