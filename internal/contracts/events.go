// Package contracts holds the event payloads exchanged over Kafka.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Booking event types.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingPaid          = "booking.paid"
	BookingAdvancePaid   = "booking.advance_paid"
	BookingRefunded      = "booking.refunded"
	BookingReminderSent  = "booking.reminder_sent"
	VendorRegistered     = "vendor.registered"
	VendorUnitVerified   = "vendor.unit_verified"
)

// Payment event types consumed from the payment service.
const (
	PaymentCheckoutCompleted = "payment.checkout_completed"
	PaymentRefunded          = "payment.refunded"
)

// Payment kinds carried in checkout metadata.
const (
	PaymentKindAdvance   = "advance"
	PaymentKindRemaining = "remaining"
)

// BookingCreatedEvent is published when a booking is admitted.
type BookingCreatedEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	VendorID      uuid.UUID  `json:"vendor_id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	UnitID        *uuid.UUID `json:"unit_id,omitempty"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	TotalCents    int64      `json:"total_cents"`
	AdvanceCents  int64      `json:"advance_cents"`
	Currency      string     `json:"currency"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BookingStatusChangedEvent is published on every lifecycle transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ChangedBy     uuid.UUID `json:"changed_by"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingPaymentEvent is published when the payment status of a booking moves.
type BookingPaymentEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	PaymentStatus string    `json:"payment_status"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReminderSentEvent is published after an overdue reminder goes out.
type ReminderSentEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	BookingNumber  string    `json:"booking_number"`
	CustomerID     uuid.UUID `json:"customer_id"`
	RemainingCents int64     `json:"remaining_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// VendorEvent is published on vendor registration and unit verification.
type VendorEvent struct {
	VendorID   uuid.UUID  `json:"vendor_id"`
	UserID     uuid.UUID  `json:"user_id"`
	VendorType string     `json:"vendor_type"`
	UnitID     *uuid.UUID `json:"unit_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PaymentConfirmedEvent is consumed from the payment service.
type PaymentConfirmedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	PaymentKind string    `json:"payment_kind"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference"`
	OccurredAt  time.Time `json:"occurred_at"`
}
