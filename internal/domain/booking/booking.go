package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	vendorID      uuid.UUID
	customerID    uuid.UUID
	unitID        *uuid.UUID
	packageID     *uuid.UUID
	bookingType   vendor.VendorType
	dates         DateRange

	totalCents   int64
	advanceCents int64
	currency     string

	bookingStatus BookingStatus
	paymentStatus PaymentStatus

	reminderSent   bool
	reminderSentAt *time.Time
	paidAt         *time.Time
	cancelledAt    *time.Time
	notes          string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Draft carries everything needed to open a booking.
type Draft struct {
	VendorID    uuid.UUID
	CustomerID  uuid.UUID
	UnitID      *uuid.UUID
	PackageID   *uuid.UUID
	BookingType vendor.VendorType
	Dates       DateRange
	Quote       Quote
	Currency    string
	Notes       string
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewBooking opens a pending booking. Payment starts as partial when an advance
// is due and pending otherwise.
func NewBooking(d Draft) (*Booking, error) {
	if d.CustomerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if d.VendorID == uuid.Nil {
		return nil, domain.NewValidationError("vendor ID is required")
	}
	if !d.BookingType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid booking type: %s", d.BookingType))
	}
	if (d.BookingType == vendor.TypeVenue) != (d.UnitID != nil) {
		return nil, domain.NewValidationError("a unit is required for venue bookings and not allowed otherwise")
	}
	if d.PackageID != nil && d.BookingType != vendor.TypeEventTeam {
		return nil, domain.NewValidationError("a package is only allowed for event team bookings")
	}
	if d.Dates.Start.IsZero() || d.Dates.End.Before(d.Dates.Start) {
		return nil, domain.NewValidationError("invalid booking dates")
	}
	q := d.Quote
	if q.TotalCents < 0 || q.AdvanceCents < 0 || q.AdvanceCents > q.TotalCents {
		return nil, domain.NewValidationError("advance must be between zero and the total")
	}
	if d.Currency == "" {
		d.Currency = domain.CurrencyINR
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	payment := PaymentPending
	if q.AdvanceCents > 0 {
		payment = PaymentPartial
	}

	now := time.Now().UTC()
	return &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		vendorID:      d.VendorID,
		customerID:    d.CustomerID,
		unitID:        d.UnitID,
		packageID:     d.PackageID,
		bookingType:   d.BookingType,
		dates:         d.Dates,
		totalCents:    q.TotalCents,
		advanceCents:  q.AdvanceCents,
		currency:      d.Currency,
		bookingStatus: StatusPending,
		paymentStatus: payment,
		notes:         d.Notes,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	vendorID, customerID uuid.UUID,
	unitID, packageID *uuid.UUID,
	bookingType vendor.VendorType,
	dates DateRange,
	totalCents, advanceCents int64,
	currency string,
	bookingStatus BookingStatus,
	paymentStatus PaymentStatus,
	reminderSent bool,
	reminderSentAt, paidAt, cancelledAt *time.Time,
	notes string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:             id,
		bookingNumber:  bookingNumber,
		vendorID:       vendorID,
		customerID:     customerID,
		unitID:         unitID,
		packageID:      packageID,
		bookingType:    bookingType,
		dates:          dates,
		totalCents:     totalCents,
		advanceCents:   advanceCents,
		currency:       currency,
		bookingStatus:  bookingStatus,
		paymentStatus:  paymentStatus,
		reminderSent:   reminderSent,
		reminderSentAt: reminderSentAt,
		paidAt:         paidAt,
		cancelledAt:    cancelledAt,
		notes:          notes,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// VendorID returns the booked vendor.
func (b *Booking) VendorID() uuid.UUID { return b.vendorID }

// CustomerID returns the customer who made the booking.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// UnitID returns the booked venue unit, or nil for non-venue bookings.
func (b *Booking) UnitID() *uuid.UUID { return b.unitID }

// PackageID returns the selected event-team package, if any.
func (b *Booking) PackageID() *uuid.UUID { return b.packageID }

// BookingType returns the vendor type captured at creation.
func (b *Booking) BookingType() vendor.VendorType { return b.bookingType }

// Dates returns the booked date range.
func (b *Booking) Dates() DateRange { return b.dates }

// TotalCents returns the total price in minor units.
func (b *Booking) TotalCents() int64 { return b.totalCents }

// AdvanceCents returns the advance in minor units.
func (b *Booking) AdvanceCents() int64 { return b.advanceCents }

// RemainingCents returns total minus advance.
func (b *Booking) RemainingCents() int64 { return b.totalCents - b.advanceCents }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// BookingStatus returns the lifecycle status.
func (b *Booking) BookingStatus() BookingStatus { return b.bookingStatus }

// PaymentStatus returns the payment status.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// ReminderSent reports whether the overdue reminder went out.
func (b *Booking) ReminderSent() bool { return b.reminderSent }

// ReminderSentAt returns when the reminder went out.
func (b *Booking) ReminderSentAt() *time.Time { return b.reminderSentAt }

// PaidAt returns when the booking was fully paid.
func (b *Booking) PaidAt() *time.Time { return b.paidAt }

// CancelledAt returns when the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// Notes returns any additional notes for the booking.
func (b *Booking) Notes() string { return b.notes }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// TransitionTo moves the booking status along the state machine.
func (b *Booking) TransitionTo(target BookingStatus) error {
	if !target.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid booking status: %s", target))
	}
	if !b.bookingStatus.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(b.bookingStatus), string(target))
	}
	now := time.Now().UTC()
	b.bookingStatus = target
	if target == StatusCancelled {
		b.cancelledAt = &now
	}
	b.updatedAt = now
	return nil
}

// Cancel transitions the booking to cancelled if it is still active.
func (b *Booking) Cancel() error {
	return b.TransitionTo(StatusCancelled)
}

// MarkPaid settles the booking: payment becomes paid and the booking completed.
// It returns false without error when the booking is already settled.
func (b *Booking) MarkPaid() (bool, error) {
	if b.paymentStatus == PaymentPaid && b.bookingStatus == StatusCompleted {
		return false, nil
	}
	if b.bookingStatus == StatusCancelled {
		return false, domain.NewInvalidStateError(string(b.bookingStatus), string(StatusCompleted))
	}
	if b.paymentStatus != PaymentPaid && !b.paymentStatus.CanTransitionTo(PaymentPaid) {
		return false, domain.NewInvalidStateError(string(b.paymentStatus), string(PaymentPaid))
	}
	now := time.Now().UTC()
	b.paymentStatus = PaymentPaid
	b.bookingStatus = StatusCompleted
	if b.paidAt == nil {
		b.paidAt = &now
	}
	b.updatedAt = now
	return true, nil
}

// RecordAdvancePaid moves payment from pending to partial. Later states are left alone.
func (b *Booking) RecordAdvancePaid() (bool, error) {
	switch b.paymentStatus {
	case PaymentPartial, PaymentPaid:
		return false, nil
	case PaymentPending:
		b.paymentStatus = PaymentPartial
		b.updatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, domain.NewInvalidStateError(string(b.paymentStatus), string(PaymentPartial))
	}
}

// Refund marks the payment refunded.
func (b *Booking) Refund() error {
	if !b.paymentStatus.CanTransitionTo(PaymentRefunded) {
		return domain.NewInvalidStateError(string(b.paymentStatus), string(PaymentRefunded))
	}
	b.paymentStatus = PaymentRefunded
	b.updatedAt = time.Now().UTC()
	return nil
}

// MarkReminderSent records that the overdue reminder was dispatched. The flag is never reset.
func (b *Booking) MarkReminderSent(at time.Time) {
	if b.reminderSent {
		return
	}
	at = at.UTC()
	b.reminderSent = true
	b.reminderSentAt = &at
	b.updatedAt = at
}

// IsOverdue reports whether the booking ended before today with only the advance paid
// and no reminder sent yet.
func (b *Booking) IsOverdue(today time.Time) bool {
	return b.dates.End.Before(CalendarDate(today)) &&
		b.paymentStatus == PaymentPartial &&
		!b.reminderSent
}

// IsVisibleTo reports whether a customer or vendor account may read the booking.
// vendorOwner is the owning account of the booked vendor.
func (b *Booking) IsVisibleTo(userID, vendorOwner uuid.UUID) bool {
	return b.customerID == userID || vendorOwner == userID
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
