package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OverdueCursor is a keyset position in the overdue listing.
type OverdueCursor struct {
	EndDate time.Time
	ID      uuid.UUID
}

// CursorOf returns the keyset position of b.
func CursorOf(b *Booking) *OverdueCursor {
	return &OverdueCursor{EndDate: b.Dates().End, ID: b.ID()}
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	ActiveBookingFinder

	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCustomerID retrieves a customer's bookings with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByVendorID retrieves a vendor's bookings with pagination.
	FindByVendorID(ctx context.Context, vendorID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// FindOverdue returns partially paid bookings ending before the given date
	// whose reminder has not been sent, ordered by (end date, id). A non-nil
	// cursor resumes strictly after that position.
	FindOverdue(ctx context.Context, endBefore time.Time, after *OverdueCursor, limit int) ([]*Booking, error)

	// CountByStatus returns booking counts grouped by booking status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}
