package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ActiveBookingFinder lists the pending or confirmed bookings of a vendor.
// A nil unitID returns every active booking of the vendor.
type ActiveBookingFinder interface {
	FindActiveByVendor(ctx context.Context, vendorID uuid.UUID, unitID *uuid.UUID) ([]*Booking, error)
}

// AvailabilityChecker decides whether a date range is free for a vendor or unit.
// Callers that insert afterwards must hold the vendor/unit lock across check and insert.
type AvailabilityChecker struct {
	finder ActiveBookingFinder
}

// NewAvailabilityChecker creates an AvailabilityChecker.
func NewAvailabilityChecker(finder ActiveBookingFinder) *AvailabilityChecker {
	return &AvailabilityChecker{finder: finder}
}

// FindConflict returns the first active booking overlapping dates, or nil.
func (c *AvailabilityChecker) FindConflict(ctx context.Context, vendorID uuid.UUID, unitID *uuid.UUID, dates DateRange) (*Booking, error) {
	existing, err := c.finder.FindActiveByVendor(ctx, vendorID, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active bookings: %w", err)
	}
	for _, b := range existing {
		if !b.BookingStatus().IsActive() {
			continue
		}
		if unitID != nil && (b.UnitID() == nil || *b.UnitID() != *unitID) {
			continue
		}
		if b.Dates().Overlaps(dates) {
			return b, nil
		}
	}
	return nil, nil
}

// HasConflict reports whether dates overlap an active booking.
func (c *AvailabilityChecker) HasConflict(ctx context.Context, vendorID uuid.UUID, unitID *uuid.UUID, dates DateRange) (bool, error) {
	b, err := c.FindConflict(ctx, vendorID, unitID, dates)
	if err != nil {
		return false, err
	}
	return b != nil, nil
}
