package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventoh/service-booking/internal/domain/vendor"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func dateRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	r, err := ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func venueWithUnit(t *testing.T, pricePerDay int64) (*vendor.Vendor, uuid.UUID) {
	t.Helper()
	units, err := vendor.NewVenueUnits([]vendor.UnitRequest{{Title: "Banquet Hall", Capacity: 200, PricePerDayCents: pricePerDay}})
	require.NoError(t, err)
	v, err := vendor.NewVendor(uuid.New(), vendor.Profile{Name: "Royal Palace", City: "Jaipur"}, vendor.VenueOffering{Units: units})
	require.NoError(t, err)
	return v, units[0].ID
}

func freelancer(t *testing.T, base int64) *vendor.Vendor {
	t.Helper()
	v, err := vendor.NewVendor(uuid.New(), vendor.Profile{Name: "Lens Studio", City: "Pune"},
		vendor.FreelancerOffering{Category: vendor.CategoryPhotographer, Pricing: vendor.Pricing{BasePriceCents: base}})
	require.NoError(t, err)
	return v
}

func newVenueBooking(t *testing.T, start, end string) *Booking {
	t.Helper()
	unitID := uuid.New()
	q, err := SplitTotal(150000, AdvancePercent(vendor.TypeVenue))
	require.NoError(t, err)
	b, err := NewBooking(Draft{
		VendorID:    uuid.New(),
		CustomerID:  uuid.New(),
		UnitID:      &unitID,
		BookingType: vendor.TypeVenue,
		Dates:       dateRange(t, start, end),
		Quote:       q,
	})
	require.NoError(t, err)
	return b
}
