package booking

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

// PricingStrategy defines the interface for pricing a booking.
type PricingStrategy interface {
	// Quote returns the total and its advance/remaining split in minor units.
	Quote(params PricingParams) (Quote, error)
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	Vendor    *vendor.Vendor
	UnitID    *uuid.UUID
	PackageID *uuid.UUID
	Dates     DateRange
	// ExplicitTotalCents, when positive, replaces the computed total.
	ExplicitTotalCents *int64
}

// Quote is a priced booking. AdvanceCents + RemainingCents == TotalCents.
type Quote struct {
	TotalCents     int64 `json:"total_cents"`
	AdvanceCents   int64 `json:"advance_cents"`
	RemainingCents int64 `json:"remaining_cents"`
	AdvancePercent int   `json:"advance_percent"`
}

// AdvancePercent returns the share of the total charged up front for a vendor type.
func AdvancePercent(t vendor.VendorType) int {
	switch t {
	case vendor.TypeVenue:
		return 40
	case vendor.TypeFreelancer:
		return 25
	case vendor.TypeEventTeam:
		return 50
	default:
		return 30
	}
}

// SplitTotal divides total into advance and remaining. The advance is rounded
// half-up to the nearest minor unit; the remaining amount absorbs the rest.
func SplitTotal(totalCents int64, percent int) (Quote, error) {
	if totalCents < 0 {
		return Quote{}, domain.NewValidationError("total amount cannot be negative")
	}
	if percent < 0 || percent > 100 {
		return Quote{}, domain.NewValidationError(fmt.Sprintf("advance percent out of range: %d", percent))
	}
	advance := (totalCents*int64(percent) + 50) / 100
	return Quote{
		TotalCents:     totalCents,
		AdvanceCents:   advance,
		RemainingCents: totalCents - advance,
		AdvancePercent: percent,
	}, nil
}

// StandardPricingStrategy prices venues per day, freelancers at their base
// price and event teams at the selected package.
type StandardPricingStrategy struct{}

// NewStandardPricingStrategy creates a new StandardPricingStrategy.
func NewStandardPricingStrategy() *StandardPricingStrategy {
	return &StandardPricingStrategy{}
}

// Quote computes the total and split for the given parameters.
func (s *StandardPricingStrategy) Quote(params PricingParams) (Quote, error) {
	if params.Vendor == nil {
		return Quote{}, domain.NewValidationError("vendor is required for pricing")
	}

	total, err := baseTotal(params)
	if err != nil {
		return Quote{}, err
	}
	if params.ExplicitTotalCents != nil && *params.ExplicitTotalCents > 0 {
		total = *params.ExplicitTotalCents
	}

	return SplitTotal(total, AdvancePercent(params.Vendor.Type()))
}

func baseTotal(params PricingParams) (int64, error) {
	switch o := params.Vendor.Offering().(type) {
	case vendor.VenueOffering:
		if params.UnitID == nil {
			return 0, domain.NewValidationError("venue bookings require a unit")
		}
		unit, err := params.Vendor.Unit(*params.UnitID)
		if err != nil {
			return 0, err
		}
		return unit.PricePerDayCents * int64(params.Dates.Days()), nil
	case vendor.FreelancerOffering:
		return o.Pricing.BasePriceCents, nil
	case vendor.EventTeamOffering:
		if params.PackageID == nil {
			return 0, domain.NewValidationError("event team bookings require a package")
		}
		pkg, err := params.Vendor.Package(*params.PackageID)
		if err != nil {
			return 0, err
		}
		return pkg.PriceCents, nil
	default:
		return 0, domain.NewValidationError(fmt.Sprintf("unsupported vendor offering %T", o))
	}
}
