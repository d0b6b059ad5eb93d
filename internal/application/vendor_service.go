package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/contracts"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

// PortfolioFolder is the media folder for a vendor's portfolio images.
func PortfolioFolder(vendorID uuid.UUID) string {
	return "eventoh/vendors/" + vendorID.String()
}

// PackageRequest describes one event-team package.
type PackageRequest struct {
	ID               *uuid.UUID `json:"id"`
	Name             string     `json:"name" binding:"required"`
	Description      string     `json:"description"`
	PriceCents       int64      `json:"price_cents"`
	IncludedServices []string   `json:"included_services"`
	ExcludedServices []string   `json:"excluded_services"`
	MaxGuests        int        `json:"max_guests"`
}

// RegisterVendorRequest holds the data needed to register a vendor.
type RegisterVendorRequest struct {
	Type          string `json:"type" binding:"required"`
	Name          string `json:"name" binding:"required"`
	City          string `json:"city" binding:"required"`
	Description   string `json:"description"`
	ContactNumber string `json:"contact_number"`
	ProfilePhoto  string `json:"profile_photo"`

	// Venue
	Units []vendor.UnitRequest `json:"units"`

	// Freelancer
	Category       string `json:"category"`
	BasePriceCents int64  `json:"base_price_cents"`

	// Event team
	EventTypes []string         `json:"event_types"`
	Packages   []PackageRequest `json:"packages"`
	Note       string           `json:"note"`
}

// UpdateVendorRequest holds optional vendor changes.
type UpdateVendorRequest struct {
	Name           *string          `json:"name"`
	City           *string          `json:"city"`
	Description    *string          `json:"description"`
	ContactNumber  *string          `json:"contact_number"`
	ProfilePhoto   *string          `json:"profile_photo"`
	BasePriceCents *int64           `json:"base_price_cents"`
	Packages       []PackageRequest `json:"packages"`
}

// ListVendorsQuery filters the vendor listing.
type ListVendorsQuery struct {
	Type     string `form:"type"`
	City     string `form:"city"`
	Category string `form:"category"`
}

// VendorDTO is the response representation of a vendor.
type VendorDTO struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	Type          string             `json:"type"`
	Name          string             `json:"name"`
	City          string             `json:"city"`
	Description   string             `json:"description,omitempty"`
	ContactNumber string             `json:"contact_number,omitempty"`
	ProfilePhoto  string             `json:"profile_photo,omitempty"`
	Portfolio     []string           `json:"portfolio"`
	BlockedDates  []string           `json:"blocked_dates"`
	Rating        float64            `json:"rating"`
	TotalReviews  int                `json:"total_reviews"`
	Units         []vendor.VenueUnit `json:"units,omitempty"`
	Category      string             `json:"category,omitempty"`
	Pricing       *vendor.Pricing    `json:"pricing,omitempty"`
	EventTypes    []string           `json:"event_types,omitempty"`
	Packages      []vendor.Package   `json:"packages,omitempty"`
	Note          string             `json:"note,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CommittedRangeDTO is one active booking range of a vendor.
type CommittedRangeDTO struct {
	UnitID    *uuid.UUID `json:"unit_id,omitempty"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Status    string     `json:"status"`
}

// CommittedDatesDTO lists what a vendor is committed to.
type CommittedDatesDTO struct {
	VendorID     uuid.UUID           `json:"vendor_id"`
	Bookings     []CommittedRangeDTO `json:"bookings"`
	BlockedDates []string            `json:"blocked_dates"`
}

// VendorService handles the vendor catalog use cases.
type VendorService struct {
	repo      vendor.VendorRepository
	bookings  bookingDomain.ActiveBookingFinder
	media     MediaStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewVendorService creates a new VendorService.
func NewVendorService(
	repo vendor.VendorRepository,
	bookings bookingDomain.ActiveBookingFinder,
	media MediaStore,
	publisher EventPublisher,
	logger *zap.Logger,
) *VendorService {
	return &VendorService{
		repo:      repo,
		bookings:  bookings,
		media:     media,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterVendor creates the caller's vendor profile. One profile per account.
func (s *VendorService) RegisterVendor(ctx context.Context, ownerID uuid.UUID, req RegisterVendorRequest) (*VendorDTO, error) {
	ctx, span := tracer.Start(ctx, "VendorService.RegisterVendor")
	defer span.End()

	if _, err := s.repo.FindByUserID(ctx, ownerID); err == nil {
		return nil, domain.NewConflictError("this account already has a vendor profile")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	offering, err := buildOffering(req)
	if err != nil {
		return nil, err
	}

	v, err := vendor.NewVendor(ownerID, vendor.Profile{
		Name:          req.Name,
		City:          req.City,
		Description:   req.Description,
		ContactNumber: req.ContactNumber,
		ProfilePhoto:  req.ProfilePhoto,
	}, offering)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("vendor.id", v.ID().String()), attribute.String("vendor.type", string(v.Type())))
	s.logger.Info("vendor registered",
		zap.String("vendor_id", v.ID().String()),
		zap.String("type", string(v.Type())),
		zap.Int("units", len(v.Units())),
	)
	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.VendorRegistered, v.ID().String(),
		contracts.VendorEvent{VendorID: v.ID(), UserID: ownerID, VendorType: string(v.Type()), OccurredAt: time.Now().UTC()})

	return toVendorDTO(v), nil
}

// GetVendor returns a vendor by id.
func (s *VendorService) GetVendor(ctx context.Context, id uuid.UUID) (*VendorDTO, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toVendorDTO(v), nil
}

// GetMyVendor returns the caller's own vendor profile.
func (s *VendorService) GetMyVendor(ctx context.Context, ownerID uuid.UUID) (*VendorDTO, error) {
	v, err := s.repo.FindByUserID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return toVendorDTO(v), nil
}

// GetUnit returns one venue unit.
func (s *VendorService) GetUnit(ctx context.Context, vendorID, unitID uuid.UUID) (*vendor.VenueUnit, error) {
	v, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	unit, err := v.Unit(unitID)
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListVendors returns vendors matching the query.
func (s *VendorService) ListVendors(ctx context.Context, q ListVendorsQuery) ([]*VendorDTO, error) {
	var filter vendor.Filter
	if q.Type != "" {
		t, err := vendor.ParseVendorType(q.Type)
		if err != nil {
			return nil, err
		}
		filter.Type = t
	}
	if q.Category != "" {
		c := vendor.FreelancerCategory(q.Category)
		if !c.IsValid() {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid freelancer category: %s", q.Category))
		}
		filter.Category = c
	}
	filter.City = q.City

	vendors, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]*VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = toVendorDTO(v)
	}
	return dtos, nil
}

// UpdateVendor applies profile and offering changes. Only the owner may edit.
func (s *VendorService) UpdateVendor(ctx context.Context, callerID, vendorID uuid.UUID, req UpdateVendorRequest) (*VendorDTO, error) {
	return s.mutateOwned(ctx, callerID, vendorID, func(v *vendor.Vendor) error {
		if err := v.UpdateProfile(vendor.ProfilePatch{
			Name:          req.Name,
			City:          req.City,
			Description:   req.Description,
			ContactNumber: req.ContactNumber,
			ProfilePhoto:  req.ProfilePhoto,
		}); err != nil {
			return err
		}
		if req.BasePriceCents != nil {
			if err := v.UpdateFreelancerPricing(vendor.Pricing{BasePriceCents: *req.BasePriceCents}); err != nil {
				return err
			}
		}
		if req.Packages != nil {
			if err := v.ReplacePackages(toPackages(req.Packages)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetAvailabilityOverrides replaces the vendor's blocked dates.
func (s *VendorService) SetAvailabilityOverrides(ctx context.Context, callerID, vendorID uuid.UUID, dates []string) (*VendorDTO, error) {
	return s.mutateOwned(ctx, callerID, vendorID, func(v *vendor.Vendor) error {
		return v.SetBlockedDates(dates)
	})
}

// AddVenueUnits appends a bounded batch of units to the caller's venue.
func (s *VendorService) AddVenueUnits(ctx context.Context, callerID, vendorID uuid.UUID, reqs []vendor.UnitRequest) (*VendorDTO, error) {
	units, err := vendor.NewVenueUnits(reqs)
	if err != nil {
		return nil, err
	}
	return s.mutateOwned(ctx, callerID, vendorID, func(v *vendor.Vendor) error {
		return v.AddUnits(units)
	})
}

// VerifyUnit marks a venue unit as verified (admin).
func (s *VendorService) VerifyUnit(ctx context.Context, adminID, vendorID, unitID uuid.UUID) (*vendor.VenueUnit, error) {
	ctx, span := tracer.Start(ctx, "VendorService.VerifyUnit")
	defer span.End()

	v, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	unit, err := v.VerifyUnit(unitID, adminID, time.Now())
	if err != nil {
		return nil, err
	}
	v.IncrementVersion()
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("venue unit verified",
		zap.String("vendor_id", vendorID.String()),
		zap.String("unit_id", unitID.String()),
		zap.String("admin_id", adminID.String()),
	)
	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.VendorUnitVerified, vendorID.String(),
		contracts.VendorEvent{VendorID: vendorID, UserID: v.UserID(), VendorType: string(v.Type()), UnitID: &unitID, OccurredAt: time.Now().UTC()})

	return &unit, nil
}

// UploadPortfolioImage stores an image and appends its URL to the portfolio.
// The upload happens before the vendor is loaded for update; a failed upload
// leaves the vendor untouched.
func (s *VendorService) UploadPortfolioImage(ctx context.Context, callerID, vendorID uuid.UUID, file io.Reader) (*VendorDTO, error) {
	ctx, span := tracer.Start(ctx, "VendorService.UploadPortfolioImage")
	defer span.End()

	v, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if !v.IsOwnedBy(callerID) {
		return nil, domain.NewForbiddenError("vendor does not belong to this user")
	}
	if s.media == nil {
		return nil, domain.NewUnavailableError("media store", nil)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.NewValidationError("could not read uploaded file")
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("uploaded file is empty")
	}

	url, err := s.media.Upload(ctx, bytes.NewReader(data), PortfolioFolder(vendorID))
	if err != nil {
		s.logger.Warn("portfolio upload failed", zap.String("vendor_id", vendorID.String()), zap.Error(err))
		return nil, domain.NewUnavailableError("media store", err)
	}

	return s.mutateOwned(ctx, callerID, vendorID, func(v *vendor.Vendor) error {
		v.AddPortfolioImage(url)
		return nil
	})
}

// CommittedDates lists a vendor's active booking ranges and blocked dates.
func (s *VendorService) CommittedDates(ctx context.Context, vendorID uuid.UUID, unitID *uuid.UUID) (*CommittedDatesDTO, error) {
	v, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	active, err := s.bookings.FindActiveByVendor(ctx, vendorID, unitID)
	if err != nil {
		return nil, err
	}

	ranges := make([]CommittedRangeDTO, len(active))
	for i, b := range active {
		ranges[i] = CommittedRangeDTO{
			UnitID:    b.UnitID(),
			StartDate: b.Dates().StartString(),
			EndDate:   b.Dates().EndString(),
			Status:    string(b.BookingStatus()),
		}
	}
	return &CommittedDatesDTO{
		VendorID:     vendorID,
		Bookings:     ranges,
		BlockedDates: nonNilStrings(v.BlockedDates()),
	}, nil
}

// mutateOwned loads a vendor, checks ownership, applies fn and persists.
func (s *VendorService) mutateOwned(ctx context.Context, callerID, vendorID uuid.UUID, fn func(*vendor.Vendor) error) (*VendorDTO, error) {
	v, err := s.repo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if !v.IsOwnedBy(callerID) {
		return nil, domain.NewForbiddenError("vendor does not belong to this user")
	}
	if err := fn(v); err != nil {
		return nil, err
	}
	v.IncrementVersion()
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return toVendorDTO(v), nil
}

// --- Helpers ---

func buildOffering(req RegisterVendorRequest) (vendor.Offering, error) {
	t, err := vendor.ParseVendorType(req.Type)
	if err != nil {
		return nil, err
	}
	switch t {
	case vendor.TypeVenue:
		units, err := vendor.NewVenueUnits(req.Units)
		if err != nil {
			return nil, err
		}
		return vendor.VenueOffering{Units: units}, nil
	case vendor.TypeFreelancer:
		return vendor.FreelancerOffering{
			Category: vendor.FreelancerCategory(req.Category),
			Pricing:  vendor.Pricing{BasePriceCents: req.BasePriceCents, Currency: domain.CurrencyINR},
		}, nil
	case vendor.TypeEventTeam:
		return vendor.EventTeamOffering{
			EventTypes: req.EventTypes,
			Packages:   vendor.NewPackages(toPackages(req.Packages)),
			Note:       req.Note,
		}, nil
	}
	return nil, domain.NewValidationError(fmt.Sprintf("invalid vendor type: %s", req.Type))
}

func toPackages(reqs []PackageRequest) []vendor.Package {
	pkgs := make([]vendor.Package, len(reqs))
	for i, r := range reqs {
		p := vendor.Package{
			Name:             r.Name,
			Description:      r.Description,
			PriceCents:       r.PriceCents,
			IncludedServices: r.IncludedServices,
			ExcludedServices: r.ExcludedServices,
			MaxGuests:        r.MaxGuests,
		}
		if r.ID != nil {
			p.ID = *r.ID
		}
		pkgs[i] = p
	}
	return pkgs
}

func toVendorDTO(v *vendor.Vendor) *VendorDTO {
	p := v.Profile()
	dto := &VendorDTO{
		ID:            v.ID(),
		UserID:        v.UserID(),
		Type:          string(v.Type()),
		Name:          p.Name,
		City:          p.City,
		Description:   p.Description,
		ContactNumber: p.ContactNumber,
		ProfilePhoto:  p.ProfilePhoto,
		Portfolio:     nonNilStrings(v.Portfolio()),
		BlockedDates:  nonNilStrings(v.BlockedDates()),
		Rating:        v.Rating(),
		TotalReviews:  v.TotalReviews(),
		Version:       v.Version(),
		CreatedAt:     v.CreatedAt(),
		UpdatedAt:     v.UpdatedAt(),
	}
	switch o := v.Offering().(type) {
	case vendor.VenueOffering:
		dto.Units = o.Units
	case vendor.FreelancerOffering:
		pricing := o.Pricing
		dto.Category = string(o.Category)
		dto.Pricing = &pricing
	case vendor.EventTeamOffering:
		dto.EventTypes = o.EventTypes
		dto.Packages = o.Packages
		dto.Note = o.Note
	}
	return dto
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
