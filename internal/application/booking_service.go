package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/contracts"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/domain"
	"github.com/eventoh/service-booking/internal/platform/lock"
)

// maxUpdateAttempts bounds retries of idempotent payment updates on version conflicts.
const maxUpdateAttempts = 3

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	VendorID  uuid.UUID  `json:"vendor_id" binding:"required"`
	UnitID    *uuid.UUID `json:"unit_id"`
	PackageID *uuid.UUID `json:"package_id"`
	StartDate string     `json:"start_date" binding:"required"`
	EndDate   string     `json:"end_date" binding:"required"`
	// TotalAmountCents overrides the computed price. Honored for admins only.
	TotalAmountCents *int64 `json:"total_amount_cents"`
	Notes            string `json:"notes"`
}

// UpdateStatusRequest holds a booking status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID             uuid.UUID  `json:"id"`
	BookingNumber  string     `json:"booking_number"`
	VendorID       uuid.UUID  `json:"vendor_id"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	UnitID         *uuid.UUID `json:"unit_id,omitempty"`
	PackageID      *uuid.UUID `json:"package_id,omitempty"`
	BookingType    string     `json:"booking_type"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	Days           int        `json:"days"`
	TotalCents     int64      `json:"total_cents"`
	AdvanceCents   int64      `json:"advance_cents"`
	RemainingCents int64      `json:"remaining_cents"`
	Currency       string     `json:"currency"`
	BookingStatus  string     `json:"booking_status"`
	PaymentStatus  string     `json:"payment_status"`
	ReminderSent   bool       `json:"reminder_sent"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CheckoutDTO is the hosted checkout handle for the remaining amount.
type CheckoutDTO struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CheckoutURL string    `json:"checkout_url"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// CheckoutURLs are the browser redirect targets after a hosted checkout.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo         bookingDomain.BookingRepository
	vendors      vendor.VendorRepository
	pricing      bookingDomain.PricingStrategy
	availability *bookingDomain.AvailabilityChecker
	locker       lock.Locker
	payments     PaymentGateway
	checkout     CheckoutURLs
	publisher    EventPublisher
	logger       *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	vendors vendor.VendorRepository,
	pricing bookingDomain.PricingStrategy,
	locker lock.Locker,
	payments PaymentGateway,
	checkout CheckoutURLs,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:         repo,
		vendors:      vendors,
		pricing:      pricing,
		availability: bookingDomain.NewAvailabilityChecker(repo),
		locker:       locker,
		payments:     payments,
		checkout:     checkout,
		publisher:    publisher,
		logger:       logger,
	}
}

// AvailabilityLockKey names the critical section guarding bookings of one vendor unit.
// Vendors without units share one section per vendor.
func AvailabilityLockKey(vendorID uuid.UUID, unitID *uuid.UUID) string {
	unit := "all"
	if unitID != nil {
		unit = unitID.String()
	}
	return fmt.Sprintf("booking:vendor:%s:unit:%s", vendorID, unit)
}

// CreateBooking admits a booking for the caller if the dates are free.
func (s *BookingService) CreateBooking(ctx context.Context, caller auth.Identity, req CreateBookingRequest) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking")
	defer span.End()

	dates, err := bookingDomain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	v, err := s.vendors.FindByID(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}

	unitID, packageID, err := bookingTarget(v, req)
	if err != nil {
		return nil, err
	}

	explicit := req.TotalAmountCents
	if explicit != nil && !caller.IsAdmin() {
		s.logger.Warn("ignoring client supplied total",
			zap.String("user_id", caller.SubjectID.String()),
			zap.Int64("total_amount_cents", *explicit),
		)
		explicit = nil
	}

	quote, err := s.pricing.Quote(bookingDomain.PricingParams{
		Vendor:             v,
		UnitID:             unitID,
		PackageID:          packageID,
		Dates:              dates,
		ExplicitTotalCents: explicit,
	})
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(bookingDomain.Draft{
		VendorID:    v.ID(),
		CustomerID:  caller.SubjectID,
		UnitID:      unitID,
		PackageID:   packageID,
		BookingType: v.Type(),
		Dates:       dates,
		Quote:       quote,
		Currency:    domain.CurrencyINR,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.admit(ctx, bk); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", bk.ID().String()),
		attribute.String("vendor.id", v.ID().String()),
		attribute.Int64("booking.total_cents", bk.TotalCents()),
	)
	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("vendor_id", v.ID().String()),
		zap.String("dates", dates.String()),
	)

	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.BookingCreated, bk.ID().String(),
		contracts.BookingCreatedEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			VendorID:      bk.VendorID(),
			CustomerID:    bk.CustomerID(),
			UnitID:        bk.UnitID(),
			StartDate:     dates.StartString(),
			EndDate:       dates.EndString(),
			TotalCents:    bk.TotalCents(),
			AdvanceCents:  bk.AdvanceCents(),
			Currency:      bk.Currency(),
			OccurredAt:    time.Now().UTC(),
		})

	return toBookingDTO(bk), nil
}

// admit runs the conflict check and the insert inside the vendor/unit critical section.
func (s *BookingService) admit(ctx context.Context, bk *bookingDomain.Booking) error {
	unlock, err := s.locker.Lock(ctx, AvailabilityLockKey(bk.VendorID(), bk.UnitID()))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.NewConflictError("the vendor is busy with another booking, please retry")
		}
		return domain.NewUnavailableError("booking lock", err)
	}
	defer unlock()

	existing, err := s.availability.FindConflict(ctx, bk.VendorID(), bk.UnitID(), bk.Dates())
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.NewConflictError(fmt.Sprintf("the vendor is already booked from %s to %s",
			existing.Dates().StartString(), existing.Dates().EndString()))
	}

	return s.repo.Save(ctx, bk)
}

// UpdateBookingStatus moves a booking along the lifecycle. Only the owning vendor or an admin may do so.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, caller auth.Identity, bookingID uuid.UUID, status string) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.UpdateBookingStatus")
	defer span.End()

	target, err := bookingDomain.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		owner, err := s.vendorOwner(ctx, bk.VendorID())
		if err != nil {
			return nil, err
		}
		if owner != caller.SubjectID {
			return nil, domain.NewForbiddenError("only the booked vendor or an admin can change the booking status")
		}
	}

	from := bk.BookingStatus()
	if err := bk.TransitionTo(target); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishStatusChanged(ctx, bk, from, caller.SubjectID)
	return toBookingDTO(bk), nil
}

// CancelBooking lets a customer cancel their own pending or confirmed booking.
func (s *BookingService) CancelBooking(ctx context.Context, caller auth.Identity, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.CustomerID() != caller.SubjectID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}

	from := bk.BookingStatus()
	if err := bk.Cancel(); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishStatusChanged(ctx, bk, from, caller.SubjectID)
	return toBookingDTO(bk), nil
}

// MarkPaid settles a booking for its customer or an admin. Repeating it is a no-op.
func (s *BookingService) MarkPaid(ctx context.Context, caller auth.Identity, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && bk.CustomerID() != caller.SubjectID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	return s.settle(ctx, bookingID)
}

// ConfirmPayment applies a gateway confirmation. kind is "remaining" or "advance".
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, kind string) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID.String()), attribute.String("payment.kind", kind))

	switch kind {
	case contracts.PaymentKindRemaining, "":
		return s.settle(ctx, bookingID)
	case contracts.PaymentKindAdvance:
		return s.RecordAdvancePaid(ctx, bookingID)
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown payment kind: %s", kind))
	}
}

// RecordAdvancePaid moves payment from pending to partial once the advance is confirmed.
func (s *BookingService) RecordAdvancePaid(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.updatePayment(ctx, bookingID, contracts.BookingAdvancePaid, func(bk *bookingDomain.Booking) (bool, error) {
		return bk.RecordAdvancePaid()
	})
}

func (s *BookingService) settle(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.updatePayment(ctx, bookingID, contracts.BookingPaid, func(bk *bookingDomain.Booking) (bool, error) {
		return bk.MarkPaid()
	})
}

// updatePayment applies an idempotent payment change, reloading on version conflicts.
func (s *BookingService) updatePayment(ctx context.Context, bookingID uuid.UUID, eventType string, apply func(*bookingDomain.Booking) (bool, error)) (*BookingDTO, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		bk, err := s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		changed, err := apply(bk)
		if err != nil {
			return nil, err
		}
		if !changed {
			return toBookingDTO(bk), nil
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.logger.Info("booking payment updated",
			zap.String("booking_id", bk.ID().String()),
			zap.String("payment_status", string(bk.PaymentStatus())),
			zap.String("booking_status", string(bk.BookingStatus())),
		)
		publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, eventType, bk.ID().String(),
			contracts.BookingPaymentEvent{
				BookingID:     bk.ID(),
				BookingNumber: bk.BookingNumber(),
				PaymentStatus: string(bk.PaymentStatus()),
				AmountCents:   bk.TotalCents(),
				Currency:      bk.Currency(),
				OccurredAt:    time.Now().UTC(),
			})
		return toBookingDTO(bk), nil
	}
	return nil, lastErr
}

// PayRemaining opens a hosted checkout for the unpaid balance. The booking is not modified;
// it changes only when the gateway confirms the payment.
func (s *BookingService) PayRemaining(ctx context.Context, caller auth.Identity, bookingID uuid.UUID) (*CheckoutDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.PayRemaining")
	defer span.End()

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && bk.CustomerID() != caller.SubjectID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	if bk.BookingStatus() == bookingDomain.StatusCancelled {
		return nil, domain.NewInvalidStateError(string(bk.BookingStatus()), "paid")
	}
	switch bk.PaymentStatus() {
	case bookingDomain.PaymentPaid, bookingDomain.PaymentRefunded:
		return nil, domain.NewInvalidStateError(string(bk.PaymentStatus()), string(bookingDomain.PaymentPaid))
	}
	remaining := bk.RemainingCents()
	if remaining <= 0 {
		return nil, domain.NewValidationError("nothing left to pay on this booking")
	}
	if s.payments == nil {
		return nil, domain.NewUnavailableError("payment gateway", nil)
	}

	url, err := s.payments.CreateCheckoutSession(ctx, CheckoutRequest{
		AmountCents: remaining,
		Currency:    bk.Currency(),
		Description: fmt.Sprintf("Remaining payment for booking %s", bk.BookingNumber()),
		SuccessURL:  s.checkout.SuccessURL,
		CancelURL:   s.checkout.CancelURL,
		Metadata: map[string]string{
			"booking_id":   bk.ID().String(),
			"payment_kind": contracts.PaymentKindRemaining,
		},
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("checkout session failed", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		return nil, domain.NewUnavailableError("payment gateway", err)
	}

	return &CheckoutDTO{
		BookingID:   bk.ID(),
		CheckoutURL: url,
		AmountCents: remaining,
		Currency:    bk.Currency(),
	}, nil
}

// RefundBooking marks a booking's payment refunded (admin).
func (s *BookingService) RefundBooking(ctx context.Context, adminID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.Refund(); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking refunded",
		zap.String("booking_id", bk.ID().String()),
		zap.String("admin_id", adminID.String()),
	)
	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.BookingRefunded, bk.ID().String(),
		contracts.BookingPaymentEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			PaymentStatus: string(bk.PaymentStatus()),
			AmountCents:   bk.TotalCents(),
			Currency:      bk.Currency(),
			OccurredAt:    time.Now().UTC(),
		})
	return toBookingDTO(bk), nil
}

// ApplyRefund marks a booking refunded on a gateway notification. Already refunded is a no-op.
func (s *BookingService) ApplyRefund(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.updatePayment(ctx, bookingID, contracts.BookingRefunded, func(bk *bookingDomain.Booking) (bool, error) {
		if bk.PaymentStatus() == bookingDomain.PaymentRefunded {
			return false, nil
		}
		return true, bk.Refund()
	})
}

// GetBooking returns a booking visible to the caller.
func (s *BookingService) GetBooking(ctx context.Context, caller auth.Identity, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && bk.CustomerID() != caller.SubjectID {
		owner, err := s.vendorOwner(ctx, bk.VendorID())
		if err != nil {
			return nil, err
		}
		if !bk.IsVisibleTo(caller.SubjectID, owner) {
			return nil, domain.NewForbiddenError("booking does not belong to this user")
		}
	}
	return toBookingDTO(bk), nil
}

// ListBookings returns the caller's bookings: a customer's own, a vendor's received, or all for admins.
func (s *BookingService) ListBookings(ctx context.Context, caller auth.Identity, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	var (
		bookings []*bookingDomain.Booking
		total    int64
		err      error
	)
	switch caller.Role {
	case auth.RoleAdmin:
		bookings, total, err = s.repo.ListAll(ctx, page, limit)
	case auth.RoleVendor:
		v, findErr := s.vendors.FindByUserID(ctx, caller.SubjectID)
		if findErr != nil {
			return nil, findErr
		}
		bookings, total, err = s.repo.FindByVendorID(ctx, v.ID(), page, limit)
	default:
		bookings, total, err = s.repo.FindByCustomerID(ctx, caller.SubjectID, page, limit)
	}
	if err != nil {
		return nil, err
	}

	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

// bookingTarget resolves and checks the unit or package a request points at.
func bookingTarget(v *vendor.Vendor, req CreateBookingRequest) (*uuid.UUID, *uuid.UUID, error) {
	switch v.Type() {
	case vendor.TypeVenue:
		if req.UnitID == nil {
			return nil, nil, domain.NewValidationError("unit_id is required for venue bookings")
		}
		if req.PackageID != nil {
			return nil, nil, domain.NewValidationError("package_id is not allowed for venue bookings")
		}
		unit, err := v.Unit(*req.UnitID)
		if err != nil {
			return nil, nil, err
		}
		if !unit.Active {
			return nil, nil, domain.NewValidationError("this unit is not available for booking")
		}
		return req.UnitID, nil, nil
	case vendor.TypeEventTeam:
		if req.UnitID != nil {
			return nil, nil, domain.NewValidationError("unit_id is only allowed for venue bookings")
		}
		if req.PackageID == nil {
			return nil, nil, domain.NewValidationError("package_id is required for event team bookings")
		}
		return nil, req.PackageID, nil
	default:
		if req.UnitID != nil || req.PackageID != nil {
			return nil, nil, domain.NewValidationError("unit_id and package_id are not allowed for freelancer bookings")
		}
		return nil, nil, nil
	}
}

func (s *BookingService) vendorOwner(ctx context.Context, vendorID uuid.UUID) (uuid.UUID, error) {
	v, err := s.vendors.FindByID(ctx, vendorID)
	if err != nil {
		return uuid.Nil, err
	}
	return v.UserID(), nil
}

func (s *BookingService) publishStatusChanged(ctx context.Context, bk *bookingDomain.Booking, from bookingDomain.BookingStatus, by uuid.UUID) {
	s.logger.Info("booking status changed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(bk.BookingStatus())),
	)
	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.BookingStatusChanged, bk.ID().String(),
		contracts.BookingStatusChangedEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			From:          string(from),
			To:            string(bk.BookingStatus()),
			ChangedBy:     by,
			OccurredAt:    time.Now().UTC(),
		})
}

func toBookingDTO(bk *bookingDomain.Booking) *BookingDTO {
	dates := bk.Dates()
	return &BookingDTO{
		ID:             bk.ID(),
		BookingNumber:  bk.BookingNumber(),
		VendorID:       bk.VendorID(),
		CustomerID:     bk.CustomerID(),
		UnitID:         bk.UnitID(),
		PackageID:      bk.PackageID(),
		BookingType:    string(bk.BookingType()),
		StartDate:      dates.StartString(),
		EndDate:        dates.EndString(),
		Days:           dates.Days(),
		TotalCents:     bk.TotalCents(),
		AdvanceCents:   bk.AdvanceCents(),
		RemainingCents: bk.RemainingCents(),
		Currency:       bk.Currency(),
		BookingStatus:  string(bk.BookingStatus()),
		PaymentStatus:  string(bk.PaymentStatus()),
		ReminderSent:   bk.ReminderSent(),
		PaidAt:         bk.PaidAt(),
		CancelledAt:    bk.CancelledAt(),
		Notes:          bk.Notes(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = *toBookingDTO(bk)
	}
	return dtos
}
