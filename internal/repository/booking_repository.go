package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

const pgExclusionViolation = "23P01"

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingNumber  string     `gorm:"uniqueIndex;not null;size:20"`
	VendorID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	CustomerID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	UnitID         *uuid.UUID `gorm:"type:uuid;index"`
	PackageID      *uuid.UUID `gorm:"type:uuid"`
	BookingType    string     `gorm:"not null;size:20"`
	StartDate      time.Time  `gorm:"type:date;not null"`
	EndDate        time.Time  `gorm:"type:date;not null;index"`
	TotalCents     int64      `gorm:"not null"`
	AdvanceCents   int64      `gorm:"not null"`
	Currency       string     `gorm:"not null;size:3;default:'INR'"`
	BookingStatus  string     `gorm:"not null;size:20;index"`
	PaymentStatus  string     `gorm:"not null;size:20;index"`
	ReminderSent   bool       `gorm:"not null;default:false"`
	ReminderSentAt *time.Time `gorm:""`
	PaidAt         *time.Time `gorm:""`
	CancelledAt    *time.Time `gorm:""`
	Notes          string     `gorm:"size:1000"`
	Version        int64      `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindActiveByVendor returns pending and confirmed bookings of a vendor,
// narrowed to one unit when unitID is set.
func (r *GormBookingRepository) FindActiveByVendor(ctx context.Context, vendorID uuid.UUID, unitID *uuid.UUID) ([]*bookingDomain.Booking, error) {
	q := r.db.WithContext(ctx).
		Where("vendor_id = ? AND booking_status IN ?", vendorID, bookingDomain.ActiveStatuses())
	if unitID != nil {
		q = q.Where("unit_id = ?", *unitID)
	}

	var models []BookingModel
	if err := q.Order("start_date ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find active vendor bookings: %w", err)
	}
	return toDomainBookings(models)
}

// FindByCustomerID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db.Where("customer_id = ?", customerID), page, limit)
}

// FindByVendorID retrieves bookings for a specific vendor with pagination.
func (r *GormBookingRepository) FindByVendorID(ctx context.Context, vendorID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db.Where("vendor_id = ?", vendorID), page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db, page, limit)
}

func (r *GormBookingRepository) paginate(ctx context.Context, scope *gorm.DB, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := scope.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := scope.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindOverdue returns partially paid bookings that ended before endBefore and
// have not been reminded yet, keyset-paged on (end_date, id).
func (r *GormBookingRepository) FindOverdue(ctx context.Context, endBefore time.Time, after *bookingDomain.OverdueCursor, limit int) ([]*bookingDomain.Booking, error) {
	q := r.db.WithContext(ctx).
		Where("end_date < ? AND payment_status = ? AND reminder_sent = ?",
			bookingDomain.CalendarDate(endBefore), string(bookingDomain.PaymentPartial), false)
	if after != nil {
		end := bookingDomain.CalendarDate(after.EndDate)
		q = q.Where("(end_date > ? OR (end_date = ? AND id > ?))", end, end, after.ID)
	}

	var models []BookingModel
	if err := q.Order("end_date ASC, id ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find overdue bookings: %w", err)
	}
	return toDomainBookings(models)
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return mapWriteError("failed to save booking", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// Only update if the stored version is the one we loaded (IncrementVersion was called).
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"booking_status":   model.BookingStatus,
			"payment_status":   model.PaymentStatus,
			"reminder_sent":    model.ReminderSent,
			"reminder_sent_at": model.ReminderSentAt,
			"paid_at":          model.PaidAt,
			"cancelled_at":     model.CancelledAt,
			"notes":            model.Notes,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return mapWriteError("failed to update booking", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// CountByStatus returns booking counts grouped by booking status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		BookingStatus string
		Count         int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("booking_status, count(*) as count").
		Group("booking_status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.BookingStatus] = sc.Count
	}
	return counts, nil
}

// mapWriteError turns the bookings_no_overlap exclusion constraint and unique
// violations into a Conflict. The connection runs with TranslateError, so unique
// violations arrive as gorm.ErrDuplicatedKey.
func mapWriteError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return domain.NewConflictError("the requested dates are already booked")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflictError("booking already exists")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	dates := bk.Dates()
	return &BookingModel{
		ID:             bk.ID(),
		BookingNumber:  bk.BookingNumber(),
		VendorID:       bk.VendorID(),
		CustomerID:     bk.CustomerID(),
		UnitID:         bk.UnitID(),
		PackageID:      bk.PackageID(),
		BookingType:    string(bk.BookingType()),
		StartDate:      dates.Start,
		EndDate:        dates.End,
		TotalCents:     bk.TotalCents(),
		AdvanceCents:   bk.AdvanceCents(),
		Currency:       bk.Currency(),
		BookingStatus:  string(bk.BookingStatus()),
		PaymentStatus:  string(bk.PaymentStatus()),
		ReminderSent:   bk.ReminderSent(),
		ReminderSentAt: bk.ReminderSentAt(),
		PaidAt:         bk.PaidAt(),
		CancelledAt:    bk.CancelledAt(),
		Notes:          bk.Notes(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.BookingStatus)
	if err != nil {
		return nil, err
	}
	payment, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	dates := bookingDomain.DateRange{
		Start: bookingDomain.CalendarDate(m.StartDate.UTC()),
		End:   bookingDomain.CalendarDate(m.EndDate.UTC()),
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.VendorID,
		m.CustomerID,
		m.UnitID,
		m.PackageID,
		vendor.VendorType(m.BookingType),
		dates,
		m.TotalCents,
		m.AdvanceCents,
		m.Currency,
		status,
		payment,
		m.ReminderSent,
		m.ReminderSentAt,
		m.PaidAt,
		m.CancelledAt,
		m.Notes,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
