package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/contracts"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/user"
	"github.com/eventoh/service-booking/internal/platform/lock"
)

const (
	// SweepLockKey guards the sweep across instances.
	SweepLockKey = "sweep:overdue-payments"

	reminderSubject  = "Payment Reminder"
	defaultSweepSize = 500
)

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Skipped bool `json:"skipped"`
	Scanned int  `json:"scanned"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
}

// ReminderService sends one payment reminder per ended, partially paid booking.
type ReminderService struct {
	repo      bookingDomain.BookingRepository
	users     user.Directory
	notifier  Notifier
	locker    lock.Locker
	publisher EventPublisher
	logger    *zap.Logger
	batchSize int
	now       func() time.Time

	running atomic.Bool
}

// ReminderOption configures a ReminderService.
type ReminderOption func(*ReminderService)

// WithBatchSize sets how many overdue bookings are loaded per page.
func WithBatchSize(n int) ReminderOption {
	return func(s *ReminderService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReminderOption {
	return func(s *ReminderService) { s.now = now }
}

// NewReminderService creates a new ReminderService.
func NewReminderService(
	repo bookingDomain.BookingRepository,
	users user.Directory,
	notifier Notifier,
	locker lock.Locker,
	publisher EventPublisher,
	logger *zap.Logger,
	opts ...ReminderOption,
) *ReminderService {
	s := &ReminderService{
		repo:      repo,
		users:     users,
		notifier:  notifier,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultSweepSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep. Overlapping calls, in this process or on another
// instance sharing the locker, return a skipped result.
func (s *ReminderService) Run(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("overdue sweep already running, skipping")
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	ctx, span := tracer.Start(ctx, "ReminderService.Run")
	defer span.End()

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, SweepLockKey)
		if err != nil {
			return SweepResult{}, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !ok {
			s.logger.Info("overdue sweep held by another instance, skipping")
			return SweepResult{Skipped: true}, nil
		}
		defer unlock()
	}

	now := s.now().UTC()
	today := bookingDomain.CalendarDate(now)
	var (
		result SweepResult
		cursor *bookingDomain.OverdueCursor
	)
	for ctx.Err() == nil {
		page, err := s.repo.FindOverdue(ctx, today, cursor, s.batchSize)
		if err != nil {
			return result, err
		}
		result.Scanned += len(page)
		for _, bk := range page {
			if ctx.Err() != nil {
				break
			}
			if err := s.remind(ctx, bk, now); err != nil {
				result.Failed++
				s.logger.Warn("payment reminder failed, will retry next run",
					zap.String("booking_id", bk.ID().String()),
					zap.Error(err),
				)
				continue
			}
			result.Sent++
		}
		if len(page) < s.batchSize {
			break
		}
		cursor = bookingDomain.CursorOf(page[len(page)-1])
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.sent", result.Sent),
		attribute.Int("sweep.failed", result.Failed),
	)
	s.logger.Info("overdue sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, ctx.Err()
}

// remind sends the reminder and then flags the booking. A crash between the two
// steps sends the reminder again on the next run.
func (s *ReminderService) remind(ctx context.Context, bk *bookingDomain.Booking, now time.Time) error {
	contact, err := s.users.FindContact(ctx, bk.CustomerID())
	if err != nil {
		return fmt.Errorf("customer lookup: %w", err)
	}
	if contact.Email == "" {
		return fmt.Errorf("customer %s has no email address", contact.ID)
	}

	if err := s.notifier.Send(ctx, contact.Email, reminderSubject, ReminderBody(contact.Name, bk.BookingNumber(), bk.RemainingCents())); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	bk.MarkReminderSent(now)
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return fmt.Errorf("flag reminder sent: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, contracts.TopicBookingEvents, contracts.BookingReminderSent, bk.ID().String(),
		contracts.ReminderSentEvent{
			BookingID:      bk.ID(),
			BookingNumber:  bk.BookingNumber(),
			CustomerID:     bk.CustomerID(),
			RemainingCents: bk.RemainingCents(),
			OccurredAt:     now,
		})
	return nil
}

// ReminderBody renders the reminder text for a remaining amount in paise.
func ReminderBody(name, bookingNumber string, remainingCents int64) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s, your booking %s has ended. Please pay the remaining ₹%s.",
		name, bookingNumber, FormatRupees(remainingCents))
}

// FormatRupees renders paise as rupees, dropping a zero fraction.
func FormatRupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	if paise%100 == 0 {
		return fmt.Sprintf("%s%d", sign, paise/100)
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}
