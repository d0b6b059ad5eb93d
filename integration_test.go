//go:build integration

package main_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/contracts"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/domain"
)

func registerVenue(t *testing.T, stack *bookingStack) (auth.Identity, *application.VendorDTO) {
	t.Helper()
	owner := auth.Identity{SubjectID: uuid.New(), Role: auth.RoleVendor}
	v, err := stack.Vendors.RegisterVendor(context.Background(), owner.SubjectID, application.RegisterVendorRequest{
		Type: "venue", Name: "Lake View Lawns", City: "Udaipur",
		Units: []vendor.UnitRequest{{Title: "Main Lawn", Capacity: 500, PricePerDayCents: 90000}},
	})
	require.NoError(t, err)
	return owner, v
}

// TestCheckoutCompleted_SettlesBooking verifies that a payment.checkout_completed
// event on payment.events settles the booking and emits booking.paid.
func TestCheckoutCompleted_SettlesBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	owner, v := registerVenue(t, stack)
	unitID := v.Units[0].ID
	customer := auth.Identity{SubjectID: uuid.New(), Role: auth.RoleCustomer}

	bk, err := stack.Service.CreateBooking(context.Background(), customer, application.CreateBookingRequest{
		VendorID: v.ID, UnitID: &unitID, StartDate: "2025-11-01", EndDate: "2025-11-03",
	})
	require.NoError(t, err)
	_, err = stack.Service.UpdateBookingStatus(context.Background(), owner, bk.ID, "confirmed")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	publishTestEvent(t, infra.KafkaBrokers, contracts.TopicPaymentEvents, "service-payment",
		contracts.PaymentCheckoutCompleted, contracts.PaymentConfirmedEvent{
			BookingID:   bk.ID,
			PaymentKind: contracts.PaymentKindRemaining,
			AmountCents: bk.RemainingCents,
			Reference:   "cs_test_integration",
			OccurredAt:  time.Now().UTC(),
		})

	model := waitForPaymentStatus(t, infra.DB, bk.ID, "paid", 15*time.Second)
	assert.Equal(t, "completed", model.BookingStatus)
	assert.NotNil(t, model.PaidAt)

	ce := consumeOneEvent(t, infra.KafkaBrokers, contracts.TopicBookingEvents, contracts.BookingPaid, 15*time.Second)
	var paid contracts.BookingPaymentEvent
	require.NoError(t, ce.ParseData(&paid))
	assert.Equal(t, bk.ID, paid.BookingID)
	assert.Equal(t, int64(270000), paid.AmountCents)
	assert.Equal(t, "INR", paid.Currency)
}

// TestExclusionConstraint_RejectsOverlap writes directly through the repository,
// bypassing the service lock, and relies on the database to refuse overlaps.
func TestExclusionConstraint_RejectsOverlap(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	_, v := registerVenue(t, stack)
	unitID := v.Units[0].ID

	save := func(start, end string) error {
		dates, err := bookingDomain.ParseDateRange(start, end)
		require.NoError(t, err)
		bk, err := bookingDomain.NewBooking(bookingDomain.Draft{
			VendorID:    v.ID,
			CustomerID:  uuid.New(),
			UnitID:      &unitID,
			BookingType: vendor.TypeVenue,
			Dates:       dates,
			Quote:       bookingDomain.Quote{TotalCents: 90000, AdvanceCents: 36000},
		})
		require.NoError(t, err)
		return stack.Repo.Save(context.Background(), bk)
	}

	require.NoError(t, save("2025-12-01", "2025-12-05"))

	err := save("2025-12-03", "2025-12-07")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	assert.NoError(t, save("2025-12-05", "2025-12-08"), "touching ranges share no night")

	err = save("2025-12-03", "2025-12-03")
	require.Error(t, err, "a single day strictly inside an active range conflicts")
	assert.True(t, errors.Is(err, domain.ErrConflict))

	assert.NoError(t, save("2025-12-01", "2025-12-01"), "a single day on the start boundary is admitted")
	assert.NoError(t, save("2025-12-20", "2025-12-20"))
	assert.NoError(t, save("2025-12-20", "2025-12-20"), "identical single-day bookings are admitted")
}
