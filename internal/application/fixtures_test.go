package application_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eventoh/service-booking/internal/application"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/database"
	"github.com/eventoh/service-booking/internal/platform/kafka"
	"github.com/eventoh/service-booking/internal/platform/lock"
	"github.com/eventoh/service-booking/internal/repository"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (r *eventRecorder) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req application.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type mockMedia struct{ mock.Mock }

func (m *mockMedia) Upload(ctx context.Context, r io.Reader, folder string) (string, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, data, folder)
	return args.String(0), args.Error(1)
}

type fixture struct {
	db       *gorm.DB
	bookings *repository.GormBookingRepository
	vendors  *repository.GormVendorRepository
	users    *repository.GormUserDirectory
	locker   *lock.LocalLocker
	events   *eventRecorder
	gateway  *mockGateway
	notifier *mockNotifier
	media    *mockMedia

	bookingSvc  *application.BookingService
	vendorSvc   *application.VendorService
	reminderSvc func(now time.Time, opts ...application.ReminderOption) *application.ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:", zap.NewNop(),
		&repository.BookingModel{}, &repository.VendorModel{}, &repository.UserModel{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		db:       db,
		bookings: repository.NewGormBookingRepository(db),
		vendors:  repository.NewGormVendorRepository(db),
		users:    repository.NewGormUserDirectory(db),
		locker:   lock.NewLocalLocker(),
		events:   &eventRecorder{},
		gateway:  &mockGateway{},
		notifier: &mockNotifier{},
		media:    &mockMedia{},
	}
	logger := zap.NewNop()
	f.bookingSvc = application.NewBookingService(
		f.bookings, f.vendors, bookingDomain.NewStandardPricingStrategy(), f.locker, f.gateway,
		application.CheckoutURLs{SuccessURL: "https://app.example/paid", CancelURL: "https://app.example/cancel"},
		f.events, logger,
	)
	f.vendorSvc = application.NewVendorService(f.vendors, f.bookings, f.media, f.events, logger)
	f.reminderSvc = func(now time.Time, opts ...application.ReminderOption) *application.ReminderService {
		opts = append([]application.ReminderOption{application.WithClock(func() time.Time { return now })}, opts...)
		return application.NewReminderService(f.bookings, f.users, f.notifier, f.locker, f.events, logger, opts...)
	}
	return f
}

func customer() auth.Identity { return auth.Identity{SubjectID: uuid.New(), Role: auth.RoleCustomer} }
func admin() auth.Identity    { return auth.Identity{SubjectID: uuid.New(), Role: auth.RoleAdmin} }

func (f *fixture) venue(t *testing.T, pricePerDay int64) (owner auth.Identity, vendorID, unitID uuid.UUID) {
	t.Helper()
	owner = auth.Identity{SubjectID: uuid.New(), Role: auth.RoleVendor}
	dto, err := f.vendorSvc.RegisterVendor(context.Background(), owner.SubjectID, application.RegisterVendorRequest{
		Type: "venue", Name: "Royal Palace", City: "Jaipur",
		Units: []vendor.UnitRequest{{Title: "Darbar Hall", Capacity: 250, PricePerDayCents: pricePerDay}},
	})
	require.NoError(t, err)
	return owner, dto.ID, dto.Units[0].ID
}

func (f *fixture) freelancer(t *testing.T, base int64) (owner auth.Identity, vendorID uuid.UUID) {
	t.Helper()
	owner = auth.Identity{SubjectID: uuid.New(), Role: auth.RoleVendor}
	dto, err := f.vendorSvc.RegisterVendor(context.Background(), owner.SubjectID, application.RegisterVendorRequest{
		Type: "freelancer", Name: "Lens Studio", City: "Pune", Category: "photographer", BasePriceCents: base,
	})
	require.NoError(t, err)
	return owner, dto.ID
}

func (f *fixture) book(t *testing.T, caller auth.Identity, vendorID uuid.UUID, unitID *uuid.UUID, start, end string) *application.BookingDTO {
	t.Helper()
	dto, err := f.bookingSvc.CreateBooking(context.Background(), caller, application.CreateBookingRequest{
		VendorID: vendorID, UnitID: unitID, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	return dto
}

func (f *fixture) addUser(t *testing.T, id uuid.UUID, name, email string) {
	t.Helper()
	require.NoError(t, f.db.Create(&repository.UserModel{
		ID: id, Name: name, Email: email, Role: "customer", CreatedAt: time.Now(),
	}).Error)
}
