package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/application"
	bookingDomain "github.com/eventoh/service-booking/internal/domain/booking"
	"github.com/eventoh/service-booking/internal/media"
	"github.com/eventoh/service-booking/internal/payment"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/database"
	"github.com/eventoh/service-booking/internal/platform/domain"
	"github.com/eventoh/service-booking/internal/platform/lock"
	"github.com/eventoh/service-booking/internal/repository"
)

type stubGateway struct{}

func (stubGateway) CreateCheckoutSession(_ context.Context, req application.CheckoutRequest) (string, error) {
	return "https://checkout.stripe.test/" + req.Metadata["booking_id"], nil
}

type stubParser struct {
	conf payment.Confirmation
	ok   bool
	err  error
}

func (p stubParser) Parse(_ []byte, _ string) (payment.Confirmation, bool, error) {
	return p.conf, p.ok, p.err
}

type stubConfirmer struct {
	calls []uuid.UUID
	err   error
}

func (s *stubConfirmer) ConfirmPayment(_ context.Context, bookingID uuid.UUID, _ string) (*application.BookingDTO, error) {
	s.calls = append(s.calls, bookingID)
	return nil, s.err
}

type testServer struct {
	router  *gin.Engine
	jwt     *auth.JWTManager
	booking *application.BookingService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.ConnectSQLite(":memory:", zap.NewNop(),
		&repository.BookingModel{}, &repository.VendorModel{}, &repository.UserModel{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := zap.NewNop()
	bookings := repository.NewGormBookingRepository(db)
	vendors := repository.NewGormVendorRepository(db)

	bookingSvc := application.NewBookingService(bookings, vendors, bookingDomain.NewStandardPricingStrategy(),
		lock.NewLocalLocker(), stubGateway{}, application.CheckoutURLs{SuccessURL: "https://app/ok", CancelURL: "https://app/no"},
		nil, logger)
	vendorSvc := application.NewVendorService(vendors, bookings, media.NewMemoryStore("https://cdn.test"), nil, logger)

	jwt := auth.NewJWTManager("test-secret", 0)
	r := gin.New()
	api := r.Group("")
	NewVendorHandler(vendorSvc).RegisterRoutes(api, jwt)
	NewBookingHandler(bookingSvc).RegisterRoutes(api, jwt)
	NewAdminHandler(bookingSvc, vendorSvc).RegisterRoutes(api, jwt)

	return &testServer{router: r, jwt: jwt, booking: bookingSvc}
}

func (s *testServer) token(t *testing.T, id uuid.UUID, role auth.Role) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(id, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

// registerVenue creates a one-unit venue and returns its owner token, vendor id and unit id.
func (s *testServer) registerVenue(t *testing.T) (string, application.VendorDTO) {
	t.Helper()
	ownerTok := s.token(t, uuid.New(), auth.RoleVendor)
	w := s.do(t, http.MethodPost, "/api/v1/vendors", ownerTok, map[string]interface{}{
		"type": "venue", "name": "Royal Palace", "city": "Jaipur",
		"units": []map[string]interface{}{{"title": "Darbar Hall", "capacity": 250, "price_per_day_cents": 90000}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v application.VendorDTO
	decode(t, w, &v)
	require.Len(t, v.Units, 1)
	return ownerTok, v
}

func TestVendorRoutes(t *testing.T) {
	s := newTestServer(t)
	ownerTok, v := s.registerVenue(t)

	w := s.do(t, http.MethodGet, "/api/v1/vendors/"+v.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/vendors/%s/units/%s", v.ID, v.Units[0].ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/vendors?city=jaipur&type=venue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []application.VendorDTO
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodGet, "/api/v1/vendors/me", ownerTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/vendors/"+v.ID.String()+"/availability", ownerTok,
		map[string]interface{}{"dates": []string{"2025-12-25", "2025-12-24", "2025-12-25"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated application.VendorDTO
	decode(t, w, &updated)
	assert.Equal(t, []string{"2025-12-24", "2025-12-25"}, updated.BlockedDates)

	otherTok := s.token(t, uuid.New(), auth.RoleVendor)
	w = s.do(t, http.MethodPatch, "/api/v1/vendors/"+v.ID.String(), otherTok, map[string]interface{}{"name": "Stolen"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/vendors/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/vendors/"+uuid.NewString(), "", nil)
	env := decode(t, w, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(domain.CodeNotFound), env.Error.Code)
}

func TestVendorRoutes_UploadImage(t *testing.T) {
	s := newTestServer(t)
	ownerTok, v := s.registerVenue(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "hall.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendors/"+v.ID.String()+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ownerTok)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var updated application.VendorDTO
	decode(t, w, &updated)
	require.Len(t, updated.Portfolio, 1)
	assert.Contains(t, updated.Portfolio[0], "https://cdn.test/eventoh/vendors/"+v.ID.String())

	w = s.do(t, http.MethodPost, "/api/v1/vendors/"+v.ID.String()+"/images", ownerTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingRoutes_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	ownerTok, v := s.registerVenue(t)
	customerTok := s.token(t, uuid.New(), auth.RoleCustomer)
	adminTok := s.token(t, uuid.New(), auth.RoleAdmin)
	unitID := v.Units[0].ID

	create := map[string]interface{}{
		"vendor_id": v.ID, "unit_id": unitID, "start_date": "2025-11-01", "end_date": "2025-11-03",
	}

	w := s.do(t, http.MethodPost, "/api/v1/bookings", "", create)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/bookings", ownerTok, create)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/bookings", customerTok, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bk application.BookingDTO
	decode(t, w, &bk)
	assert.Equal(t, int64(270000), bk.TotalCents)
	assert.Equal(t, int64(108000), bk.AdvanceCents)
	assert.Equal(t, "partial", bk.PaymentStatus)

	overlap := map[string]interface{}{
		"vendor_id": v.ID, "unit_id": unitID, "start_date": "2025-11-02", "end_date": "2025-11-05",
	}
	w = s.do(t, http.MethodPost, "/api/v1/bookings", s.token(t, uuid.New(), auth.RoleCustomer), overlap)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/vendors/"+v.ID.String()+"/booked-dates", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var committed application.CommittedDatesDTO
	decode(t, w, &committed)
	require.Len(t, committed.Bookings, 1)
	assert.Equal(t, "2025-11-01", committed.Bookings[0].StartDate)

	bookingPath := "/api/v1/bookings/" + bk.ID.String()
	w = s.do(t, http.MethodPatch, bookingPath+"/status", s.token(t, uuid.New(), auth.RoleVendor), map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPatch, bookingPath+"/status", ownerTok, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, bookingPath, s.token(t, uuid.New(), auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, bookingPath+"/pay-remaining", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkout application.CheckoutDTO
	decode(t, w, &checkout)
	assert.Equal(t, int64(162000), checkout.AmountCents)
	assert.Equal(t, "https://checkout.stripe.test/"+bk.ID.String(), checkout.CheckoutURL)

	w = s.do(t, http.MethodPost, bookingPath+"/mark-paid", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &bk)
	assert.Equal(t, "paid", bk.PaymentStatus)
	assert.Equal(t, "completed", bk.BookingStatus)

	w = s.do(t, http.MethodPost, bookingPath+"/cancel", customerTok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/bookings", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, int64(1), env.Meta.Total)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats/bookings", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats application.BookingStatsDTO
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.ByStatus["completed"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/bookings", customerTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/bookings/"+bk.ID.String()+"/refund", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &bk)
	assert.Equal(t, "refunded", bk.PaymentStatus)
}

func TestAdminRoutes_VerifyUnit(t *testing.T) {
	s := newTestServer(t)
	_, v := s.registerVenue(t)
	adminTok := s.token(t, uuid.New(), auth.RoleAdmin)

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/vendors/%s/units/%s/verify", v.ID, v.Units[0].ID), adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var unit struct {
		Verified bool `json:"verified"`
	}
	decode(t, w, &unit)
	assert.True(t, unit.Verified)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/vendors/%s/units/%s/verify", v.ID, uuid.New()), adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bookingID := uuid.New()

	tests := []struct {
		name       string
		parser     stubParser
		confirmErr error
		status     int
		calls      int
	}{
		{name: "confirmed", parser: stubParser{conf: payment.Confirmation{BookingID: bookingID, Kind: "remaining"}, ok: true}, status: http.StatusOK, calls: 1},
		{name: "irrelevant event", parser: stubParser{}, status: http.StatusOK},
		{name: "bad signature", parser: stubParser{err: payment.ErrInvalidSignature}, status: http.StatusBadRequest},
		{name: "not configured", parser: stubParser{err: payment.ErrNotConfigured}, status: http.StatusServiceUnavailable},
		{name: "invalid state acknowledged", parser: stubParser{conf: payment.Confirmation{BookingID: bookingID}, ok: true},
			confirmErr: domain.NewInvalidStateError("cancelled", "completed"), status: http.StatusOK, calls: 1},
		{name: "transient failure retried", parser: stubParser{conf: payment.Confirmation{BookingID: bookingID}, ok: true},
			confirmErr: errors.New("db down"), status: http.StatusInternalServerError, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := &stubConfirmer{err: tt.confirmErr}
			r := gin.New()
			NewPaymentHandler(tt.parser, confirmer, zap.NewNop()).RegisterRoutes(r.Group(""))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(`{}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Len(t, confirmer.calls, tt.calls)
		})
	}
}
