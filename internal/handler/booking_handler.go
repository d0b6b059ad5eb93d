package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/middleware"
	"github.com/eventoh/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, verifier auth.Verifier) {
	authMW := middleware.AuthMiddleware(verifier)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/status", middleware.RequireRole(auth.RoleVendor, auth.RoleAdmin), h.UpdateStatus)
		bookings.POST("/:id/cancel", middleware.RequireRole(auth.RoleCustomer), h.CancelBooking)
		bookings.POST("/:id/mark-paid", middleware.RequireRole(auth.RoleCustomer, auth.RoleAdmin), h.MarkPaid)
		bookings.POST("/:id/pay-remaining", middleware.RequireRole(auth.RoleCustomer), h.PayRemaining)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Customers see their own bookings,
// vendors see bookings of their profile and admins see everything.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.ListBookings(c.Request.Context(), caller, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := identity(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStatus handles PATCH /api/v1/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := identity(c)
	if !ok {
		return
	}

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateBookingStatus(c.Request.Context(), caller, bookingID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := identity(c)
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MarkPaid handles POST /api/v1/bookings/:id/mark-paid.
func (h *BookingHandler) MarkPaid(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := identity(c)
	if !ok {
		return
	}

	result, err := h.service.MarkPaid(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// PayRemaining handles POST /api/v1/bookings/:id/pay-remaining.
func (h *BookingHandler) PayRemaining(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	caller, ok := identity(c)
	if !ok {
		return
	}

	result, err := h.service.PayRemaining(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
