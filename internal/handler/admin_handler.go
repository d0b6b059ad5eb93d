package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/middleware"
	"github.com/eventoh/service-booking/internal/platform/response"
)

// AdminHandler handles admin HTTP requests for bookings and vendor verification.
type AdminHandler struct {
	bookings *application.BookingService
	vendors  *application.VendorService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, vendors *application.VendorService) *AdminHandler {
	return &AdminHandler{bookings: bookings, vendors: vendors}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, verifier auth.Verifier) {
	authMW := middleware.AuthMiddleware(verifier)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.POST("/bookings/:id/refund", h.RefundBooking)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.POST("/vendors/:id/units/:unitId/verify", h.VerifyUnit)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.bookings.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// RefundBooking handles POST /api/v1/admin/bookings/:id/refund.
func (h *AdminHandler) RefundBooking(c *gin.Context) {
	bookingID, ok := paramID(c, "id", "booking")
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	result, err := h.bookings.RefundBooking(c.Request.Context(), adminID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// VerifyUnit handles POST /api/v1/admin/vendors/:id/units/:unitId/verify.
func (h *AdminHandler) VerifyUnit(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	unitID, ok := paramID(c, "unitId", "unit")
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	unit, err := h.vendors.VerifyUnit(c.Request.Context(), adminID, vendorID, unitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, unit)
}
