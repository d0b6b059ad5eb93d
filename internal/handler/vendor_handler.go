package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/domain/vendor"
	"github.com/eventoh/service-booking/internal/platform/auth"
	"github.com/eventoh/service-booking/internal/platform/middleware"
	"github.com/eventoh/service-booking/internal/platform/response"
)

// maxImageBytes bounds a single portfolio upload.
const maxImageBytes = 10 << 20

// VendorHandler handles HTTP requests for the vendor catalog.
type VendorHandler struct {
	service *application.VendorService
}

// NewVendorHandler creates a new VendorHandler.
func NewVendorHandler(service *application.VendorService) *VendorHandler {
	return &VendorHandler{service: service}
}

type availabilityRequest struct {
	Dates []string `json:"dates"`
}

type addUnitsRequest struct {
	Units []vendor.UnitRequest `json:"units" binding:"required"`
}

// RegisterRoutes registers vendor routes. Reads are public.
func (h *VendorHandler) RegisterRoutes(r *gin.RouterGroup, verifier auth.Verifier) {
	authMW := middleware.AuthMiddleware(verifier)
	vendorRole := middleware.RequireRole(auth.RoleVendor)

	vendors := r.Group("/api/v1/vendors")
	{
		vendors.GET("", h.ListVendors)
		vendors.GET("/me", authMW, vendorRole, h.GetMyVendor)
		vendors.GET("/:id", h.GetVendor)
		vendors.GET("/:id/units/:unitId", h.GetUnit)
		vendors.GET("/:id/booked-dates", h.BookedDates)

		vendors.POST("", authMW, h.RegisterVendor)
		vendors.PATCH("/:id", authMW, vendorRole, h.UpdateVendor)
		vendors.PUT("/:id/availability", authMW, vendorRole, h.SetAvailability)
		vendors.POST("/:id/units", authMW, vendorRole, h.AddUnits)
		vendors.POST("/:id/images", authMW, vendorRole, h.UploadImage)
	}
}

// RegisterVendor handles POST /api/v1/vendors.
func (h *VendorHandler) RegisterVendor(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.RegisterVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RegisterVendor(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListVendors handles GET /api/v1/vendors?type=&city=&category=.
func (h *VendorHandler) ListVendors(c *gin.Context) {
	var q application.ListVendorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ListVendors(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetMyVendor handles GET /api/v1/vendors/me.
func (h *VendorHandler) GetMyVendor(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.GetMyVendor(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetVendor handles GET /api/v1/vendors/:id.
func (h *VendorHandler) GetVendor(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}

	result, err := h.service.GetVendor(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetUnit handles GET /api/v1/vendors/:id/units/:unitId.
func (h *VendorHandler) GetUnit(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	unitID, ok := paramID(c, "unitId", "unit")
	if !ok {
		return
	}

	result, err := h.service.GetUnit(c.Request.Context(), vendorID, unitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BookedDates handles GET /api/v1/vendors/:id/booked-dates?unit_id=.
func (h *VendorHandler) BookedDates(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}

	var unitID *uuid.UUID
	if raw := c.Query("unit_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid unit ID")
			return
		}
		unitID = &id
	}

	result, err := h.service.CommittedDates(c.Request.Context(), vendorID, unitID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateVendor handles PATCH /api/v1/vendors/:id.
func (h *VendorHandler) UpdateVendor(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	callerID, _ := middleware.GetUserID(c)

	var req application.UpdateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateVendor(c.Request.Context(), callerID, vendorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetAvailability handles PUT /api/v1/vendors/:id/availability.
func (h *VendorHandler) SetAvailability(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	callerID, _ := middleware.GetUserID(c)

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetAvailabilityOverrides(c.Request.Context(), callerID, vendorID, req.Dates)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AddUnits handles POST /api/v1/vendors/:id/units.
func (h *VendorHandler) AddUnits(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	callerID, _ := middleware.GetUserID(c)

	var req addUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AddVenueUnits(c.Request.Context(), callerID, vendorID, req.Units)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UploadImage handles POST /api/v1/vendors/:id/images as multipart form field "image".
func (h *VendorHandler) UploadImage(c *gin.Context) {
	vendorID, ok := paramID(c, "id", "vendor")
	if !ok {
		return
	}
	callerID, _ := middleware.GetUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(c, "image is too large")
			return
		}
		response.BadRequest(c, "image file is required")
		return
	}
	if fh.Size > maxImageBytes {
		response.BadRequest(c, "image is too large")
		return
	}

	file, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable image file")
		return
	}
	defer file.Close()

	result, err := h.service.UploadPortfolioImage(c.Request.Context(), callerID, vendorID, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
