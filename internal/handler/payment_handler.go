package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/payment"
	"github.com/eventoh/service-booking/internal/platform/domain"
	"github.com/eventoh/service-booking/internal/platform/response"
)

const maxWebhookBytes = 64 << 10

// WebhookParser verifies a gateway callback and extracts the confirmation.
type WebhookParser interface {
	Parse(payload []byte, signature string) (payment.Confirmation, bool, error)
}

// PaymentConfirmer applies a confirmed payment to its booking.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, kind string) (*application.BookingDTO, error)
}

// PaymentHandler receives Stripe webhooks.
type PaymentHandler struct {
	parser  WebhookParser
	service PaymentConfirmer
	logger  *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(parser WebhookParser, service PaymentConfirmer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{parser: parser, service: service, logger: logger}
}

// RegisterRoutes registers the webhook route. It is authenticated by signature, not bearer token.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/payments/webhook", h.Webhook)
}

// Webhook handles POST /api/v1/payments/webhook. Rejected confirmations are
// acknowledged so the gateway stops retrying; transient failures return 500.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(c, "unreadable payload")
		return
	}

	conf, ok, err := h.parser.Parse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			response.Error(c, domain.NewUnavailableError("stripe", err))
			return
		}
		h.logger.Warn("webhook rejected", zap.Error(err))
		response.BadRequest(c, "invalid webhook")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	log := h.logger.With(
		zap.String("booking_id", conf.BookingID.String()),
		zap.String("payment_kind", conf.Kind),
		zap.String("session_id", conf.SessionID),
	)

	if _, err := h.service.ConfirmPayment(c.Request.Context(), conf.BookingID, conf.Kind); err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeNotFound, domain.CodeInvalidState, domain.CodeValidation:
			log.Warn("payment confirmation rejected", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"received": true})
		default:
			log.Error("failed to confirm payment", zap.Error(err))
			response.Error(c, err)
		}
		return
	}

	log.Info("payment confirmed")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
