package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/application"
	"github.com/eventoh/service-booking/internal/contracts"
	"github.com/eventoh/service-booking/internal/platform/domain"
	"github.com/eventoh/service-booking/internal/platform/kafka"
)

// PaymentApplier applies confirmed payments and refunds to bookings.
type PaymentApplier interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, kind string) (*application.BookingDTO, error)
	ApplyRefund(ctx context.Context, bookingID uuid.UUID) (*application.BookingDTO, error)
}

// PaymentEventConsumer listens to payment events and settles bookings.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentApplier
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentApplier,
	logger *zap.Logger,
) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, contracts.TopicPaymentEvents, logger),
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.HandleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

// HandleMessage routes one payment event. Only transient failures are returned
// so the consumer retries them.
func (c *PaymentEventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil
	}

	switch cloudEvent.Type {
	case contracts.PaymentCheckoutCompleted:
		return c.handle(ctx, cloudEvent, func(evt contracts.PaymentConfirmedEvent) error {
			_, err := c.service.ConfirmPayment(ctx, evt.BookingID, evt.PaymentKind)
			return err
		})
	case contracts.PaymentRefunded:
		return c.handle(ctx, cloudEvent, func(evt contracts.PaymentConfirmedEvent) error {
			_, err := c.service.ApplyRefund(ctx, evt.BookingID)
			return err
		})
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handle(ctx context.Context, cloudEvent kafka.CloudEvent, apply func(contracts.PaymentConfirmedEvent) error) error {
	var evt contracts.PaymentConfirmedEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == uuid.Nil {
		c.logger.Error("invalid payment event data",
			zap.String("type", cloudEvent.Type),
			zap.String("id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil
	}

	log := c.logger.With(
		zap.String("type", cloudEvent.Type),
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("reference", evt.Reference),
	)

	if err := apply(evt); err != nil {
		if isPermanent(err) {
			log.Warn("payment event rejected", zap.Error(err))
			return nil
		}
		log.Error("failed to apply payment event", zap.Error(err))
		return err
	}

	log.Info("payment event applied")
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrValidation)
}
