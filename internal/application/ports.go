package application

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eventoh/service-booking/internal/platform/kafka"
)

const serviceName = "service-booking"

var tracer trace.Tracer = otel.Tracer("github.com/eventoh/service-booking/internal/application")

// EventPublisher publishes CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// CheckoutRequest describes a hosted checkout for a single amount.
type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	// Metadata is echoed back on payment confirmation.
	Metadata map[string]string
}

// PaymentGateway opens hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// MediaStore uploads files and returns their public URL.
type MediaStore interface {
	Upload(ctx context.Context, r io.Reader, folder string) (string, error)
}

// Notifier delivers a message to a recipient address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// publishEvent wraps data in a CloudEvent and publishes it. Failures are logged only.
func publishEvent(ctx context.Context, pub EventPublisher, logger *zap.Logger, topic, eventType, subject string, data interface{}) {
	if pub == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(serviceName, eventType, subject, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := pub.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
