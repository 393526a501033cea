package pubsub

import (
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/lithammer/shortuuid/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"clubtickets/entity"
	"clubtickets/metrics"
)

const correlationIDMetadataKey = "correlation_id"

// useMiddlewares wraps handlers outermost first. Retry sits inside logging and metrics so a
// message is logged and counted once, with its final outcome.
func useMiddlewares(router *message.Router, watermillLogger watermill.LoggerAdapter) {
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(PropagateCorrelationIDMiddleware)
	router.AddMiddleware(TracingMiddleware)
	router.AddMiddleware(LoggingMiddleware)
	router.AddMiddleware(MetricsMiddleware)

	// Payment status queries hit a rate-limited provider; keep the backoff short and bounded.
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      5,
		InitialInterval: time.Millisecond * 200,
		MaxInterval:     time.Second * 5,
		Multiplier:      2,
		Logger:          watermillLogger,
	}.Middleware)

	router.AddMiddleware(AckPermanentErrorsMiddleware)
}

// PropagateCorrelationIDMiddleware puts the publisher's correlation ID into the handler context,
// so logs and messages published by the handler carry it.
func PropagateCorrelationIDMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := msg.Metadata.Get(correlationIDMetadataKey)
		if correlationID == "" {
			correlationID = shortuuid.New()
		}

		ctx := log.ContextWithCorrelationID(msg.Context(), correlationID)
		ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{correlationIDMetadataKey: correlationID}))

		msg.SetContext(ctx)

		return next(msg)
	}
}

func TracingMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
		topic := message.SubscribeTopicFromCtx(msg.Context())
		handler := message.HandlerNameFromCtx(msg.Context())

		ctx, span := otel.Tracer("").Start(ctx, handler,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination", topic),
				attribute.String("messaging.message_id", msg.UUID),
			),
		)
		defer span.End()
		msg.SetContext(ctx)

		msgs, err := next(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return msgs, err
	}
}

// LoggingMiddleware logs message identity only. Payloads carry phone numbers and receipts.
func LoggingMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		logger := log.FromContext(msg.Context()).WithFields(logrus.Fields{
			"message_id":   msg.UUID,
			"message_name": msg.Metadata.Get("name"),
			"handler":      message.HandlerNameFromCtx(msg.Context()),
			"trace_id":     trace.SpanFromContext(msg.Context()).SpanContext().TraceID().String(),
		})
		msg.SetContext(log.ToContext(msg.Context(), logger))

		logger.Debug("Handling message")

		msgs, err := next(msg)
		if err != nil {
			logger.WithError(err).Error("Message handling failed")
		}

		return msgs, err
	}
}

func MetricsMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		start := time.Now()
		labels := prometheus.Labels{
			"topic":   message.SubscribeTopicFromCtx(msg.Context()),
			"handler": message.HandlerNameFromCtx(msg.Context()),
		}

		msgs, err := next(msg)
		if err != nil {
			metrics.MessagesProcessingFailed.With(labels).Inc()
		}
		metrics.MessagesProcessed.With(labels).Inc()
		metrics.MessagesProcessingDuration.With(labels).Observe(time.Since(start).Seconds())

		return msgs, err
	}
}

// AckPermanentErrorsMiddleware acks messages whose handler failed in a way a redelivery cannot
// fix, such as a payment result for an unknown checkout request.
func AckPermanentErrorsMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := next(msg)
		if err == nil || !entity.IsPermanent(err) {
			return msgs, err
		}

		handler := message.HandlerNameFromCtx(msg.Context())
		metrics.MessagesDropped.With(prometheus.Labels{
			"topic":   message.SubscribeTopicFromCtx(msg.Context()),
			"handler": handler,
		}).Inc()

		log.FromContext(msg.Context()).
			WithError(err).
			WithFields(logrus.Fields{"message_id": msg.UUID, "handler": handler}).
			Warn("Dropping message with permanent error")

		return nil, nil
	}
}
