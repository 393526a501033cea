package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"clubtickets/entity"
	"clubtickets/metrics"
)

const (
	sourceCallback = "callback"
	sourceQuery    = "query"
)

// Reconciler applies payment outcomes to tickets. Callbacks and status queries go through the
// same path, so whichever arrives first wins and the other is a no-op.
type Reconciler struct {
	payments   PaymentsRepository
	gateway    PaymentGateway
	commandBus CommandBus

	// QueryAfter is how long a push may stay unanswered before the sweeper asks the provider.
	QueryAfter time.Duration
	// QueryBatch caps the number of status queries per sweep.
	QueryBatch int

	now func() time.Time
}

func NewReconciler(payments PaymentsRepository, gateway PaymentGateway, commandBus CommandBus) *Reconciler {
	if payments == nil {
		panic("payments repository must be set")
	}
	if gateway == nil {
		panic("payment gateway must be set")
	}
	if commandBus == nil {
		panic("command bus must be set")
	}

	return &Reconciler{
		payments:   payments,
		gateway:    gateway,
		commandBus: commandBus,
		QueryAfter: 2 * time.Minute,
		QueryBatch: 50,
		now:        time.Now,
	}
}

// HandleCallback applies an asynchronous result. An unknown token is a reconciliation miss:
// it is logged and counted, and the caller should still acknowledge the callback.
func (r *Reconciler) HandleCallback(ctx context.Context, result entity.PaymentResult) (entity.ReconcileResult, error) {
	return r.apply(ctx, sourceCallback, result)
}

// QueryPayment asks the provider for the outcome of a push and applies it when known.
func (r *Reconciler) QueryPayment(ctx context.Context, checkoutRequestID string) (entity.ReconcileResult, error) {
	query, err := r.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return entity.ReconcileResult{}, err
	}

	if !query.Resolved {
		return entity.ReconcileResult{Status: entity.ReconcilePending}, nil
	}

	return r.apply(ctx, sourceQuery, entity.PaymentResult{
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        query.ResultCode,
		ResultDesc:        query.ResultDesc,
	})
}

// QueryAwaiting schedules a status query for every push that has waited longer than QueryAfter.
func (r *Reconciler) QueryAwaiting(ctx context.Context) (int, error) {
	requests, err := r.payments.FindAwaitingResult(ctx, r.now().Add(-r.QueryAfter), r.QueryBatch)
	if err != nil {
		return 0, err
	}

	for _, request := range requests {
		err := r.commandBus.Send(ctx, entity.QueryPaymentStatus{
			Header:            entity.NewEventHeader(),
			CheckoutRequestID: request.CheckoutRequestID,
			TicketID:          request.TicketID,
		})
		if err != nil {
			return 0, fmt.Errorf("could not send payment status query for %s: %w", request.CheckoutRequestID, err)
		}
	}

	if len(requests) > 0 {
		log.FromContext(ctx).WithField("count", len(requests)).Info("Scheduled payment status queries")
	}

	return len(requests), nil
}

func (r *Reconciler) apply(ctx context.Context, source string, result entity.PaymentResult) (entity.ReconcileResult, error) {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"checkout_request_id": result.CheckoutRequestID,
		"result_code":         result.ResultCode,
		"source":              source,
	})

	outcome := result.Outcome()
	var status entity.ReconcileStatus

	attempt, err := r.payments.Resolve(ctx, result.CheckoutRequestID, func(attempt entity.PaymentAttempt) (entity.PaymentAttempt, []any, error) {
		now := r.now().UTC()

		if !attempt.Request.IsResolved() {
			code := result.ResultCode
			desc := result.ResultDesc
			attempt.Request.ResultCode = &code
			attempt.Request.ResultDesc = &desc
			attempt.Request.ResolvedAt = &now
		}

		status = entity.ResolveAttempt(attempt, outcome)
		if status != entity.ReconcileApplied {
			return attempt, nil, nil
		}

		attempt.Ticket.Finalize(outcome, result.Receipt, now)

		return attempt, []any{paymentEvent(attempt, result)}, nil
	})
	if errors.Is(err, entity.ErrReconciliationMiss) {
		metrics.ReconciliationMisses.WithLabelValues(source).Inc()
		logger.Warn("Payment result does not match any payment request")
		return entity.ReconcileResult{}, err
	}
	if err != nil {
		return entity.ReconcileResult{}, err
	}

	metrics.PaymentResults.WithLabelValues(source, string(status)).Inc()
	logger.WithFields(logrus.Fields{
		"ticket_id": attempt.Ticket.TicketID,
		"status":    status,
	}).Info("Payment result reconciled")

	return entity.ReconcileResult{
		Status:   status,
		TicketID: attempt.Ticket.TicketID,
		Outcome:  outcome,
	}, nil
}

func paymentEvent(attempt entity.PaymentAttempt, result entity.PaymentResult) any {
	ticket := attempt.Ticket
	key := attempt.Request.CheckoutRequestID

	if ticket.PaymentStatus == entity.TicketStatusCompleted {
		return entity.TicketPaymentCompleted_v1{
			Header:            entity.NewEventHeaderWithIdempotencyKey("completed-" + key),
			TicketID:          ticket.TicketID,
			EventID:           ticket.EventID,
			UserID:            ticket.UserID,
			CheckoutRequestID: key,
			Receipt:           result.Receipt,
			TotalAmount:       ticket.TotalAmount.StringFixed(2),
		}
	}

	return entity.TicketPaymentFailed_v1{
		Header:            entity.NewEventHeaderWithIdempotencyKey("failed-" + key),
		TicketID:          ticket.TicketID,
		EventID:           ticket.EventID,
		UserID:            ticket.UserID,
		CheckoutRequestID: key,
		ResultCode:        result.ResultCode,
		ResultDesc:        result.ResultDesc,
	}
}
