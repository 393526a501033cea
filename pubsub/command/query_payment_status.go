package command

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"clubtickets/entity"
)

// QueryPaymentStatusHandler resolves a push the callback never arrived for. Provider failures are
// logged and dropped; the sweeper schedules the query again on its next run.
func (h Handler) QueryPaymentStatusHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"QueryPaymentStatusHandler",
		func(ctx context.Context, cmd *entity.QueryPaymentStatus) error {
			logger := log.FromContext(ctx).WithFields(logrus.Fields{
				"checkout_request_id": cmd.CheckoutRequestID,
				"ticket_id":           cmd.TicketID,
			})

			result, err := h.reconciler.QueryPayment(ctx, cmd.CheckoutRequestID)

			var gatewayErr *entity.GatewayError
			switch {
			case errors.As(err, &gatewayErr):
				logger.WithError(err).Warn("Payment status query failed")
				return nil
			case errors.Is(err, entity.ErrReconciliationMiss):
				return nil
			case err != nil:
				return err
			}

			logger.WithField("status", result.Status).Info("Payment status queried")
			return nil
		},
	)
}
