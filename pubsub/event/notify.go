package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"clubtickets/entity"
)

func (h Handler) NotifyPaymentCompletedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyPaymentCompletedHandler",
		func(ctx context.Context, event *entity.TicketPaymentCompleted_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Notifying about completed payment")

			message := "Payment received. Your ticket is confirmed."
			if event.Receipt != "" {
				message = fmt.Sprintf("Payment of KES %s received (receipt %s). Your ticket is confirmed.", event.TotalAmount, event.Receipt)
			}

			return h.notifier.Notify(ctx, entity.Notification{
				UserID:   event.UserID,
				Type:     entity.NotificationPaymentSuccess,
				TicketID: event.TicketID,
				Message:  message,
			})
		},
	)
}

func (h Handler) NotifyPaymentFailedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyPaymentFailedHandler",
		func(ctx context.Context, event *entity.TicketPaymentFailed_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Notifying about failed payment")

			return h.notifier.Notify(ctx, entity.Notification{
				UserID:   event.UserID,
				Type:     entity.NotificationPaymentFailed,
				TicketID: event.TicketID,
				Message:  "Payment was not completed. You can buy the ticket again.",
			})
		},
	)
}

func (h Handler) NotifyTicketRefundedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyTicketRefundedHandler",
		func(ctx context.Context, event *entity.TicketRefunded_v1) error {
			return h.notifier.Notify(ctx, entity.Notification{
				UserID:   event.UserID,
				Type:     entity.NotificationTicketRefunded,
				TicketID: event.TicketID,
				Message:  "Your ticket was refunded.",
			})
		},
	)
}

func (h Handler) NotifySubscriptionActivatedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifySubscriptionActivatedHandler",
		func(ctx context.Context, event *entity.LeaderSubscriptionActivated_v1) error {
			return h.notifier.Notify(ctx, entity.Notification{
				UserID:  event.LeaderID,
				Type:    entity.NotificationSubscriptionActivated,
				Message: fmt.Sprintf("Your subscription is active until %s.", event.ExpiresAt.Format("2006-01-02")),
			})
		},
	)
}

func (h Handler) All() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		h.NotifyPaymentCompletedHandler(),
		h.NotifyPaymentFailedHandler(),
		h.NotifyTicketRefundedHandler(),
		h.NotifySubscriptionActivatedHandler(),
	}
}
