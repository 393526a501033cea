package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"clubtickets/entity"
)

type PaymentReconciler interface {
	QueryPayment(ctx context.Context, checkoutRequestID string) (entity.ReconcileResult, error)
}

type Handler struct {
	reconciler PaymentReconciler
}

func NewHandler(reconciler PaymentReconciler) Handler {
	if reconciler == nil {
		panic("missing reconciler")
	}

	return Handler{reconciler: reconciler}
}

func (h Handler) All() []cqrs.CommandHandler {
	return []cqrs.CommandHandler{
		h.QueryPaymentStatusHandler(),
	}
}
