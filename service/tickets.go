package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clubtickets/authz"
	"clubtickets/entity"
	"clubtickets/metrics"
)

type PurchaseRequest struct {
	EventID string
	Phone   string
	Tier    entity.TicketTier
}

// PaymentInitiation is the ticket after a push attempt. PaymentErr is set when the push was not
// accepted; the ticket is then either still pending (retry the push) or failed (rejected).
type PaymentInitiation struct {
	Ticket            entity.Ticket
	CheckoutRequestID string
	PaymentErr        error
}

type TicketsService struct {
	tickets  TicketsRepository
	payments PaymentsRepository
	gateway  PaymentGateway
	now      func() time.Time
}

func NewTicketsService(tickets TicketsRepository, payments PaymentsRepository, gateway PaymentGateway) *TicketsService {
	if tickets == nil {
		panic("tickets repository must be set")
	}
	if payments == nil {
		panic("payments repository must be set")
	}
	if gateway == nil {
		panic("payment gateway must be set")
	}

	return &TicketsService{
		tickets:  tickets,
		payments: payments,
		gateway:  gateway,
		now:      time.Now,
	}
}

// Purchase creates a pending ticket and pushes the payment prompt. The ticket is returned even when
// the push fails; the push error is reported in PaymentInitiation.PaymentErr.
func (s *TicketsService) Purchase(ctx context.Context, actor entity.Actor, req PurchaseRequest) (PaymentInitiation, error) {
	phone, err := entity.NormalizePhone(req.Phone)
	if err != nil {
		return PaymentInitiation{}, err
	}

	tier := req.Tier
	if tier == "" {
		tier = entity.TierRegular
	}

	ticket, err := s.tickets.CreatePending(ctx, req.EventID, actor.UserID, func(facts authz.PurchaseFacts) (entity.Ticket, []any, error) {
		now := s.now()

		if err := authz.CanPurchase(actor, facts, now); err != nil {
			return entity.Ticket{}, nil, err
		}

		ticket, err := entity.NewPendingTicket(uuid.NewString(), facts.Event, actor.UserID, tier, phone, now)
		if err != nil {
			return entity.Ticket{}, nil, err
		}

		return ticket, []any{entity.TicketPurchased_v1{
			Header:      entity.NewEventHeaderWithIdempotencyKey("purchased-" + ticket.TicketID),
			TicketID:    ticket.TicketID,
			EventID:     ticket.EventID,
			UserID:      ticket.UserID,
			Tier:        ticket.Tier,
			TotalAmount: ticket.TotalAmount.StringFixed(2),
		}}, nil
	})
	if err != nil {
		var authErr *entity.AuthorizationError
		if errors.As(err, &authErr) {
			metrics.PurchasesDenied.WithLabelValues(string(authErr.Reason)).Inc()
		}
		return PaymentInitiation{}, err
	}

	metrics.TicketsPurchased.WithLabelValues(string(ticket.Tier)).Inc()

	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id": ticket.TicketID,
		"event_id":  ticket.EventID,
		"total":     ticket.TotalAmount.StringFixed(2),
	}).Info("Ticket created, requesting payment")

	return s.push(ctx, ticket)
}

// InitiatePayment sends a new push for a pending ticket, for example after an ambiguous failure.
func (s *TicketsService) InitiatePayment(ctx context.Context, actor entity.Actor, ticketID string) (PaymentInitiation, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return PaymentInitiation{}, err
	}

	if err := authz.CanPayTicket(actor, ticket); err != nil {
		return PaymentInitiation{}, err
	}

	if ticket.PaymentStatus != entity.TicketStatusPendingPayment {
		return PaymentInitiation{}, entity.Deny(entity.ReasonInvalidTransition)
	}

	return s.push(ctx, ticket)
}

// push records the accepted request before returning, so a callback can always find its token.
// A synchronous rejection fails the ticket right away; an ambiguous error leaves it pending.
func (s *TicketsService) push(ctx context.Context, ticket entity.Ticket) (PaymentInitiation, error) {
	logger := log.FromContext(ctx).WithField("ticket_id", ticket.TicketID)

	result, err := s.gateway.RequestPush(ctx, entity.PushRequest{
		Phone:       ticket.PaymentPhone,
		Amount:      ticket.TotalAmount,
		Reference:   ticket.TicketID,
		Description: "Event ticket",
	})
	if err != nil {
		var gatewayErr *entity.GatewayError
		if errors.As(err, &gatewayErr) && gatewayErr.Rejected {
			metrics.PaymentPushes.WithLabelValues("rejected").Inc()
			logger.WithError(err).Warn("Push payment rejected, failing ticket")

			failed, failErr := s.failRejected(ctx, ticket, gatewayErr)
			if failErr != nil {
				return PaymentInitiation{}, failErr
			}
			return PaymentInitiation{Ticket: failed, PaymentErr: err}, nil
		}

		metrics.PaymentPushes.WithLabelValues("ambiguous").Inc()
		logger.WithError(err).Warn("Push payment outcome unknown, ticket stays pending")

		if !errors.As(err, &gatewayErr) {
			err = &entity.GatewayError{Op: "push", Err: err}
		}
		return PaymentInitiation{Ticket: ticket, PaymentErr: err}, nil
	}

	metrics.PaymentPushes.WithLabelValues("accepted").Inc()

	err = s.payments.Add(ctx, entity.PaymentRequest{
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		TicketID:          ticket.TicketID,
		Phone:             ticket.PaymentPhone,
		Amount:            ticket.TotalAmount.Ceil(),
		RequestedAt:       s.now().UTC(),
	})
	if err != nil {
		logger.WithError(err).WithField("checkout_request_id", result.CheckoutRequestID).
			Error("Push accepted but payment request could not be stored")
		return PaymentInitiation{}, fmt.Errorf("could not store payment request: %w", err)
	}

	return PaymentInitiation{
		Ticket:            ticket,
		CheckoutRequestID: result.CheckoutRequestID,
	}, nil
}

func (s *TicketsService) failRejected(ctx context.Context, ticket entity.Ticket, gatewayErr *entity.GatewayError) (entity.Ticket, error) {
	return s.tickets.UpdateByID(ctx, ticket.TicketID, func(ticket entity.Ticket) (entity.Ticket, []any, error) {
		if !ticket.Finalize(entity.PaymentOutcomeFailed, "", s.now()) {
			return ticket, nil, nil
		}

		return ticket, []any{entity.TicketPaymentFailed_v1{
			Header:     entity.NewEventHeaderWithIdempotencyKey("failed-" + ticket.TicketID),
			TicketID:   ticket.TicketID,
			EventID:    ticket.EventID,
			UserID:     ticket.UserID,
			ResultCode: -1,
			ResultDesc: gatewayErr.Error(),
		}}, nil
	})
}

func (s *TicketsService) Get(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, err
	}

	if err := authz.CanViewTicket(actor, ticket); err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

// Cancel lets the holder give up a ticket that was never paid, freeing the slot.
func (s *TicketsService) Cancel(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error) {
	return s.tickets.UpdateByID(ctx, ticketID, func(ticket entity.Ticket) (entity.Ticket, []any, error) {
		if err := authz.CanPayTicket(actor, ticket); err != nil {
			return entity.Ticket{}, nil, err
		}

		if err := ticket.TransitionTo(entity.TicketStatusCancelled, s.now()); err != nil {
			return entity.Ticket{}, nil, err
		}

		return ticket, nil, nil
	})
}

// Refund is the only way out of completed. The money itself is returned outside the system.
func (s *TicketsService) Refund(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return entity.Ticket{}, err
	}

	return s.tickets.UpdateByID(ctx, ticketID, func(ticket entity.Ticket) (entity.Ticket, []any, error) {
		if err := ticket.TransitionTo(entity.TicketStatusRefunded, s.now()); err != nil {
			return entity.Ticket{}, nil, err
		}

		return ticket, []any{entity.TicketRefunded_v1{
			Header:   entity.NewEventHeaderWithIdempotencyKey("refunded-" + ticket.TicketID),
			TicketID: ticket.TicketID,
			UserID:   ticket.UserID,
		}}, nil
	})
}
