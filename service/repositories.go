package service

import (
	"context"
	"time"

	"clubtickets/authz"
	"clubtickets/entity"
)

type UsersRepository interface {
	Get(ctx context.Context, userID string) (entity.User, error)
	GetByClubAccessCode(ctx context.Context, code string) (entity.User, error)
	ClubAccessCodeExists(ctx context.Context, code string) (bool, error)
	UpdateByID(ctx context.Context, userID string, updateFn func(user entity.User) (entity.User, error)) (entity.User, error)
}

type EventsRepository interface {
	Add(ctx context.Context, event entity.Event) error
	Get(ctx context.Context, eventID string) (entity.Event, error)
	TicketsSold(ctx context.Context, eventID string) (int, error)
	UpdateByID(ctx context.Context, eventID string, updateFn func(event entity.Event) (entity.Event, error)) (entity.Event, error)
	Delete(ctx context.Context, eventID string) error
}

type TicketsRepository interface {
	CreatePending(
		ctx context.Context,
		eventID string,
		userID string,
		decide func(facts authz.PurchaseFacts) (entity.Ticket, []any, error),
	) (entity.Ticket, error)
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	UpdateByID(
		ctx context.Context,
		ticketID string,
		updateFn func(ticket entity.Ticket) (entity.Ticket, []any, error),
	) (entity.Ticket, error)
}

type PaymentsRepository interface {
	Add(ctx context.Context, request entity.PaymentRequest) error
	Resolve(
		ctx context.Context,
		checkoutRequestID string,
		updateFn func(attempt entity.PaymentAttempt) (entity.PaymentAttempt, []any, error),
	) (entity.PaymentAttempt, error)
	FindAwaitingResult(ctx context.Context, requestedBefore time.Time, limit int) ([]entity.PaymentRequest, error)
}

type PaymentGateway interface {
	RequestPush(ctx context.Context, push entity.PushRequest) (entity.PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (entity.QueryResult, error)
}

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

type CommandBus interface {
	Send(ctx context.Context, command any) error
}
