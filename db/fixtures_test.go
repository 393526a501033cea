package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clubtickets/authz"
	"clubtickets/entity"
)

func addLeader(t *testing.T, ctx context.Context, subscriptionExpiresAt time.Time) entity.User {
	t.Helper()

	leader := entity.User{
		UserID:                uuid.NewString(),
		Username:              "leader-" + uuid.NewString(),
		Role:                  entity.RoleLeader,
		SubscriptionActive:    true,
		SubscriptionExpiresAt: lo.ToPtr(subscriptionExpiresAt.UTC()),
		CreatedAt:             time.Now().UTC(),
	}
	require.NoError(t, NewUsersPostgresRepository(GetDb(t)).Add(ctx, leader))
	return leader
}

func addMember(t *testing.T, ctx context.Context, leaderID string) entity.User {
	t.Helper()

	member := entity.User{
		UserID:    uuid.NewString(),
		Username:  "member-" + uuid.NewString(),
		Role:      entity.RoleMember,
		LeaderID:  lo.ToPtr(leaderID),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewUsersPostgresRepository(GetDb(t)).Add(ctx, member))
	return member
}

func addApprovedEvent(t *testing.T, ctx context.Context, leaderID string, capacity *int) entity.Event {
	t.Helper()

	now := time.Now().UTC()
	event, err := entity.NewEvent(uuid.NewString(), leaderID, entity.EventDetails{
		Title:       "Club night",
		Location:    "Nairobi",
		EventDate:   now.Add(7 * 24 * time.Hour),
		TicketPrice: decimal.NewFromInt(500),
		Capacity:    capacity,
	}, now)
	require.NoError(t, err)
	require.NoError(t, event.TransitionTo(entity.EventStatusApproved, now))

	require.NoError(t, NewEventsPostgresRepository(GetDb(t)).Add(ctx, event))
	return event
}

func purchaseDecision(member entity.User) func(facts authz.PurchaseFacts) (entity.Ticket, []any, error) {
	return func(facts authz.PurchaseFacts) (entity.Ticket, []any, error) {
		actor := entity.Actor{UserID: member.UserID, Role: member.Role, LeaderID: lo.FromPtr(member.LeaderID)}

		now := time.Now()
		if err := authz.CanPurchase(actor, facts, now); err != nil {
			return entity.Ticket{}, nil, err
		}

		ticket, err := entity.NewPendingTicket(uuid.NewString(), facts.Event, member.UserID, entity.TierRegular, "254712345678", now)
		if err != nil {
			return entity.Ticket{}, nil, err
		}

		return ticket, []any{entity.TicketPurchased_v1{
			Header:      entity.NewEventHeader(),
			TicketID:    ticket.TicketID,
			EventID:     ticket.EventID,
			UserID:      ticket.UserID,
			Tier:        ticket.Tier,
			TotalAmount: ticket.TotalAmount.StringFixed(2),
		}}, nil
	}
}
