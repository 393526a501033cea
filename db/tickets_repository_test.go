package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubtickets/entity"
)

func TestTicketsPostgresRepository_CreatePending(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(24*time.Hour))
	member := addMember(t, ctx, leader.UserID)
	event := addApprovedEvent(t, ctx, leader.UserID, nil)

	ticket, err := repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	require.NoError(t, err)

	stored, err := repo.Get(ctx, ticket.TicketID)
	require.NoError(t, err)

	assert.Equal(t, entity.TicketStatusPendingPayment, stored.PaymentStatus)
	assert.Equal(t, "500.00", stored.TicketPrice.StringFixed(2))
	assert.Equal(t, "25.00", stored.Commission.StringFixed(2))
	assert.Equal(t, "525.00", stored.TotalAmount.StringFixed(2))
	assert.Nil(t, stored.MpesaReceipt)

	_, err = repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	assert.True(t, entity.IsDenied(err, entity.ReasonDuplicateTicket), "got %v", err)
}

func TestTicketsPostgresRepository_CreatePending_last_slot_race(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(24*time.Hour))
	event := addApprovedEvent(t, ctx, leader.UserID, lo.ToPtr(1))

	members := []entity.User{
		addMember(t, ctx, leader.UserID),
		addMember(t, ctx, leader.UserID),
	}

	errs := make([]error, len(members))
	wg := sync.WaitGroup{}
	for i, member := range members {
		wg.Add(1)
		go func(i int, member entity.User) {
			defer wg.Done()
			_, errs[i] = repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
		}(i, member)
	}
	wg.Wait()

	succeeded := lo.CountBy(errs, func(err error) bool { return err == nil })
	soldOut := lo.CountBy(errs, func(err error) bool { return entity.IsDenied(err, entity.ReasonSoldOut) })

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, soldOut)
}

func TestTicketsPostgresRepository_CreatePending_same_user_race(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(24*time.Hour))
	member := addMember(t, ctx, leader.UserID)
	event := addApprovedEvent(t, ctx, leader.UserID, nil)

	const attempts = 5

	errs := make([]error, attempts)
	wg := sync.WaitGroup{}
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, lo.CountBy(errs, func(err error) bool { return err == nil }))
	assert.Equal(t, attempts-1, lo.CountBy(errs, func(err error) bool {
		return entity.IsDenied(err, entity.ReasonDuplicateTicket)
	}))
}

func TestTicketsPostgresRepository_repurchase_after_failure(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(24*time.Hour))
	member := addMember(t, ctx, leader.UserID)
	event := addApprovedEvent(t, ctx, leader.UserID, lo.ToPtr(1))

	first, err := repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	require.NoError(t, err)

	_, err = repo.UpdateByID(ctx, first.TicketID, func(ticket entity.Ticket) (entity.Ticket, []any, error) {
		ticket.Finalize(entity.PaymentOutcomeFailed, "", time.Now())
		return ticket, nil, nil
	})
	require.NoError(t, err)

	second, err := repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	require.NoError(t, err)
	assert.NotEqual(t, first.TicketID, second.TicketID)

	failed, err := repo.Get(ctx, first.TicketID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusFailed, failed.PaymentStatus)
}

func TestTicketsPostgresRepository_CreatePending_expired_leader(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(-time.Minute))
	member := addMember(t, ctx, leader.UserID)
	event := addApprovedEvent(t, ctx, leader.UserID, nil)

	_, err := repo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	assert.True(t, entity.IsDenied(err, entity.ReasonLeaderSubscriptionInactive), "got %v", err)
}

func TestTicketsPostgresRepository_Get_not_found(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketsPostgresRepository(GetDb(t))

	_, err := repo.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = repo.Get(ctx, "6b9a3c4e-40f1-4e3a-9f59-3d5c4b9f0c11")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEventsPostgresRepository_Delete_cascades(t *testing.T) {
	ctx := context.Background()
	ticketsRepo := NewTicketsPostgresRepository(GetDb(t))
	eventsRepo := NewEventsPostgresRepository(GetDb(t))

	leader := addLeader(t, ctx, time.Now().Add(24*time.Hour))
	member := addMember(t, ctx, leader.UserID)
	event := addApprovedEvent(t, ctx, leader.UserID, nil)

	ticket, err := ticketsRepo.CreatePending(ctx, event.EventID, member.UserID, purchaseDecision(member))
	require.NoError(t, err)

	require.NoError(t, eventsRepo.Delete(ctx, event.EventID))

	_, err = ticketsRepo.Get(ctx, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	err = eventsRepo.Delete(ctx, event.EventID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
