package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubtickets/entity"
)

func (f *fixture) purchase(t *testing.T, member entity.Actor, event entity.Event) PaymentInitiation {
	t.Helper()

	res, err := f.tickets.Purchase(context.Background(), member, PurchaseRequest{EventID: event.EventID, Phone: testPhone})
	require.NoError(t, err)
	require.NoError(t, res.PaymentErr)
	return res
}

func TestReconciler_HandleCallback_idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.addMember(f.leader)
	event := f.addApprovedEvent(f.leader, 500, nil)
	res := f.purchase(t, member, event)

	callback := entity.PaymentResult{
		CheckoutRequestID: res.CheckoutRequestID,
		ResultCode:        entity.ResultCodeSuccess,
		ResultDesc:        "The service request is processed successfully.",
		Receipt:           "ABC123",
	}

	first, err := f.reconciler.HandleCallback(ctx, callback)
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileApplied, first.Status)
	assert.Equal(t, res.Ticket.TicketID, first.TicketID)

	callback.Receipt = "OTHER"
	second, err := f.reconciler.HandleCallback(ctx, callback)
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileAlreadyFinal, second.Status)

	ticket := f.store.ticket(res.Ticket.TicketID)
	assert.Equal(t, entity.TicketStatusCompleted, ticket.PaymentStatus)
	require.NotNil(t, ticket.MpesaReceipt)
	assert.Equal(t, "ABC123", *ticket.MpesaReceipt)

	request := f.store.payment(res.CheckoutRequestID)
	require.True(t, request.IsResolved())
	assert.Equal(t, 0, *request.ResultCode)

	completed := 0
	for _, e := range f.store.publishedEvents() {
		if _, ok := e.(entity.TicketPaymentCompleted_v1); ok {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	view, err := f.events.Get(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TicketsSold)
}

func TestReconciler_HandleCallback_unknown_token(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.addMember(f.leader)
	event := f.addApprovedEvent(f.leader, 500, nil)
	res := f.purchase(t, member, event)

	// a prefix of a real token must not match it
	_, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: res.CheckoutRequestID[:10],
		ResultCode:        entity.ResultCodeSuccess,
	})
	assert.ErrorIs(t, err, entity.ErrReconciliationMiss)

	assert.Equal(t, entity.TicketStatusPendingPayment, f.store.ticket(res.Ticket.TicketID).PaymentStatus)
	assert.False(t, f.store.payment(res.CheckoutRequestID).IsResolved())
}

func TestReconciler_HandleCallback_retried_push(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := time.Now()
	f.tickets.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	member := f.addMember(f.leader)
	event := f.addApprovedEvent(f.leader, 500, nil)
	first := f.purchase(t, member, event)

	second, err := f.tickets.InitiatePayment(ctx, member, first.Ticket.TicketID)
	require.NoError(t, err)
	require.NoError(t, second.PaymentErr)

	stale, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: first.CheckoutRequestID,
		ResultCode:        1037,
		ResultDesc:        "DS timeout user cannot be reached",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileStale, stale.Status)
	assert.Equal(t, entity.TicketStatusPendingPayment, f.store.ticket(first.Ticket.TicketID).PaymentStatus)
	assert.True(t, f.store.payment(first.CheckoutRequestID).IsResolved())

	// the older prompt was paid after all
	applied, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: first.CheckoutRequestID,
		ResultCode:        entity.ResultCodeSuccess,
		Receipt:           "LATE01",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileApplied, applied.Status)
	assert.Equal(t, entity.TicketStatusCompleted, f.store.ticket(first.Ticket.TicketID).PaymentStatus)

	final, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: second.CheckoutRequestID,
		ResultCode:        1032,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileAlreadyFinal, final.Status)
	assert.Equal(t, entity.TicketStatusCompleted, f.store.ticket(first.Ticket.TicketID).PaymentStatus)
}

func TestReconciler_QueryPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.addMember(f.leader)
	event := f.addApprovedEvent(f.leader, 500, nil)
	res := f.purchase(t, member, event)

	pending, err := f.reconciler.QueryPayment(ctx, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcilePending, pending.Status)
	assert.Equal(t, entity.TicketStatusPendingPayment, f.store.ticket(res.Ticket.TicketID).PaymentStatus)

	f.gateway.SetResult(res.CheckoutRequestID, entity.QueryResult{Resolved: true, ResultCode: 1032, ResultDesc: "Request cancelled by user"})

	resolved, err := f.reconciler.QueryPayment(ctx, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileApplied, resolved.Status)
	assert.Equal(t, entity.PaymentOutcomeFailed, resolved.Outcome)
	assert.Equal(t, entity.TicketStatusFailed, f.store.ticket(res.Ticket.TicketID).PaymentStatus)

	// the callback arriving after the query changes nothing
	late, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: res.CheckoutRequestID,
		ResultCode:        1032,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReconcileAlreadyFinal, late.Status)
}

func TestReconciler_QueryAwaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := f.addApprovedEvent(f.leader, 500, nil)
	waiting := f.purchase(t, f.addMember(f.leader), event)
	paid := f.purchase(t, f.addMember(f.leader), event)

	_, err := f.reconciler.HandleCallback(ctx, entity.PaymentResult{
		CheckoutRequestID: paid.CheckoutRequestID,
		ResultCode:        entity.ResultCodeSuccess,
	})
	require.NoError(t, err)

	count, err := f.reconciler.QueryAwaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "fresh pushes are not queried")

	f.reconciler.now = func() time.Time {
		return time.Now().Add(f.reconciler.QueryAfter + time.Minute)
	}

	count, err = f.reconciler.QueryAwaiting(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.Len(t, f.bus.sent, 1)
	command, ok := f.bus.sent[0].(entity.QueryPaymentStatus)
	require.True(t, ok)
	assert.Equal(t, waiting.CheckoutRequestID, command.CheckoutRequestID)
	assert.Equal(t, waiting.Ticket.TicketID, command.TicketID)
}
