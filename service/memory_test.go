package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clubtickets/authz"
	"clubtickets/entity"
)

// memoryStore backs the repository doubles. One mutex serializes everything, standing in for
// the row locks the Postgres repositories take.
type memoryStore struct {
	lock sync.Mutex

	users     map[string]entity.User
	events    map[string]entity.Event
	tickets   map[string]entity.Ticket
	payments  map[string]entity.PaymentRequest
	published []any
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[string]entity.User{},
		events:   map[string]entity.Event{},
		tickets:  map[string]entity.Ticket{},
		payments: map[string]entity.PaymentRequest{},
	}
}

func (s *memoryStore) putUser(user entity.User) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[user.UserID] = user
}

func (s *memoryStore) putEvent(event entity.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events[event.EventID] = event
}

func (s *memoryStore) ticket(id string) entity.Ticket {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tickets[id]
}

func (s *memoryStore) payment(id string) entity.PaymentRequest {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.payments[id]
}

func (s *memoryStore) publishedEvents() []any {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]any(nil), s.published...)
}

type memoryUsers struct{ *memoryStore }

func (r memoryUsers) Get(ctx context.Context, userID string) (entity.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return entity.User{}, entity.ErrNotFound
	}
	return user, nil
}

func (r memoryUsers) GetByClubAccessCode(ctx context.Context, code string) (entity.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, user := range r.users {
		if user.Role == entity.RoleLeader && user.ClubAccessCode != nil && *user.ClubAccessCode == code {
			return user, nil
		}
	}
	return entity.User{}, entity.ErrNotFound
}

func (r memoryUsers) ClubAccessCodeExists(ctx context.Context, code string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, user := range r.users {
		if user.ClubAccessCode != nil && *user.ClubAccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryUsers) UpdateByID(ctx context.Context, userID string, updateFn func(user entity.User) (entity.User, error)) (entity.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return entity.User{}, entity.ErrNotFound
	}

	user, err := updateFn(user)
	if err != nil {
		return entity.User{}, err
	}

	if user.ClubAccessCode != nil {
		for id, other := range r.users {
			if id != userID && other.ClubAccessCode != nil && *other.ClubAccessCode == *user.ClubAccessCode {
				return entity.User{}, fmt.Errorf("club access code taken: %w", entity.ErrConflict)
			}
		}
	}

	r.users[userID] = user
	return user, nil
}

type memoryEvents struct{ *memoryStore }

func (r memoryEvents) Add(ctx context.Context, event entity.Event) error {
	r.putEvent(event)
	return nil
}

func (r memoryEvents) Get(ctx context.Context, eventID string) (entity.Event, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return entity.Event{}, entity.ErrNotFound
	}
	return event, nil
}

func (r memoryEvents) TicketsSold(ctx context.Context, eventID string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	sold := 0
	for _, ticket := range r.tickets {
		if ticket.EventID == eventID && ticket.PaymentStatus == entity.TicketStatusCompleted {
			sold++
		}
	}
	return sold, nil
}

func (r memoryEvents) UpdateByID(ctx context.Context, eventID string, updateFn func(event entity.Event) (entity.Event, error)) (entity.Event, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return entity.Event{}, entity.ErrNotFound
	}

	event, err := updateFn(event)
	if err != nil {
		return entity.Event{}, err
	}

	r.events[eventID] = event
	return event, nil
}

func (r memoryEvents) Delete(ctx context.Context, eventID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.events[eventID]; !ok {
		return entity.ErrNotFound
	}
	delete(r.events, eventID)

	for id, ticket := range r.tickets {
		if ticket.EventID == eventID {
			delete(r.tickets, id)
		}
	}
	return nil
}

type memoryTickets struct{ *memoryStore }

func (r memoryTickets) CreatePending(
	ctx context.Context,
	eventID string,
	userID string,
	decide func(facts authz.PurchaseFacts) (entity.Ticket, []any, error),
) (entity.Ticket, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}

	facts := authz.PurchaseFacts{
		Event:  event,
		Leader: r.users[event.LeaderID],
	}
	for _, ticket := range r.tickets {
		if ticket.EventID != eventID || !ticket.PaymentStatus.HoldsSlot() {
			continue
		}
		facts.SlotsTaken++
		if ticket.UserID == userID {
			facts.HoldsTicket = true
		}
	}

	ticket, events, err := decide(facts)
	if err != nil {
		return entity.Ticket{}, err
	}

	r.tickets[ticket.TicketID] = ticket
	r.published = append(r.published, events...)
	return ticket, nil
}

func (r memoryTickets) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}
	return ticket, nil
}

func (r memoryTickets) UpdateByID(
	ctx context.Context,
	ticketID string,
	updateFn func(ticket entity.Ticket) (entity.Ticket, []any, error),
) (entity.Ticket, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}

	ticket, events, err := updateFn(ticket)
	if err != nil {
		return entity.Ticket{}, err
	}

	r.tickets[ticketID] = ticket
	r.published = append(r.published, events...)
	return ticket, nil
}

type memoryPayments struct{ *memoryStore }

func (r memoryPayments) Add(ctx context.Context, request entity.PaymentRequest) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.payments[request.CheckoutRequestID]; !ok {
		r.payments[request.CheckoutRequestID] = request
	}
	return nil
}

func (r memoryPayments) Resolve(
	ctx context.Context,
	checkoutRequestID string,
	updateFn func(attempt entity.PaymentAttempt) (entity.PaymentAttempt, []any, error),
) (entity.PaymentAttempt, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	request, ok := r.payments[checkoutRequestID]
	if !ok {
		return entity.PaymentAttempt{}, entity.ErrReconciliationMiss
	}

	isLatest := true
	for _, other := range r.payments {
		if other.TicketID == request.TicketID && other.RequestedAt.After(request.RequestedAt) {
			isLatest = false
		}
	}

	attempt, events, err := updateFn(entity.PaymentAttempt{
		Request:  request,
		Ticket:   r.tickets[request.TicketID],
		IsLatest: isLatest,
	})
	if err != nil {
		return entity.PaymentAttempt{}, err
	}

	r.payments[checkoutRequestID] = attempt.Request
	r.tickets[request.TicketID] = attempt.Ticket
	r.published = append(r.published, events...)
	return attempt, nil
}

func (r memoryPayments) FindAwaitingResult(ctx context.Context, requestedBefore time.Time, limit int) ([]entity.PaymentRequest, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	latest := map[string]entity.PaymentRequest{}
	for _, request := range r.payments {
		if r.tickets[request.TicketID].PaymentStatus != entity.TicketStatusPendingPayment {
			continue
		}
		if current, ok := latest[request.TicketID]; !ok || request.RequestedAt.After(current.RequestedAt) {
			latest[request.TicketID] = request
		}
	}

	var awaiting []entity.PaymentRequest
	for _, request := range latest {
		if !request.IsResolved() && request.RequestedAt.Before(requestedBefore) {
			awaiting = append(awaiting, request)
		}
	}
	sort.Slice(awaiting, func(i, j int) bool {
		return awaiting[i].RequestedAt.Before(awaiting[j].RequestedAt)
	})
	if len(awaiting) > limit {
		awaiting = awaiting[:limit]
	}
	return awaiting, nil
}

type recordingBus struct {
	lock sync.Mutex

	err       error
	published []any
	sent      []any
}

func (b *recordingBus) Publish(ctx context.Context, event any) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.published = append(b.published, event)
	return b.err
}

func (b *recordingBus) Send(ctx context.Context, command any) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.sent = append(b.sent, command)
	return b.err
}
