package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"clubtickets/entity"
	"clubtickets/gateway"
)

const testPhone = "0712345678"

type fixture struct {
	store   *memoryStore
	gateway *gateway.PaymentGatewayMock
	bus     *recordingBus

	tickets       *TicketsService
	reconciler    *Reconciler
	events        *EventsService
	subscriptions *SubscriptionsService
	clubs         *ClubsService

	admin  entity.Actor
	leader entity.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemoryStore()
	gw := &gateway.PaymentGatewayMock{}
	bus := &recordingBus{}

	f := &fixture{
		store:         store,
		gateway:       gw,
		bus:           bus,
		tickets:       NewTicketsService(memoryTickets{store}, memoryPayments{store}, gw),
		reconciler:    NewReconciler(memoryPayments{store}, gw, bus),
		events:        NewEventsService(memoryEvents{store}, memoryUsers{store}),
		subscriptions: NewSubscriptionsService(memoryUsers{store}, bus),
		clubs:         NewClubsService(memoryUsers{store}),
	}

	f.admin = f.addUser(entity.User{Role: entity.RoleAdmin})
	f.leader = f.addActiveLeader(time.Now().Add(24 * time.Hour))

	return f
}

func (f *fixture) addUser(user entity.User) entity.Actor {
	user.UserID = uuid.NewString()
	user.Username = "user-" + user.UserID[:8]
	user.CreatedAt = time.Now().UTC()
	f.store.putUser(user)

	actor := entity.Actor{UserID: user.UserID, Role: user.Role}
	if user.LeaderID != nil {
		actor.LeaderID = *user.LeaderID
	}
	return actor
}

func (f *fixture) addActiveLeader(expiresAt time.Time) entity.Actor {
	code := strings.ToUpper(uuid.NewString()[:8])
	return f.addUser(entity.User{
		Role:                  entity.RoleLeader,
		SubscriptionActive:    true,
		SubscriptionExpiresAt: &expiresAt,
		ClubAccessCode:        &code,
	})
}

func (f *fixture) addMember(leader entity.Actor) entity.Actor {
	return f.addUser(entity.User{Role: entity.RoleMember, LeaderID: &leader.UserID})
}

func (f *fixture) addApprovedEvent(leader entity.Actor, price int64, capacity *int) entity.Event {
	now := time.Now()
	event, err := entity.NewEvent(uuid.NewString(), leader.UserID, entity.EventDetails{
		Title:       "Season opener",
		Location:    "Nairobi",
		EventDate:   now.Add(7 * 24 * time.Hour),
		TicketPrice: decimal.NewFromInt(price),
		VIPPrice:    decimal.NewNullDecimal(decimal.NewFromInt(price * 2)),
		Capacity:    capacity,
	}, now)
	if err != nil {
		panic(err)
	}
	event.Status = entity.EventStatusApproved
	f.store.putEvent(event)
	return event
}

func (f *fixture) expireLeader(leader entity.Actor) {
	f.store.lock.Lock()
	defer f.store.lock.Unlock()

	user := f.store.users[leader.UserID]
	expired := time.Now().Add(-time.Second)
	user.SubscriptionExpiresAt = &expired
	f.store.users[leader.UserID] = user
}

func intPtr(i int) *int {
	return &i
}
