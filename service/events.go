package service

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"

	"clubtickets/authz"
	"clubtickets/entity"
)

type EventView struct {
	entity.Event
	TicketsSold int
}

type EventsService struct {
	events EventsRepository
	users  UsersRepository
	now    func() time.Time
}

func NewEventsService(events EventsRepository, users UsersRepository) *EventsService {
	if events == nil {
		panic("events repository must be set")
	}
	if users == nil {
		panic("users repository must be set")
	}

	return &EventsService{
		events: events,
		users:  users,
		now:    time.Now,
	}
}

// Create stores a new pending event. The leader must hold a running subscription.
func (s *EventsService) Create(ctx context.Context, actor entity.Actor, details entity.EventDetails) (entity.Event, error) {
	if err := authz.RequireLeader(actor); err != nil {
		return entity.Event{}, err
	}

	leader, err := s.users.Get(ctx, actor.UserID)
	if err != nil {
		return entity.Event{}, err
	}

	now := s.now()
	if err := authz.CanCreateEvent(actor, leader, now); err != nil {
		return entity.Event{}, err
	}

	event, err := entity.NewEvent(uuid.NewString(), leader.UserID, details, now)
	if err != nil {
		return entity.Event{}, err
	}

	if err := s.events.Add(ctx, event); err != nil {
		return entity.Event{}, err
	}

	log.FromContext(ctx).WithField("event_id", event.EventID).Info("Event created, waiting for approval")

	return event, nil
}

func (s *EventsService) Get(ctx context.Context, eventID string) (EventView, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return EventView{}, err
	}

	sold, err := s.events.TicketsSold(ctx, eventID)
	if err != nil {
		return EventView{}, err
	}

	return EventView{Event: event, TicketsSold: sold}, nil
}

func (s *EventsService) Edit(ctx context.Context, actor entity.Actor, eventID string, details entity.EventDetails) (entity.Event, error) {
	return s.events.UpdateByID(ctx, eventID, func(event entity.Event) (entity.Event, error) {
		if err := authz.CanMutate(actor, event, authz.ActionEdit); err != nil {
			return entity.Event{}, err
		}
		if err := event.Edit(details, s.now()); err != nil {
			return entity.Event{}, err
		}
		return event, nil
	})
}

func (s *EventsService) Cancel(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error) {
	return s.transition(ctx, actor, eventID, authz.ActionCancel, entity.EventStatusCancelled)
}

func (s *EventsService) Approve(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error) {
	return s.transition(ctx, actor, eventID, authz.ActionApprove, entity.EventStatusApproved)
}

func (s *EventsService) Reject(ctx context.Context, actor entity.Actor, eventID string) (entity.Event, error) {
	return s.transition(ctx, actor, eventID, authz.ActionReject, entity.EventStatusRejected)
}

func (s *EventsService) transition(
	ctx context.Context,
	actor entity.Actor,
	eventID string,
	action authz.EventAction,
	next entity.EventStatus,
) (entity.Event, error) {
	event, err := s.events.UpdateByID(ctx, eventID, func(event entity.Event) (entity.Event, error) {
		if err := authz.CanMutate(actor, event, action); err != nil {
			return entity.Event{}, err
		}
		if err := event.TransitionTo(next, s.now()); err != nil {
			return entity.Event{}, err
		}
		return event, nil
	})
	if err != nil {
		return entity.Event{}, err
	}

	log.FromContext(ctx).WithField("event_id", eventID).WithField("status", next).Info("Event status changed")

	return event, nil
}

// Delete removes the event together with all of its tickets and payment requests.
func (s *EventsService) Delete(ctx context.Context, actor entity.Actor, eventID string) error {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}

	if err := authz.CanMutate(actor, event, authz.ActionDelete); err != nil {
		return err
	}

	return s.events.Delete(ctx, eventID)
}
