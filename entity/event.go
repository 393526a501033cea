package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusApproved  EventStatus = "approved"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusCancelled EventStatus = "cancelled"
)

type TicketTier string

const (
	TierRegular TicketTier = "regular"
	TierVIP     TicketTier = "vip"
	TierVVIP    TicketTier = "vvip"
)

func ParseTicketTier(s string) (TicketTier, error) {
	switch TicketTier(s) {
	case "", TierRegular:
		return TierRegular, nil
	case TierVIP, TierVVIP:
		return TicketTier(s), nil
	default:
		return "", NewValidationError("tier", "must be one of regular, vip, vvip")
	}
}

type Event struct {
	EventID     string              `db:"event_id"`
	LeaderID    string              `db:"leader_id"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	Location    string              `db:"location"`
	EventDate   time.Time           `db:"event_date"`
	TicketPrice decimal.Decimal     `db:"ticket_price"`
	VIPPrice    decimal.NullDecimal `db:"vip_price"`
	VVIPPrice   decimal.NullDecimal `db:"vvip_price"`
	// Capacity is nil for events without an attendee limit.
	Capacity  *int        `db:"capacity"`
	Status    EventStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// EventDetails is the leader-editable part of an event.
type EventDetails struct {
	Title       string
	Description string
	Location    string
	EventDate   time.Time
	TicketPrice decimal.Decimal
	VIPPrice    decimal.NullDecimal
	VVIPPrice   decimal.NullDecimal
	Capacity    *int
}

func (d EventDetails) Validate(now time.Time) error {
	if err := d.validateFields(); err != nil {
		return err
	}
	return d.validateSchedule(now)
}

func (d EventDetails) validateSchedule(now time.Time) error {
	if d.EventDate.IsZero() || !d.EventDate.After(now) {
		return NewValidationError("event_date", "must be in the future")
	}
	return nil
}

func (d EventDetails) validateFields() error {
	if d.Title == "" {
		return NewValidationError("title", "must be set")
	}
	if d.Location == "" {
		return NewValidationError("location", "must be set")
	}
	if !d.TicketPrice.IsPositive() {
		return NewValidationError("ticket_price", "must be positive")
	}
	if d.VIPPrice.Valid && !d.VIPPrice.Decimal.IsPositive() {
		return NewValidationError("vip_price", "must be positive")
	}
	if d.VVIPPrice.Valid && !d.VVIPPrice.Decimal.IsPositive() {
		return NewValidationError("vvip_price", "must be positive")
	}
	if d.Capacity != nil && *d.Capacity <= 0 {
		return NewValidationError("max_attendees", "must be positive")
	}
	return nil
}

func NewEvent(eventID, leaderID string, details EventDetails, now time.Time) (Event, error) {
	if err := details.Validate(now); err != nil {
		return Event{}, err
	}

	e := Event{
		EventID:   eventID,
		LeaderID:  leaderID,
		Status:    EventStatusPending,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	e.apply(details)

	return e, nil
}

// Edit replaces the details of an event that is still pending or approved. The date must be in
// the future only when the edit moves it.
func (e *Event) Edit(details EventDetails, now time.Time) error {
	if !e.IsEditable() {
		return Deny(ReasonEventNotEditable)
	}
	if err := details.validateFields(); err != nil {
		return err
	}
	if !details.EventDate.Equal(e.EventDate) {
		if err := details.validateSchedule(now); err != nil {
			return err
		}
	}
	e.apply(details)
	e.UpdatedAt = now.UTC()
	return nil
}

func (e *Event) apply(d EventDetails) {
	e.Title = d.Title
	e.Description = d.Description
	e.Location = d.Location
	e.EventDate = d.EventDate.UTC()
	e.TicketPrice = d.TicketPrice
	e.VIPPrice = d.VIPPrice
	e.VVIPPrice = d.VVIPPrice
	e.Capacity = d.Capacity
}

func (e Event) IsEditable() bool {
	return e.Status == EventStatusPending || e.Status == EventStatusApproved
}

var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusPending:  {EventStatusApproved, EventStatusRejected, EventStatusCancelled},
	EventStatusApproved: {EventStatusRejected, EventStatusCancelled},
	EventStatusRejected: {EventStatusApproved},
}

func (e *Event) TransitionTo(next EventStatus, now time.Time) error {
	for _, allowed := range eventTransitions[e.Status] {
		if allowed == next {
			e.Status = next
			e.UpdatedAt = now.UTC()
			return nil
		}
	}
	return Deny(ReasonInvalidTransition)
}

// PriceFor returns the price snapshot for a tier. Tiers the event does not offer are a validation error.
func (e Event) PriceFor(tier TicketTier) (decimal.Decimal, error) {
	switch tier {
	case TierRegular:
		return e.TicketPrice, nil
	case TierVIP:
		if e.VIPPrice.Valid {
			return e.VIPPrice.Decimal, nil
		}
	case TierVVIP:
		if e.VVIPPrice.Valid {
			return e.VVIPPrice.Decimal, nil
		}
	}
	return decimal.Decimal{}, NewValidationError("tier", "not offered for this event")
}
