// Package authz decides who may do what to events and tickets. Every check is a plain function
// of an entity.Actor and facts loaded by the caller; nothing here touches storage.
package authz

import (
	"time"

	"clubtickets/entity"
)

// PurchaseFacts are loaded under the event row lock so the decision and the insert see the same state.
type PurchaseFacts struct {
	Event  entity.Event
	Leader entity.User
	// HoldsTicket is true when the actor already has a ticket for the event that still holds a slot.
	HoldsTicket bool
	// SlotsTaken counts the event's tickets that still hold a slot.
	SlotsTaken int
}

// CanPurchase checks status, membership, leader subscription, duplicate ticket and capacity,
// in that order. The first failing check wins.
func CanPurchase(actor entity.Actor, facts PurchaseFacts, now time.Time) error {
	event := facts.Event

	if event.Status != entity.EventStatusApproved {
		return entity.Deny(entity.ReasonEventNotApproved)
	}

	if !isClubMember(actor, event) {
		return entity.Deny(entity.ReasonNotClubMember)
	}

	if facts.Leader.UserID != event.LeaderID || !facts.Leader.IsSubscriptionActive(now) {
		return entity.Deny(entity.ReasonLeaderSubscriptionInactive)
	}

	if facts.HoldsTicket {
		return entity.Deny(entity.ReasonDuplicateTicket)
	}

	if event.Capacity != nil && facts.SlotsTaken >= *event.Capacity {
		return entity.Deny(entity.ReasonSoldOut)
	}

	return nil
}

// isClubMember matches the actor's leader_id against the event owner. A leader belongs to the
// club they run. Admins get no exemption.
func isClubMember(actor entity.Actor, event entity.Event) bool {
	switch actor.Role {
	case entity.RoleLeader:
		return actor.UserID == event.LeaderID
	case entity.RoleMember, entity.RoleAdmin:
		return actor.LeaderID != "" && actor.LeaderID == event.LeaderID
	default:
		return false
	}
}

type EventAction string

const (
	ActionEdit    EventAction = "edit"
	ActionCancel  EventAction = "cancel"
	ActionDelete  EventAction = "delete"
	ActionApprove EventAction = "approve"
	ActionReject  EventAction = "reject"
)

// CanMutate allows edit, cancel and delete to the owning leader only, and moderation to admins only.
// Date checks on edits happen when the new details are validated.
func CanMutate(actor entity.Actor, event entity.Event, action EventAction) error {
	switch action {
	case ActionEdit, ActionCancel, ActionDelete:
		if actor.Role != entity.RoleLeader || actor.UserID != event.LeaderID {
			return entity.Deny(entity.ReasonNotEventOwner)
		}
		return nil
	case ActionApprove, ActionReject:
		if actor.Role != entity.RoleAdmin {
			return entity.Deny(entity.ReasonAdminOnly)
		}
		return nil
	default:
		return entity.Deny(entity.ReasonInvalidTransition)
	}
}

// CanCreateEvent requires a leader with a running subscription.
func CanCreateEvent(actor entity.Actor, leader entity.User, now time.Time) error {
	if actor.Role != entity.RoleLeader || leader.UserID != actor.UserID {
		return entity.Deny(entity.ReasonLeaderOnly)
	}
	if !leader.IsSubscriptionActive(now) {
		return entity.Deny(entity.ReasonLeaderSubscriptionInactive)
	}
	return nil
}

// CanViewTicket lets the holder and admins read a ticket.
func CanViewTicket(actor entity.Actor, ticket entity.Ticket) error {
	if actor.Role == entity.RoleAdmin || actor.UserID == ticket.UserID {
		return nil
	}
	return entity.Deny(entity.ReasonNotTicketOwner)
}

// CanPayTicket covers initiating a push and cancelling; only the holder may do either.
func CanPayTicket(actor entity.Actor, ticket entity.Ticket) error {
	if actor.UserID != ticket.UserID {
		return entity.Deny(entity.ReasonNotTicketOwner)
	}
	return nil
}

func RequireAdmin(actor entity.Actor) error {
	if actor.Role != entity.RoleAdmin {
		return entity.Deny(entity.ReasonAdminOnly)
	}
	return nil
}

func RequireLeader(actor entity.Actor) error {
	if actor.Role != entity.RoleLeader {
		return entity.Deny(entity.ReasonLeaderOnly)
	}
	return nil
}

func RequireMember(actor entity.Actor) error {
	if actor.Role != entity.RoleMember {
		return entity.Deny(entity.ReasonMemberOnly)
	}
	return nil
}
