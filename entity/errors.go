package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrReconciliationMiss is returned when a payment result carries a correlation token
	// that no stored payment request owns.
	ErrReconciliationMiss = errors.New("payment result does not match any payment request")
)

type DenyReason string

const (
	ReasonEventNotApproved           DenyReason = "event_not_approved"
	ReasonNotClubMember              DenyReason = "not_club_member"
	ReasonLeaderSubscriptionInactive DenyReason = "leader_subscription_inactive"
	ReasonDuplicateTicket            DenyReason = "duplicate_ticket"
	ReasonSoldOut                    DenyReason = "sold_out"
	ReasonNotEventOwner              DenyReason = "not_event_owner"
	ReasonNotTicketOwner             DenyReason = "not_ticket_owner"
	ReasonAdminOnly                  DenyReason = "admin_only"
	ReasonLeaderOnly                 DenyReason = "leader_only"
	ReasonMemberOnly                 DenyReason = "member_only"
	ReasonEventNotEditable           DenyReason = "event_not_editable"
	ReasonInvalidTransition          DenyReason = "invalid_transition"
)

// AuthorizationError is a denial with a stable reason code. It is never retried.
type AuthorizationError struct {
	Reason DenyReason
}

func Deny(reason DenyReason) error {
	return &AuthorizationError{Reason: reason}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("denied: %s", e.Reason)
}

// IsConflict reports whether the denial is about competing state rather than permissions.
func (e *AuthorizationError) IsConflict() bool {
	return e.Reason == ReasonDuplicateTicket || e.Reason == ReasonSoldOut
}

// IsDenied reports whether err is an AuthorizationError with the given reason.
func IsDenied(err error, reason DenyReason) bool {
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Reason == reason
}

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError wraps a failed call to the payment provider. Rejected is set only when the
// provider answered and refused the request; otherwise the outcome is unknown.
type GatewayError struct {
	Op       string
	Rejected bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("payment gateway rejected %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying the operation that returned err can never succeed.
func IsPermanent(err error) bool {
	var (
		validationErr *ValidationError
		authErr       *AuthorizationError
	)
	return errors.As(err, &validationErr) ||
		errors.As(err, &authErr) ||
		errors.Is(err, ErrReconciliationMiss)
}
