package entity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultSubscriptionDays = 30
	ClubAccessCodeLength    = 8

	clubAccessCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type User struct {
	UserID                string     `db:"user_id" json:"user_id"`
	Username              string     `db:"username" json:"username"`
	Role                  Role       `db:"role" json:"role"`
	LeaderID              *string    `db:"leader_id" json:"leader_id,omitempty"`
	SubscriptionActive    bool       `db:"subscription_active" json:"subscription_active"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at" json:"subscription_expires_at,omitempty"`
	ClubAccessCode        *string    `db:"club_access_code" json:"club_access_code,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// IsSubscriptionActive is true only for a leader whose flag is set and whose expiry is strictly
// after now. Both sides are compared in UTC.
func (u User) IsSubscriptionActive(now time.Time) bool {
	if u.Role != RoleLeader || !u.SubscriptionActive || u.SubscriptionExpiresAt == nil {
		return false
	}
	return u.SubscriptionExpiresAt.UTC().After(now.UTC())
}

// ActivateSubscription starts a fresh window of the given length from now. Renewals do not
// stack on the remaining time. accessCode is stored only if the leader has none yet.
func (u *User) ActivateSubscription(now time.Time, duration time.Duration, accessCode string) error {
	if u.Role != RoleLeader {
		return Deny(ReasonLeaderOnly)
	}
	if duration <= 0 {
		return NewValidationError("duration_days", "must be positive")
	}

	expiresAt := now.UTC().Add(duration)
	u.SubscriptionActive = true
	u.SubscriptionExpiresAt = &expiresAt

	if u.ClubAccessCode == nil || *u.ClubAccessCode == "" {
		if len(accessCode) != ClubAccessCodeLength {
			return fmt.Errorf("club access code must have %d characters", ClubAccessCodeLength)
		}
		u.ClubAccessCode = &accessCode
	}

	return nil
}

func (u User) NeedsClubAccessCode() bool {
	return u.ClubAccessCode == nil || *u.ClubAccessCode == ""
}

// GenerateClubAccessCode returns an uppercase alphanumeric code. Uniqueness is enforced by storage.
func GenerateClubAccessCode() (string, error) {
	code := make([]byte, ClubAccessCodeLength)
	max := big.NewInt(int64(len(clubAccessCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("could not generate club access code: %w", err)
		}
		code[i] = clubAccessCodeCharset[n.Int64()]
	}
	return string(code), nil
}
