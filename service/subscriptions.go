package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"clubtickets/authz"
	"clubtickets/entity"
)

const maxAccessCodeAttempts = 5

type SubscriptionStatus struct {
	Active         bool
	ExpiresAt      *time.Time
	ClubAccessCode *string
}

type SubscriptionsService struct {
	users    UsersRepository
	eventBus EventBus

	DefaultDuration time.Duration

	now          func() time.Time
	generateCode func() (string, error)
}

func NewSubscriptionsService(users UsersRepository, eventBus EventBus) *SubscriptionsService {
	if users == nil {
		panic("users repository must be set")
	}
	if eventBus == nil {
		panic("event bus must be set")
	}

	return &SubscriptionsService{
		users:           users,
		eventBus:        eventBus,
		DefaultDuration: entity.DefaultSubscriptionDays * 24 * time.Hour,
		now:             time.Now,
		generateCode:    entity.GenerateClubAccessCode,
	}
}

// Activate starts or renews a leader's subscription for durationDays, or the default when zero.
// The first activation also assigns a club access code.
func (s *SubscriptionsService) Activate(ctx context.Context, actor entity.Actor, leaderID string, durationDays int) (entity.User, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return entity.User{}, err
	}

	duration := s.DefaultDuration
	if durationDays != 0 {
		duration = time.Duration(durationDays) * 24 * time.Hour
	}

	var (
		leader entity.User
		err    error
	)
	for attempt := 0; attempt < maxAccessCodeAttempts; attempt++ {
		var code string
		code, err = s.freeAccessCode(ctx)
		if err != nil {
			return entity.User{}, err
		}

		leader, err = s.users.UpdateByID(ctx, leaderID, func(user entity.User) (entity.User, error) {
			err := user.ActivateSubscription(s.now(), duration, code)
			return user, err
		})
		// a concurrent activation took the code between the check and the update
		if errors.Is(err, entity.ErrConflict) {
			continue
		}
		break
	}
	if err != nil {
		return entity.User{}, err
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"leader_id":  leader.UserID,
		"expires_at": leader.SubscriptionExpiresAt,
	})
	logger.Info("Leader subscription activated")

	err = s.eventBus.Publish(ctx, entity.LeaderSubscriptionActivated_v1{
		Header:    entity.NewEventHeader(),
		LeaderID:  leader.UserID,
		ExpiresAt: *leader.SubscriptionExpiresAt,
	})
	if err != nil {
		logger.WithError(err).Error("Could not publish LeaderSubscriptionActivated_v1")
	}

	return leader, nil
}

func (s *SubscriptionsService) freeAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAccessCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", err
		}

		exists, err := s.users.ClubAccessCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("could not find a free club access code after %d attempts", maxAccessCodeAttempts)
}

func (s *SubscriptionsService) Status(ctx context.Context, actor entity.Actor) (SubscriptionStatus, error) {
	if err := authz.RequireLeader(actor); err != nil {
		return SubscriptionStatus{}, err
	}

	leader, err := s.users.Get(ctx, actor.UserID)
	if err != nil {
		return SubscriptionStatus{}, err
	}

	return SubscriptionStatus{
		Active:         leader.IsSubscriptionActive(s.now()),
		ExpiresAt:      leader.SubscriptionExpiresAt,
		ClubAccessCode: leader.ClubAccessCode,
	}, nil
}
