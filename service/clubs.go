package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"clubtickets/authz"
	"clubtickets/entity"
)

type ClubsService struct {
	users UsersRepository
}

func NewClubsService(users UsersRepository) *ClubsService {
	if users == nil {
		panic("users repository must be set")
	}

	return &ClubsService{users: users}
}

// Join attaches a member to the club of the leader owning accessCode.
func (s *ClubsService) Join(ctx context.Context, actor entity.Actor, accessCode string) (entity.User, error) {
	if err := authz.RequireMember(actor); err != nil {
		return entity.User{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(accessCode))
	if len(code) != entity.ClubAccessCodeLength {
		return entity.User{}, entity.NewValidationError("access_code", "invalid club access code")
	}

	leader, err := s.users.GetByClubAccessCode(ctx, code)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.User{}, entity.NewValidationError("access_code", "invalid club access code")
	}
	if err != nil {
		return entity.User{}, err
	}

	member, err := s.users.UpdateByID(ctx, actor.UserID, func(user entity.User) (entity.User, error) {
		user.LeaderID = &leader.UserID
		return user, nil
	})
	if err != nil {
		return entity.User{}, err
	}

	log.FromContext(ctx).WithField("leader_id", leader.UserID).Info("Member joined club")

	return member, nil
}
