package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type joinClubRequest struct {
	AccessCode string `json:"access_code" validate:"required"`
}

type joinClubResponse struct {
	UserID   string `json:"user_id"`
	LeaderID string `json:"leader_id"`
}

type activateSubscriptionRequest struct {
	DurationDays int `json:"duration_days" validate:"gte=0,lte=3660"`
}

type subscriptionResponse struct {
	LeaderID       string     `json:"leader_id,omitempty"`
	Active         bool       `json:"subscription_active"`
	ExpiresAt      *time.Time `json:"subscription_expires_at"`
	ClubAccessCode *string    `json:"club_access_code"`
}

func (s Server) PostClubJoin(c echo.Context) error {
	var request joinClubRequest
	if err := bindAndValidate(c, &request); err != nil {
		return err
	}

	member, err := s.clubs.Join(c.Request().Context(), actorFrom(c), request.AccessCode)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, joinClubResponse{
		UserID:   member.UserID,
		LeaderID: *member.LeaderID,
	})
}

func (s Server) GetLeaderSubscription(c echo.Context) error {
	status, err := s.subscriptions.Status(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, subscriptionResponse{
		Active:         status.Active,
		ExpiresAt:      status.ExpiresAt,
		ClubAccessCode: status.ClubAccessCode,
	})
}

func (s Server) PostLeaderSubscription(c echo.Context) error {
	var request activateSubscriptionRequest
	if err := bindAndValidate(c, &request); err != nil {
		return err
	}

	leader, err := s.subscriptions.Activate(c.Request().Context(), actorFrom(c), c.Param("id"), request.DurationDays)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, subscriptionResponse{
		LeaderID:       leader.UserID,
		Active:         leader.IsSubscriptionActive(time.Now()),
		ExpiresAt:      leader.SubscriptionExpiresAt,
		ClubAccessCode: leader.ClubAccessCode,
	})
}
