package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"clubtickets/entity"
)

const actorKey = "actor"

var errUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

// authenticate resolves the bearer token to an entity.Actor once per request. The role and club
// come from storage, not from the token, so changes apply without reissuing tokens.
func (s Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return errUnauthenticated
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || claims.Subject == "" {
			return errUnauthenticated
		}

		ctx := c.Request().Context()

		user, err := s.users.Get(ctx, claims.Subject)
		if errors.Is(err, entity.ErrNotFound) {
			return errUnauthenticated
		}
		if err != nil {
			return fmt.Errorf("could not load user: %w", err)
		}

		actor := entity.Actor{
			UserID: user.UserID,
			Role:   user.Role,
		}
		if user.LeaderID != nil {
			actor.LeaderID = *user.LeaderID
		}

		c.Set(actorKey, actor)
		ctx = log.ToContext(ctx, log.FromContext(ctx).WithField("user_id", actor.UserID))
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

func actorFrom(c echo.Context) entity.Actor {
	actor, ok := c.Get(actorKey).(entity.Actor)
	if !ok {
		panic("actor missing from context, route is not behind authenticate")
	}
	return actor
}

// IssueToken signs an HS256 token for userID. Login lives outside this service; this is what it
// is expected to hand out.
func IssueToken(secret string, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
