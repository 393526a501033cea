package http

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"clubtickets/entity"
	"clubtickets/gateway/mpesa"
)

type callbackResponse struct {
	Message string `json:"message"`
}

// PostPaymentCallback answers 200 for everything the provider should not redeliver, including
// malformed payloads and unknown tokens. Only storage failures return 500 so the provider retries.
func (s Server) PostPaymentCallback(c echo.Context) error {
	ctx := c.Request().Context()
	logger := log.FromContext(ctx)

	if s.callbackSecret != "" {
		secret := c.QueryParam("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.callbackSecret)) != 1 {
			logger.Warn("Payment callback with invalid secret")
			return echo.NewHTTPError(http.StatusForbidden, "invalid callback secret")
		}
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusOK, callbackResponse{Message: "ignored"})
	}

	result, err := mpesa.ParseCallback(body)
	if err != nil {
		logger.WithError(err).Warn("Ignoring malformed payment callback")
		return c.JSON(http.StatusOK, callbackResponse{Message: "ignored"})
	}

	reconciled, err := s.reconciler.HandleCallback(ctx, result)
	if errors.Is(err, entity.ErrReconciliationMiss) {
		return c.JSON(http.StatusOK, callbackResponse{Message: "payment request not found"})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, callbackResponse{Message: "callback " + string(reconciled.Status)})
}
