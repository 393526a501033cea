package http

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"clubtickets/entity"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Field  string `json:"field,omitempty"`
}

func errorStatus(err error) (int, errorResponse) {
	var (
		validationErr *entity.ValidationError
		authErr       *entity.AuthorizationError
		gatewayErr    *entity.GatewayError
		httpErr       *echo.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorResponse{Error: validationErr.Error(), Field: validationErr.Field}
	case errors.As(err, &authErr):
		status := http.StatusForbidden
		if authErr.IsConflict() {
			status = http.StatusConflict
		}
		return status, errorResponse{Error: authErr.Error(), Reason: string(authErr.Reason)}
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found"}
	case errors.Is(err, entity.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.As(err, &gatewayErr):
		if gatewayErr.Rejected {
			return http.StatusBadRequest, errorResponse{Error: gatewayErr.Error()}
		}
		return http.StatusBadGateway, errorResponse{Error: gatewayErr.Error()}
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, errorResponse{Error: msg}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

func (s Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorStatus(err)

	logger := log.FromContext(c.Request().Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Info("Request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.WithError(err).Error("Could not write error response")
	}
}
