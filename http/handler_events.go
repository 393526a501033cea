package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"clubtickets/entity"
)

type eventRequest struct {
	Title        string              `json:"title" validate:"required,max=200"`
	Description  string              `json:"description"`
	Location     string              `json:"location" validate:"required,max=200"`
	EventDate    time.Time           `json:"event_date" validate:"required"`
	TicketPrice  decimal.Decimal     `json:"ticket_price"`
	VIPPrice     decimal.NullDecimal `json:"vip_price"`
	VVIPPrice    decimal.NullDecimal `json:"vvip_price"`
	MaxAttendees *int                `json:"max_attendees"`
}

func (r eventRequest) details() entity.EventDetails {
	return entity.EventDetails{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		EventDate:   r.EventDate,
		TicketPrice: r.TicketPrice,
		VIPPrice:    r.VIPPrice,
		VVIPPrice:   r.VVIPPrice,
		Capacity:    r.MaxAttendees,
	}
}

type eventResponse struct {
	EventID      string       `json:"event_id"`
	LeaderID     string       `json:"leader_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	EventDate    time.Time    `json:"event_date"`
	TicketPrice  json.Number  `json:"ticket_price"`
	VIPPrice     *json.Number `json:"vip_price,omitempty"`
	VVIPPrice    *json.Number `json:"vvip_price,omitempty"`
	MaxAttendees *int         `json:"max_attendees"`
	Status       string       `json:"status"`
	TicketsSold  *int         `json:"tickets_sold,omitempty"`
}

func newEventResponse(event entity.Event) eventResponse {
	return eventResponse{
		EventID:      event.EventID,
		LeaderID:     event.LeaderID,
		Title:        event.Title,
		Description:  event.Description,
		Location:     event.Location,
		EventDate:    event.EventDate,
		TicketPrice:  money(event.TicketPrice),
		VIPPrice:     nullMoney(event.VIPPrice),
		VVIPPrice:    nullMoney(event.VVIPPrice),
		MaxAttendees: event.Capacity,
		Status:       string(event.Status),
	}
}

// money renders amounts as JSON numbers with two decimals, e.g. 525.00.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func nullMoney(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func (s Server) PostEvent(c echo.Context) error {
	var request eventRequest
	if err := bindAndValidate(c, &request); err != nil {
		return err
	}

	event, err := s.events.Create(c.Request().Context(), actorFrom(c), request.details())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newEventResponse(event))
}

func (s Server) GetEvent(c echo.Context) error {
	view, err := s.events.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	response := newEventResponse(view.Event)
	response.TicketsSold = &view.TicketsSold

	return c.JSON(http.StatusOK, response)
}

func (s Server) PutEvent(c echo.Context) error {
	var request eventRequest
	if err := bindAndValidate(c, &request); err != nil {
		return err
	}

	event, err := s.events.Edit(c.Request().Context(), actorFrom(c), c.Param("id"), request.details())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newEventResponse(event))
}

func (s Server) DeleteEvent(c echo.Context) error {
	if err := s.events.Delete(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (s Server) PostEventCancel(c echo.Context) error {
	event, err := s.events.Cancel(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newEventResponse(event))
}

func (s Server) PostEventApprove(c echo.Context) error {
	event, err := s.events.Approve(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newEventResponse(event))
}

func (s Server) PostEventReject(c echo.Context) error {
	event, err := s.events.Reject(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newEventResponse(event))
}
