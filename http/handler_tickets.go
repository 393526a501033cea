package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"clubtickets/entity"
	"clubtickets/service"
)

type purchaseTicketRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Tier        string `json:"tier" validate:"omitempty,oneof=regular vip vvip"`
}

type ticketResponse struct {
	TicketID     string      `json:"ticket_id"`
	EventID      string      `json:"event_id"`
	Tier         string      `json:"tier"`
	Status       string      `json:"status"`
	TicketPrice  json.Number `json:"ticket_price"`
	Commission   json.Number `json:"commission"`
	TotalAmount  json.Number `json:"total_amount"`
	MpesaReceipt *string     `json:"mpesa_receipt"`
	PurchasedAt  time.Time   `json:"purchased_at"`
}

func newTicketResponse(ticket entity.Ticket) ticketResponse {
	return ticketResponse{
		TicketID:     ticket.TicketID,
		EventID:      ticket.EventID,
		Tier:         string(ticket.Tier),
		Status:       string(ticket.PaymentStatus),
		TicketPrice:  money(ticket.TicketPrice),
		Commission:   money(ticket.Commission),
		TotalAmount:  money(ticket.TotalAmount),
		MpesaReceipt: ticket.MpesaReceipt,
		PurchasedAt:  ticket.PurchasedAt,
	}
}

type purchaseTicketResponse struct {
	ticketResponse
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	PaymentError      string `json:"payment_error,omitempty"`
}

type paymentInitiationResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
}

func (s Server) PostEventTickets(c echo.Context) error {
	var request purchaseTicketRequest
	if err := bindAndValidate(c, &request); err != nil {
		return err
	}

	tier, err := entity.ParseTicketTier(request.Tier)
	if err != nil {
		return err
	}

	res, err := s.tickets.Purchase(c.Request().Context(), actorFrom(c), service.PurchaseRequest{
		EventID: c.Param("id"),
		Phone:   request.PhoneNumber,
		Tier:    tier,
	})
	if err != nil {
		return err
	}

	response := purchaseTicketResponse{
		ticketResponse:    newTicketResponse(res.Ticket),
		CheckoutRequestID: res.CheckoutRequestID,
	}
	if res.PaymentErr != nil {
		response.PaymentError = res.PaymentErr.Error()
	}

	return c.JSON(http.StatusCreated, response)
}

func (s Server) PostTicketPayment(c echo.Context) error {
	res, err := s.tickets.InitiatePayment(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	if res.PaymentErr != nil {
		return res.PaymentErr
	}

	return c.JSON(http.StatusOK, paymentInitiationResponse{
		CheckoutRequestID: res.CheckoutRequestID,
	})
}

func (s Server) PostTicketCancel(c echo.Context) error {
	ticket, err := s.tickets.Cancel(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newTicketResponse(ticket))
}

func (s Server) GetTicketStatus(c echo.Context) error {
	ticket, err := s.tickets.Get(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newTicketResponse(ticket))
}

func (s Server) PostTicketRefund(c echo.Context) error {
	ticket, err := s.tickets.Refund(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newTicketResponse(ticket))
}
