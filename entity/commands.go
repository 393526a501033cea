package entity

// QueryPaymentStatus asks a worker to poll the provider for a push whose callback never arrived.
type QueryPaymentStatus struct {
	Header            EventHeader `json:"header"`
	CheckoutRequestID string      `json:"checkout_request_id"`
	TicketID          string      `json:"ticket_id"`
}
