package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"clubtickets/entity"
)

const (
	itemReceiptNumber = "MpesaReceiptNumber"
	itemAmount        = "Amount"
	itemPhoneNumber   = "PhoneNumber"
)

type CallbackPayload struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string     `json:"MerchantRequestID"`
	CheckoutRequestID string     `json:"CheckoutRequestID"`
	ResultCode        resultCode `json:"ResultCode"`
	ResultDesc        string     `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// resultCode is a provider result code that remembers whether it was sent at all. A missing code
// must not read as 0, which is the success code.
type resultCode struct {
	Value int
	Set   bool
}

func (c *resultCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = resultCode{}
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid result code %s: %w", b, err)
	}
	*c = resultCode{Value: n, Set: true}
	return nil
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ParseCallback extracts the correlation token, result code and metadata from a callback body.
func ParseCallback(body []byte) (entity.PaymentResult, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.PaymentResult{}, entity.NewValidationError("body", "malformed callback payload")
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return entity.PaymentResult{}, entity.NewValidationError("CheckoutRequestID", "must be set")
	}
	if !cb.ResultCode.Set {
		return entity.PaymentResult{}, entity.NewValidationError("ResultCode", "must be set")
	}

	result := entity.PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode.Value,
		ResultDesc:        cb.ResultDesc,
		Receipt:           metadataString(cb.CallbackMetadata.Item, itemReceiptNumber),
		Phone:             metadataString(cb.CallbackMetadata.Item, itemPhoneNumber),
	}

	if amount := metadataString(cb.CallbackMetadata.Item, itemAmount); amount != "" {
		if d, err := decimal.NewFromString(amount); err == nil {
			result.Amount = decimal.NewNullDecimal(d)
		}
	}

	return result, nil
}

func metadataString(items []CallbackItem, name string) string {
	item, ok := lo.Find(items, func(item CallbackItem) bool {
		return item.Name == name
	})
	if !ok || item.Value == nil {
		return ""
	}

	switch v := item.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
