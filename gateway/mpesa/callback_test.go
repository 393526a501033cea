package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubtickets/entity"
)

func TestParseCallback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		body := `{
			"Body": {
				"stkCallback": {
					"MerchantRequestID": "29115-34620561-1",
					"CheckoutRequestID": "ws_CO_191220191020363925",
					"ResultCode": 0,
					"ResultDesc": "The service request is processed successfully.",
					"CallbackMetadata": {
						"Item": [
							{"Name": "Amount", "Value": 525.00},
							{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
							{"Name": "TransactionDate", "Value": 20191219102115},
							{"Name": "PhoneNumber", "Value": 254708374149}
						]
					}
				}
			}
		}`

		result, err := ParseCallback([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, "ws_CO_191220191020363925", result.CheckoutRequestID)
		assert.Equal(t, 0, result.ResultCode)
		assert.Equal(t, "NLJ7RT61SV", result.Receipt)
		assert.Equal(t, "254708374149", result.Phone)
		assert.Equal(t, "525", result.Amount.Decimal.String())
		assert.Equal(t, entity.PaymentOutcomeCompleted, result.Outcome())
	})

	t.Run("cancelled_by_user", func(t *testing.T) {
		body := `{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

		result, err := ParseCallback([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, 1032, result.ResultCode)
		assert.Empty(t, result.Receipt)
		assert.False(t, result.Amount.Valid)
		assert.Equal(t, entity.PaymentOutcomeFailed, result.Outcome())
	})

	t.Run("missing_token", func(t *testing.T) {
		_, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`))

		var validationErr *entity.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("missing_result_code", func(t *testing.T) {
		for _, body := range []string{
			`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultDesc":"garbled"}}}`,
			`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultCode":null}}}`,
			`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultCode":""}}}`,
		} {
			_, err := ParseCallback([]byte(body))

			var validationErr *entity.ValidationError
			if assert.ErrorAs(t, err, &validationErr, body) {
				assert.Equal(t, "ResultCode", validationErr.Field)
			}
		}
	})

	t.Run("string_result_code", func(t *testing.T) {
		result, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_3","ResultCode":"1037"}}}`))
		require.NoError(t, err)

		assert.Equal(t, 1037, result.ResultCode)
		assert.Equal(t, entity.PaymentOutcomeFailed, result.Outcome())
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseCallback([]byte(`not json`))

		var validationErr *entity.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
