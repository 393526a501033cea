package pubsub_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"

	"clubtickets/entity"
	"clubtickets/pubsub"
)

func TestAckPermanentErrorsMiddleware(t *testing.T) {
	testCases := []struct {
		Name        string
		HandlerErr  error
		ExpectedErr bool
	}{
		{
			Name: "success",
		},
		{
			Name:       "validation_error",
			HandlerErr: entity.NewValidationError("ResultCode", "must be set"),
		},
		{
			Name:       "reconciliation_miss",
			HandlerErr: fmt.Errorf("could not reconcile: %w", entity.ErrReconciliationMiss),
		},
		{
			Name:       "denied",
			HandlerErr: entity.Deny(entity.ReasonInvalidTransition),
		},
		{
			Name:        "storage_failure",
			HandlerErr:  errors.New("connection reset by peer"),
			ExpectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			calls := 0
			handler := pubsub.AckPermanentErrorsMiddleware(func(msg *message.Message) ([]*message.Message, error) {
				calls++
				return nil, tc.HandlerErr
			})

			_, err := handler(message.NewMessage(watermill.NewUUID(), []byte("{}")))

			assert.Equal(t, 1, calls)
			if tc.ExpectedErr {
				assert.ErrorIs(t, err, tc.HandlerErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPropagateCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := pubsub.PropagateCorrelationIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = log.CorrelationIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	msg.Metadata.Set("correlation_id", "purchase-123")

	_, err := handler(msg)
	assert.NoError(t, err)
	assert.Equal(t, "purchase-123", seen)

	_, err = handler(message.NewMessage(watermill.NewUUID(), []byte("{}")))
	assert.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "purchase-123", seen)
}
