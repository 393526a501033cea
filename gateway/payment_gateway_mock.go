package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"clubtickets/entity"
)

// PaymentGatewayMock accepts every push unless PushErr is set and answers queries from Results.
type PaymentGatewayMock struct {
	mock sync.Mutex

	PushErr error
	Pushes  []entity.PushRequest
	// Results maps checkout request ids to query answers. Missing ids are unresolved.
	Results map[string]entity.QueryResult
	Queries []string
}

func (m *PaymentGatewayMock) RequestPush(ctx context.Context, push entity.PushRequest) (entity.PushResult, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	m.Pushes = append(m.Pushes, push)

	if m.PushErr != nil {
		return entity.PushResult{}, m.PushErr
	}

	return entity.PushResult{
		CheckoutRequestID: "ws_CO_" + uuid.NewString(),
		MerchantRequestID: uuid.NewString(),
	}, nil
}

func (m *PaymentGatewayMock) QueryStatus(ctx context.Context, checkoutRequestID string) (entity.QueryResult, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	m.Queries = append(m.Queries, checkoutRequestID)

	return m.Results[checkoutRequestID], nil
}

func (m *PaymentGatewayMock) SetPushErr(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.PushErr = err
}

func (m *PaymentGatewayMock) SetResult(checkoutRequestID string, result entity.QueryResult) {
	m.mock.Lock()
	defer m.mock.Unlock()

	if m.Results == nil {
		m.Results = map[string]entity.QueryResult{}
	}
	m.Results[checkoutRequestID] = result
}

func (m *PaymentGatewayMock) PushCount() int {
	m.mock.Lock()
	defer m.mock.Unlock()
	return len(m.Pushes)
}
