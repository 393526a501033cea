// Package mpesa talks to the Daraja API: STK push requests, push status queries and the
// asynchronous callback payload.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clubtickets/entity"
)

const (
	opPush  = "push"
	opQuery = "query"

	responseCodeAccepted = "0"
	// errorCodeStillProcessing is returned by the query endpoint until the customer answers the prompt.
	errorCodeStillProcessing = "500.001.1001"
)

type Client struct {
	cfg   Config
	hc    *http.Client
	cache TokenCache
	now   func() time.Time
}

// NewClient builds a client with a bounded timeout per call. cache may be nil.
func NewClient(cfg Config, cache TokenCache) *Client {
	if cfg.BaseURL == "" {
		panic("mpesa base url must be set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: cache,
		now:   time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode      string     `json:"ResponseCode"`
	CheckoutRequestID string     `json:"CheckoutRequestID"`
	ResultCode        resultCode `json:"ResultCode"`
	ResultDesc        string     `json:"ResultDesc"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// RequestPush asks the provider to prompt the payer's phone. The amount is rounded up to whole
// shillings. A *entity.GatewayError with Rejected set means the provider refused the request and
// no callback will follow; any other error leaves the outcome unknown.
func (c *Client) RequestPush(ctx context.Context, push entity.PushRequest) (entity.PushResult, error) {
	ts := timestamp(c.now())

	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionTypePayBillOnline,
		Amount:            push.Amount.Ceil().IntPart(),
		PartyA:            push.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       push.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(push.Reference, 12),
		TransactionDesc:   truncate(push.Description, 13),
	}

	var reply stkPushResponse
	status, errReply, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", body, &reply)
	if err != nil {
		return entity.PushResult{}, &entity.GatewayError{Op: opPush, Err: err}
	}

	if status != http.StatusOK {
		return entity.PushResult{}, &entity.GatewayError{
			Op:       opPush,
			Rejected: isRejection(status),
			Err:      fmt.Errorf("status %d: %s %s", status, errReply.ErrorCode, errReply.ErrorMessage),
		}
	}

	if reply.ResponseCode != responseCodeAccepted {
		return entity.PushResult{}, &entity.GatewayError{
			Op:       opPush,
			Rejected: true,
			Err:      fmt.Errorf("response code %s: %s", reply.ResponseCode, reply.ResponseDescription),
		}
	}

	if reply.CheckoutRequestID == "" {
		return entity.PushResult{}, &entity.GatewayError{Op: opPush, Err: errors.New("accepted push without CheckoutRequestID")}
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"checkout_request_id": reply.CheckoutRequestID,
		"merchant_request_id": reply.MerchantRequestID,
	}).Info("Push payment accepted")

	return entity.PushResult{
		CheckoutRequestID: reply.CheckoutRequestID,
		MerchantRequestID: reply.MerchantRequestID,
		ResponseDesc:      reply.CustomerMessage,
	}, nil
}

// QueryStatus asks the provider for the result of an earlier push. A push the customer has not
// answered yet yields Resolved=false and no error.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (entity.QueryResult, error) {
	ts := timestamp(c.now())

	body := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var reply stkQueryResponse
	status, errReply, err := c.post(ctx, "/mpesa/stkpushquery/v1/query", body, &reply)
	if err != nil {
		return entity.QueryResult{}, &entity.GatewayError{Op: opQuery, Err: err}
	}

	if status != http.StatusOK {
		if errReply.ErrorCode == errorCodeStillProcessing {
			return entity.QueryResult{Resolved: false}, nil
		}
		return entity.QueryResult{}, &entity.GatewayError{
			Op:       opQuery,
			Rejected: isRejection(status),
			Err:      fmt.Errorf("status %d: %s %s", status, errReply.ErrorCode, errReply.ErrorMessage),
		}
	}

	if reply.ResponseCode != responseCodeAccepted || !reply.ResultCode.Set {
		return entity.QueryResult{Resolved: false}, nil
	}

	return entity.QueryResult{
		Resolved:   true,
		ResultCode: reply.ResultCode.Value,
		ResultDesc: reply.ResultDesc,
	}, nil
}

// post sends an authorized JSON request. Non-200 answers are returned with their decoded error
// body and no error; err is set only when no answer was received.
func (c *Client) post(ctx context.Context, path string, body any, reply any) (int, errorResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, errorResponse{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken(ctx)
	}

	if resp.StatusCode != http.StatusOK {
		var errReply errorResponse
		_ = json.Unmarshal(respBody, &errReply)
		return resp.StatusCode, errReply, nil
	}

	if err := json.Unmarshal(respBody, reply); err != nil {
		return 0, errorResponse{}, fmt.Errorf("could not decode response: %w", err)
	}

	return resp.StatusCode, errorResponse{}, nil
}

// isRejection is true for client errors that retrying the same request can't fix. Auth and
// throttling errors are ours, not the payer's, so they don't count.
func isRejection(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
