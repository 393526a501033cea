package mpesa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenCache(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	cache := NewRedisTokenCache(rdb)

	mock.ExpectGet("mpesa:access_token:key").RedisNil()
	_, ok, err := cache.Get(ctx, "mpesa:access_token:key")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectSet("mpesa:access_token:key", "token-1", 3539*time.Second).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "mpesa:access_token:key", "token-1", 3539*time.Second))

	mock.ExpectGet("mpesa:access_token:key").SetVal("token-1")
	token, ok, err := cache.Get(ctx, "mpesa:access_token:key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-1", token)

	mock.ExpectGet("mpesa:access_token:key").SetErr(errors.New("connection refused"))
	_, ok, err = cache.Get(ctx, "mpesa:access_token:key")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_caches_token_with_margin(t *testing.T) {
	fake := &fakeDaraja{pushReply: stkPushResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}}
	c := newTestClient(t, fake)

	rdb, mock := redismock.NewClientMock()
	c.cache = NewRedisTokenCache(rdb)

	mock.ExpectGet("mpesa:access_token:key").RedisNil()
	mock.ExpectSet("mpesa:access_token:key", "token-1", 3599*time.Second-tokenExpiryMargin).SetVal("OK")

	token, err := c.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPassword(t *testing.T) {
	// base64("174379" + "passkey" + "20240501123000")
	assert.Equal(t, "MTc0Mzc5cGFzc2tleTIwMjQwNTAxMTIzMDAw", password("174379", "passkey", "20240501123000"))
	assert.Equal(t, "20240501123000", timestamp(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)))
}
