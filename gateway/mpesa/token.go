package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

const tokenExpiryMargin = time.Minute

type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisTokenCache shares one access token between all instances of the service.
type RedisTokenCache struct {
	rdb redis.Cmdable
}

func NewRedisTokenCache(rdb redis.Cmdable) RedisTokenCache {
	if rdb == nil {
		panic("redis client must be set")
	}

	return RedisTokenCache{rdb: rdb}
}

func (c RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	token, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("could not get cached token: %w", err)
	}
	return token, true, nil
}

func (c RedisTokenCache) Set(ctx context.Context, key string, token string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("could not cache token: %w", err)
	}
	return nil
}

func (c RedisTokenCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// lenientInt accepts both 3599 and "3599"; the provider is not consistent about it.
type lenientInt int64

func (i *lenientInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*i = lenientInt(n)
	return nil
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   lenientInt `json:"expires_in"`
}

func (c *Client) tokenCacheKey() string {
	return "mpesa:access_token:" + c.cfg.ConsumerKey
}

// accessToken returns a cached bearer token or fetches a new one. Cache failures only cost an
// extra fetch.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		token, ok, err := c.cache.Get(ctx, c.tokenCacheKey())
		if err != nil {
			log.FromContext(ctx).WithError(err).Warn("Token cache unavailable, fetching a new token")
		}
		if ok {
			return token, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("could not create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("unexpected status code %d while fetching access token: %s", resp.StatusCode, body)
	}

	var reply tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("could not decode access token: %w", err)
	}
	if reply.AccessToken == "" {
		return "", errors.New("empty access token")
	}

	ttl := time.Duration(reply.ExpiresIn)*time.Second - tokenExpiryMargin
	if c.cache != nil && ttl > 0 {
		if err := c.cache.Set(ctx, c.tokenCacheKey(), reply.AccessToken, ttl); err != nil {
			log.FromContext(ctx).WithError(err).Warn("Could not cache access token")
		}
	}

	return reply.AccessToken, nil
}

func (c *Client) invalidateToken(ctx context.Context) {
	if c.cache != nil {
		_ = c.cache.Delete(ctx, c.tokenCacheKey())
	}
}
