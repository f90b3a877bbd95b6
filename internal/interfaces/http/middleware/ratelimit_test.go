package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func newRateLimitRouter(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg, limiter))
	r.GET("/v1/qa/query", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/qa/query", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Allowed(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	r := newRateLimitRouter(RateLimitConfig{Enabled: true, RequestsPerMinute: 10}, limiter)

	w := doRequest(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, limiter.keys, 1)
	assert.Contains(t, limiter.keys[0], "/v1/qa/query")
}

func TestRateLimit_Blocked(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	r := newRateLimitRouter(RateLimitConfig{Enabled: true, RequestsPerMinute: 10}, limiter)

	w := doRequest(r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	r := newRateLimitRouter(RateLimitConfig{Enabled: false}, limiter)

	w := doRequest(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.keys)
}

func TestRateLimit_LimiterFailureFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	r := newRateLimitRouter(RateLimitConfig{Enabled: true, RequestsPerMinute: 10}, limiter)

	w := doRequest(r)

	// 限流器故障时放行
	assert.Equal(t, http.StatusOK, w.Code)
}
