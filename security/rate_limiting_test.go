package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLimiter(limit int) (*RateLimiter, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	log, _ := test.NewNullLogger()
	return NewRateLimiter(db, limit, log), mock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, mock := setupTestLimiter(2)
	ctx := context.Background()
	key := rateKey("enroll", "10.0.0.1")

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	assert.True(t, limiter.Allow(ctx, key))
	assert.True(t, limiter.Allow(ctx, key))
	assert.False(t, limiter.Allow(ctx, key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	limiter, mock := setupTestLimiter(1)
	key := rateKey("enroll", "10.0.0.1")

	mock.ExpectIncr(key).SetErr(errors.New("connection refused"))

	assert.True(t, limiter.Allow(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newEvent(t *testing.T, userAgent string) *core.RequestEvent {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guest-list/enroll", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("User-Agent", userAgent)

	e := &core.RequestEvent{App: app}
	e.Request = req
	e.Response = httptest.NewRecorder()
	return e
}

func TestRateLimiter_MiddlewareRejectsOverLimit(t *testing.T) {
	limiter, mock := setupTestLimiter(1)
	key := rateKey("enroll", "10.0.0.1")

	mock.ExpectIncr(key).SetVal(2)

	err := limiter.Middleware("enroll")(newEvent(t, "Mozilla/5.0"))
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot(t *testing.T) {
	limiter, _ := setupTestLimiter(1)
	mw := limiter.AntiBot()

	err := mw(newEvent(t, "Googlebot/2.1"))
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	assert.NoError(t, mw(newEvent(t, "Mozilla/5.0 (iPhone)")))
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	cases := []struct {
		ua       string
		expected bool
	}{
		{"Mozilla/5.0", false},
		{"SomeCrawler/1.0", true},
		{"python-scraper", true},
		{"", false},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.expected, isSuspiciousUserAgent(tt.ua), tt.ua)
	}
}
