package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/architeacher/device-catalog/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/stretchr/testify/suite"
	"github.com/throttled/throttled/v2/store/memstore"
)

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) GetWithTime(context.Context, string) (int64, time.Time, error) {
	return 0, time.Time{}, errStoreDown
}

func (failingStore) SetIfNotExistsWithTTL(context.Context, string, int64, time.Duration) (bool, error) {
	return false, errStoreDown
}

func (failingStore) CompareAndSwapWithTTL(context.Context, string, int64, int64, time.Duration) (bool, error) {
	return false, errStoreDown
}

type RateLimitingTestSuite struct {
	suite.Suite
	cfg config.ThrottledRateLimiting
}

func TestRateLimitingTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RateLimitingTestSuite))
}

func (s *RateLimitingTestSuite) SetupTest() {
	s.cfg = config.ThrottledRateLimiting{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         2,
		EnableIPLimiting:  true,
		MaxKeys:           100,
		SkipPaths:         []string{"/v1/health", "/metrics"},
		GracefulDegraded:  true,
	}
}

func (s *RateLimitingTestSuite) newHandler(cfg config.ThrottledRateLimiting) http.Handler {
	store, err := memstore.NewCtx(int(cfg.MaxKeys))
	s.Require().NoError(err)

	limiter, err := middleware.RateLimiting(cfg, store, logger.NewTestLogger())
	s.Require().NoError(err)

	return limiter(okHandler(`{}`))
}

func (s *RateLimitingTestSuite) send(handler http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func (s *RateLimitingTestSuite) TestLimitsAfterBurst() {
	handler := s.newHandler(s.cfg)

	for range 3 {
		rec := s.send(handler, "/v1/devices", "192.168.1.1:12345")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Require().NotEmpty(rec.Header().Get(middleware.RateLimitLimitHeader))
		s.Require().NotEmpty(rec.Header().Get(middleware.RateLimitRemainingHeader))
		s.Require().NotEmpty(rec.Header().Get(middleware.RateLimitResetHeader))
	}

	rec := s.send(handler, "/v1/devices", "192.168.1.1:12345")

	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.Require().NotEmpty(rec.Header().Get(middleware.RetryAfterHeader))
	s.Require().Contains(rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	s.Require().Equal("0", rec.Header().Get(middleware.RateLimitRemainingHeader))
}

func (s *RateLimitingTestSuite) TestQuotaIsPerClientIP() {
	handler := s.newHandler(s.cfg)

	for range 3 {
		s.Require().Equal(http.StatusOK, s.send(handler, "/v1/devices", "10.0.0.1:1000").Code)
	}

	s.Require().Equal(http.StatusTooManyRequests, s.send(handler, "/v1/devices", "10.0.0.1:2000").Code)
	s.Require().Equal(http.StatusOK, s.send(handler, "/v1/devices", "10.0.0.2:1000").Code)
}

func (s *RateLimitingTestSuite) TestSharedQuotaWithoutIPLimiting() {
	cfg := s.cfg
	cfg.EnableIPLimiting = false
	handler := s.newHandler(cfg)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		s.Require().Equal(http.StatusOK, s.send(handler, "/v1/devices", addr).Code)
	}

	s.Require().Equal(http.StatusTooManyRequests, s.send(handler, "/v1/devices", "10.0.0.4:1").Code)
}

func (s *RateLimitingTestSuite) TestSkipPathsAreNotLimited() {
	handler := s.newHandler(s.cfg)

	for range 10 {
		rec := s.send(handler, "/v1/health", "192.168.1.1:12345")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Require().Empty(rec.Header().Get(middleware.RateLimitLimitHeader))
	}
}

func (s *RateLimitingTestSuite) TestDisabled() {
	cfg := s.cfg
	cfg.Enabled = false
	handler := s.newHandler(cfg)

	for range 10 {
		s.Require().Equal(http.StatusOK, s.send(handler, "/v1/devices", "192.168.1.1:12345").Code)
	}
}

func (s *RateLimitingTestSuite) TestStoreFailure() {
	cases := []struct {
		name     string
		degraded bool
		expected int
	}{
		{name: "graceful degradation lets requests through", degraded: true, expected: http.StatusOK},
		{name: "strict mode rejects", degraded: false, expected: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			cfg := s.cfg
			cfg.GracefulDegraded = tc.degraded

			limiter, err := middleware.RateLimiting(cfg, failingStore{}, logger.NewTestLogger())
			s.Require().NoError(err)

			rec := s.send(limiter(okHandler(`{}`)), "/v1/devices", "192.168.1.1:12345")
			s.Require().Equal(tc.expected, rec.Code)
		})
	}
}
