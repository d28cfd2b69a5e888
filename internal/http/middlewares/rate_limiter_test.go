package middlewares_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAllower struct {
	allowed    bool
	retryAfter time.Duration
	err        error
}

func (f *fakeAllower) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return f.allowed, f.retryAfter, f.err
}

func limitedRouter(allower middlewares.Allower) *gin.Engine {
	r := gin.New()

	rl := middlewares.NewRateLimiter(allower, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r.POST("/auth/login", rl.Middleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func TestRateLimiterAllows(t *testing.T) {
	r := limitedRouter(&fakeAllower{allowed: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
}

func TestRateLimiterBlocksWithRetryAfter(t *testing.T) {
	r := limitedRouter(&fakeAllower{allowed: false, retryAfter: 30 * time.Second})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r := limitedRouter(&fakeAllower{err: errors.New("redis down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("a broken limiter backend must not block requests, got %d", w.Code)
	}
}
