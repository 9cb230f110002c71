package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/doithe/doithe/internal/logging"
)

type idempotencyFixture struct {
	app   *fiber.App
	redis *miniredis.Miniredis
	hits  *atomic.Int64
}

func newIdempotencyFixture(t *testing.T) *idempotencyFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var hits atomic.Int64
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/settle", func(c *fiber.Ctx) error {
		n := hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"execution": n})
	})
	app.Get("/settle", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.SendStatus(fiber.StatusOK)
	})

	return &idempotencyFixture{app: app, redis: mr, hits: &hits}
}

func (f *idempotencyFixture) post(t *testing.T, key string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, "/settle", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}

	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	f := newIdempotencyFixture(t)

	status, _ := f.post(t, "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
	if f.hits.Load() != 0 {
		t.Fatalf("handler ran despite missing key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	f := newIdempotencyFixture(t)

	status, first := f.post(t, "order-42")
	if status != fiber.StatusCreated {
		t.Fatalf("first request status %d", status)
	}

	status2, second := f.post(t, "order-42")
	if status2 != fiber.StatusCreated {
		t.Fatalf("replay status %d", status2)
	}
	if first != second {
		t.Fatalf("replay body %q differs from original %q", second, first)
	}
	if got := f.hits.Load(); got != 1 {
		t.Fatalf("handler executed %d times, want 1", got)
	}
}

func TestIdempotencyDistinctKeysExecuteSeparately(t *testing.T) {
	f := newIdempotencyFixture(t)

	f.post(t, "order-1")
	f.post(t, "order-2")

	if got := f.hits.Load(); got != 2 {
		t.Fatalf("handler executed %d times, want 2", got)
	}
}

func TestIdempotencyConflictWhileInFlight(t *testing.T) {
	f := newIdempotencyFixture(t)

	// Simulate a first request that reserved the key but has not finished.
	if err := f.redis.Set(idempotencyPrefix+"order-9", inProgressMarker); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	status, _ := f.post(t, "order-9")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	if f.hits.Load() != 0 {
		t.Fatalf("handler ran while key was reserved")
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	f := newIdempotencyFixture(t)

	req := httptest.NewRequest(fiber.MethodGet, "/settle", nil)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET without key got %d", resp.StatusCode)
	}
	if f.hits.Load() != 1 {
		t.Fatalf("GET handler did not run")
	}
}
