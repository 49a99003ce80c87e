package middleware

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	route, method string
	status        int
}

type recorder struct {
	mu   sync.Mutex
	seen []seen
}

func (r *recorder) HTTPRequest(route, method string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, seen{route, method, status})
}

func newApp(rec Recorder) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	})
	app.Use(RequestID())
	app.Use(Observe(rec, slog.New(slog.NewTextHandler(io.Discard, nil))))
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/fail", func(c *fiber.Ctx) error { return fiber.ErrBadRequest })
	return app
}

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	app := newApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/items/1", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)

	req := httptest.NewRequest("GET", "/items/1", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestObserveRecordsRouteAndStatus(t *testing.T) {
	rec := &recorder{}
	app := newApp(rec)

	resp, err := app.Test(httptest.NewRequest("GET", "/items/42", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Bad Request", string(body))

	require.Len(t, rec.seen, 2)
	assert.Equal(t, seen{"/items/:id", "GET", 200}, rec.seen[0])
	assert.Equal(t, seen{"/fail", "GET", fiber.StatusTeapot}, rec.seen[1])
}
