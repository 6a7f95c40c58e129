package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRouterSetsRequestID(t *testing.T) {
	app, _ := newTestApp(t, 5000)
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != reqID {
		t.Fatalf("handler should see the same request id, got %s vs %s", body, reqID)
	}
}

func TestRouterReturnsJSONForUnknownRoute(t *testing.T) {
	app, hook := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("GET", "/nothing/here", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"route_not_found"`)) {
		t.Fatalf("expected route_not_found error, got %s", string(body))
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["status"] != fiber.StatusNotFound || entry.Data["path"] != "/nothing/here" {
		t.Fatalf("expected access log for failed request, got %+v", entry)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	app, _ := newTestApp(t, 5000)
	app.Get("/boom", func(c fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	if _, err := NewApp(AppOptions{ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logrus.New()}); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func newTestApp(t *testing.T, port int) (*fiber.App, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	app, err := NewApp(AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app, hook
}
