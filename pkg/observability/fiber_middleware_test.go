package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func statusOf(span sdktrace.ReadOnlySpan) int64 {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key("http.status_code") {
			return kv.Value.AsInt64()
		}
	}
	return 0
}

func TestFiberMiddlewareSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	app := fiber.New()
	app.Use(FiberMiddleware("medcenter"))
	app.Get("/livez", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/queue/:id", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Post("/queue/:id/confirm-to-doctor", func(c fiber.Ctx) error { return fiber.ErrConflict })

	tests := []struct {
		method, path string
		wantSpan     bool
		status       int64
	}{
		{http.MethodGet, "/livez", false, 0},
		{http.MethodGet, "/queue/42", true, 200},
		{http.MethodPost, "/queue/42/confirm-to-doctor", true, 409},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := len(rec.Ended())
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			ended := rec.Ended()
			if !tt.wantSpan {
				if len(ended) != before {
					t.Fatalf("unexpected span for %s", tt.path)
				}
				return
			}
			if len(ended) != before+1 {
				t.Fatalf("spans = %d, want %d", len(ended), before+1)
			}
			span := ended[len(ended)-1]
			if !strings.HasPrefix(span.Name(), tt.method+" ") {
				t.Errorf("span name = %q", span.Name())
			}
			if got := statusOf(span); got != tt.status {
				t.Errorf("http.status_code = %d, want %d", got, tt.status)
			}
			if resp.Header.Get("X-Trace-Id") == "" {
				t.Error("missing X-Trace-Id header")
			}
		})
	}
}

func TestUntraced(t *testing.T) {
	for path, want := range map[string]bool{
		"/livez": true, "/readyz": true, "/startupz": true, "/metrics": true,
		"/api/v1/queue": false, "/api/v1/metrics-report": false,
	} {
		if got := untraced(path); got != want {
			t.Errorf("untraced(%q) = %v", path, got)
		}
	}
}
