package observability

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

const tracerName = "github.com/Alijeyrad/medcenter_backend/pkg/observability"

// untraced reports probe and scrape paths that would only add noise.
func untraced(path string) bool {
	return strings.HasPrefix(path, "/livez") || strings.HasPrefix(path, "/readyz") ||
		strings.HasPrefix(path, "/startupz") || path == "/metrics"
}

// FiberMiddleware opens a server span per request and records request count
// and latency. Spans carry the request id and, once tenancy middleware has
// run, the center id and member role.
func FiberMiddleware(serviceName string) fiber.Handler {
	tracer := otel.Tracer(tracerName)
	meter := otel.Meter(tracerName)

	requests, _ := meter.Int64Counter("http_server_request_count",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	latency, _ := meter.Float64Histogram("http_server_request_duration_ms",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))

	return func(c fiber.Ctx) error {
		if untraced(c.Path()) {
			return c.Next()
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Route().Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("http.method", c.Method()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			))
		defer span.End()

		c.SetContext(ctx)
		if rid := reqctx.RequestIDFromContext(ctx); rid != "" {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}
		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-Id", span.SpanContext().TraceID().String())
		}

		start := time.Now()
		err := c.Next()
		ms := float64(time.Since(start).Microseconds()) / 1000

		// Route is resolved only after routing.
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			// The app ErrorHandler writes the response after this returns.
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route), attribute.Int("http.status_code", status))
		if scope, ok := reqctx.CenterFromContext(c.Context()); ok {
			span.SetAttributes(
				attribute.String("medcenter.center_id", scope.CenterID.String()),
				attribute.String("medcenter.member_role", scope.Role),
			)
		}

		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, ms, attrs)

		if status >= 500 {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			if err != nil {
				span.RecordError(err)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
