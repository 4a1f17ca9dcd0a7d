package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tuitionledger/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrStudentID     = attribute.Key("student.id")
	attrBillingPeriod = attribute.Key("billing.period")
	attrActor         = attribute.Key("tuition.actor")
)

// GinMiddleware opens a server span per request and tags it with the student
// and billing period the route addresses. Both are also put on the request
// context so query logs under the request carry them.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("tuitionledger/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
		}

		scope := ledgerScope(c)
		if scope.studentID != "" {
			ctx = obscontext.WithStudentIDs(ctx, scope.studentID)
		}
		ctx = obscontext.WithPeriod(ctx, scope.period)
		span.SetAttributes(scopeAttributes(ctx)...)

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

type routeScope struct {
	studentID string
	period    string
}

// ledgerScope reads the student from /students/:id routes and the period from
// the :period segment or the ?period= filter used by reports.
func ledgerScope(c *gin.Context) routeScope {
	var scope routeScope
	if strings.HasPrefix(c.FullPath(), "/api/students/:id") {
		scope.studentID = strings.TrimSpace(c.Param("id"))
	}
	scope.period = strings.TrimSpace(c.Param("period"))
	if scope.period == "" {
		scope.period = strings.TrimSpace(c.Query("period"))
	}
	return scope
}

func scopeAttributes(ctx context.Context) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if actor := obscontext.ActorFromContext(ctx); actor != "" {
		attrs = append(attrs, attrActor.String(actor))
	}
	if ids := obscontext.StudentIDsFromContext(ctx); len(ids) == 1 {
		attrs = append(attrs, attrStudentID.String(ids[0]))
	}
	if period := obscontext.PeriodFromContext(ctx); period != "" {
		attrs = append(attrs, attrBillingPeriod.String(period))
	}
	return SafeAttributes(attrs...)
}
