package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
	studentIDsKey
	periodKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithActor records who triggered the operation (an HTTP client or the CLI).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(actorKey).(string)
	return v
}

// WithStudentIDs records the students whose ledger the operation touches.
func WithStudentIDs(ctx context.Context, ids ...string) context.Context {
	if len(ids) == 0 {
		return ctx
	}
	return context.WithValue(ctx, studentIDsKey, append([]string(nil), ids...))
}

func StudentIDsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(studentIDsKey).([]string)
	return v
}

// WithPeriod records the billing period (YYYY-MM) the operation works on.
func WithPeriod(ctx context.Context, period string) context.Context {
	if period == "" {
		return ctx
	}
	return context.WithValue(ctx, periodKey, period)
}

func PeriodFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(periodKey).(string)
	return v
}
