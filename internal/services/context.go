package services

import "context"

// Trace is the job correlation carried through a render. Each With* call
// stores a copy, so derived contexts never mutate their parent's trace.
type Trace struct {
	JobID     string
	Stage     string
	RequestID string
}

type traceKey struct{}

// TraceFromContext returns the trace on ctx, or the zero Trace.
func TraceFromContext(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	t, _ := ctx.Value(traceKey{}).(Trace)
	return t
}

func withTrace(ctx context.Context, value string, set func(*Trace)) context.Context {
	if value == "" {
		return ctx
	}
	t := TraceFromContext(ctx)
	set(&t)
	return context.WithValue(ctx, traceKey{}, t)
}

// WithJobID records the job a context works on.
func WithJobID(ctx context.Context, id string) context.Context {
	return withTrace(ctx, id, func(t *Trace) { t.JobID = id })
}

// WithStage records the pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return withTrace(ctx, stage, func(t *Trace) { t.Stage = stage })
}

// WithRequestID records the API request that caused the work.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withTrace(ctx, id, func(t *Trace) { t.RequestID = id })
}

func JobIDFromContext(ctx context.Context) (string, bool) {
	id := TraceFromContext(ctx).JobID
	return id, id != ""
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := TraceFromContext(ctx).Stage
	return stage, stage != ""
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := TraceFromContext(ctx).RequestID
	return id, id != ""
}
