package services

import "context"

// Jobs, stages and CLI invocations are tagged on the context so loggers and
// wrapped tool errors can pick them up without threading extra arguments.

type ctxKey int

const (
	keyJobID ctxKey = iota
	keyStage
	keyRequestID
)

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}

// WithJobID tags ctx with the pipeline job. An empty id leaves ctx unchanged.
func WithJobID(ctx context.Context, id string) context.Context {
	return withString(ctx, keyJobID, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, keyJobID) }

// WithStage tags ctx with the stage name (stage.Stage.String()).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, keyStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, keyStage) }

// WithRequestID tags ctx with the correlation id of one CLI invocation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, keyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, keyRequestID) }
