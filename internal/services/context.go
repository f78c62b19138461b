package services

import "context"

// annotation keys request-scoped values carried through the pipeline.
type annotation int

const (
	jobIDKey annotation = iota
	stageKey
	providerKey
	requestIDKey
)

func annotate(ctx context.Context, key annotation, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key annotation) (string, bool) {
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}

// WithJobID tags ctx with the dubbing job being processed. Blank ids leave
// ctx unchanged, as do blank values for the other With helpers.
func WithJobID(ctx context.Context, id string) context.Context { return annotate(ctx, jobIDKey, id) }

// WithStage tags ctx with the running pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return annotate(ctx, stageKey, stage)
}

// WithProvider tags ctx with the TTS backend chosen for synthesis.
func WithProvider(ctx context.Context, provider string) context.Context {
	return annotate(ctx, providerKey, provider)
}

// WithRequestID tags ctx with the HTTP request's correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return annotate(ctx, requestIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, jobIDKey) }
func StageFromContext(ctx context.Context) (string, bool) { return lookup(ctx, stageKey) }
func ProviderFromContext(ctx context.Context) (string, bool) { return lookup(ctx, providerKey) }
func RequestIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, requestIDKey) }
