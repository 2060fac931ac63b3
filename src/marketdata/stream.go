package marketdata

import "context"

type streamKey struct{}

// WithStream tags ctx with the consumer a stateful feed advances a cursor
// for. Replay and random feeds keep one cursor per (stream, symbol), so two
// users on the same symbol each see every bar.
func WithStream(ctx context.Context, stream string) context.Context {
	return context.WithValue(ctx, streamKey{}, stream)
}

func streamOf(ctx context.Context) string {
	s, _ := ctx.Value(streamKey{}).(string)
	return s
}

func cursorKey(ctx context.Context, symbol string) string {
	return streamOf(ctx) + "|" + symbol
}
