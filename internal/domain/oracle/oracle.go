package oracle

import "context"

// Client answers a bounded question given a system instruction and user content.
// Implementations request deterministic (zero temperature) completions.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, system, user string) (string, error)

func (f Func) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
