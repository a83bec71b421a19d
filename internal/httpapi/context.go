package httpapi

import (
	"context"
)

// serverBaseCtx is canceled when the daemon shuts down. Handlers join it
// with the request context so in-flight inference stops with the process.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon's shutdown context. Passing nil resets
// to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled as soon as either parent is done.
// Callers must invoke the cancel func, otherwise the watcher goroutine leaks.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}
