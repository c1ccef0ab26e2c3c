package browser

import (
	"context"
	"time"
)

type WaitPolicy string

const (
	WaitLoad   WaitPolicy = "load"   // load event
	WaitStable WaitPolicy = "stable" // load, network idle and a settled DOM
	WaitNone   WaitPolicy = "none"
)

type LoadOptions struct {
	Wait    WaitPolicy
	Timeout time.Duration // zero uses the fetcher default
}

// Session is one live browser page. Close must be deferred right after acquisition.
type Session interface {
	Load(ctx context.Context, url string, opts LoadOptions) (*Document, error)
	// Snapshot re-reads the current DOM without navigating.
	Snapshot(ctx context.Context) (*Document, error)
	// Evaluate runs a JS function expression, e.g. "() => document.title".
	Evaluate(ctx context.Context, js string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}
