package ingest

import (
	"context"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

// Backend is the multi-agent system the console talks to. Submit hands a
// request over; Run delivers the resulting activity on out, in order, until
// ctx is cancelled or the backend goes away.
type Backend interface {
	Submit(ctx context.Context, text string) error
	Run(ctx context.Context, out chan<- events.Event) error
}
