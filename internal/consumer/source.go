// Package consumer runs the background loop that polls decorated alert
// events from Kafka and aggregates their labels into the store.
//
// Offsets are marked when a message is handed to the loop and
// auto-committed in the background, not after aggregation. A crash
// between hand-over and a successful merge can therefore drop a message
// (an at-most-once window inside an otherwise at-least-once pipeline).
// Moving to manual commits performed after aggregation would close that
// window.
package consumer

import (
	"context"
	"time"
)

// Message is one delivered queue message.
type Message struct {
	Value     []byte
	Partition int32
	Offset    int64
}

// Source is the queue boundary the loop polls. Implementations include
// the Kafka-backed source and test fakes.
type Source interface {
	// Poll blocks up to timeout waiting for the next message. It returns
	// (nil, nil) when the timeout expires with no message, and a non-nil
	// error for a delivery error reported by the client. Poll returns
	// ctx.Err() once the context is cancelled.
	Poll(ctx context.Context, timeout time.Duration) (*Message, error)

	// Close tears the source down.
	Close() error
}
