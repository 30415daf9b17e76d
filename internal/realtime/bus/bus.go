// Package bus carries realtime messages between API instances. Every
// instance publishes through the bus and feeds its local hub from the
// forwarder, so a subscriber sees each event once no matter which instance
// produced it.
package bus

import (
	"context"

	"github.com/portakall/retromeet/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	// StartForwarder delivers every published message to onMsg until ctx
	// ends or the bus is closed.
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
