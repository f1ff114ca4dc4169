package connection

import "context"

// Channel is a write-capable handle to one participant's transport
// connection. The registry holds channels for bookkeeping only; the
// underlying resource belongs to whoever accepted the connection.
type Channel interface {
	// Write sends a single text frame. Implementations apply their own
	// timeouts; the registry never cancels a write on their behalf.
	Write(ctx context.Context, payload []byte) error
	// Close shuts the connection down gracefully.
	Close(ctx context.Context) error
}
