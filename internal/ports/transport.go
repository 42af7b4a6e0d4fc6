package ports

import (
	"context"
	"net"
)

// Dialer opens the connection to the coordinator.
// *net.Dialer satisfies this interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// CommandHandler executes one framed command line and returns its response
// line without the trailing delimiter.
type CommandHandler interface {
	Apply(ctx context.Context, line string) string
}
