package worker

import "github.com/bft-labs/ledgerworker/internal/app"

// State is the lifecycle state of a Worker.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent describes a coordinator session starting or ending.
type ConnectionEvent struct {
	Address   string
	Connected bool
	// Err is the reason the session ended; nil for a clean close.
	Err error
}

// EventHandler receives worker events. Methods are called synchronously and
// should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnConnection(event ConnectionEvent)
}

// BaseEventHandler implements EventHandler with no-ops, for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnConnection(ConnectionEvent)   {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
	address string
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnConnected(address string) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnection(ConnectionEvent{Address: address, Connected: true})
}

func (e *eventEmitterWrapper) OnDisconnected(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnection(ConnectionEvent{Address: e.address, Err: err})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
