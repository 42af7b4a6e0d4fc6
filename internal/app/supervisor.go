package app

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// HandshakePrefix introduces the worker id on a fresh connection.
const HandshakePrefix = "WORKER|"

// SupervisorConfig contains configuration for the connection supervisor.
type SupervisorConfig struct {
	WorkerID string
	Address  string

	// RetryInterval is the wait after a failed or lost connection. When
	// RetryMax is larger, the wait doubles on every consecutive failure.
	RetryInterval time.Duration
	RetryMax      time.Duration

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// ExitOnDisconnect stops the supervisor when the coordinator closes the
	// connection cleanly, instead of reconnecting.
	ExitOnDisconnect bool
}

// ConnState is the state of the connection supervisor.
type ConnState int32

const (
	ConnDialing ConnState = iota
	ConnHandshaking
	ConnServing
	ConnWaiting
	ConnStopped
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case ConnDialing:
		return "Dialing"
	case ConnHandshaking:
		return "Handshaking"
	case ConnServing:
		return "Serving"
	case ConnWaiting:
		return "Waiting"
	case ConnStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ConnectionEventEmitter is called when a session starts or ends.
type ConnectionEventEmitter interface {
	OnConnected(address string)
	OnDisconnected(err error)
}

// Supervisor keeps the worker connected to the coordinator.
type Supervisor struct {
	config  SupervisorConfig
	dialer  ports.Dialer
	handler ports.CommandHandler
	logger  ports.Logger
	emitter ConnectionEventEmitter

	state    atomic.Int32
	sessions atomic.Int64
}

// NewSupervisor creates a supervisor with the given dependencies.
func NewSupervisor(
	config SupervisorConfig,
	dialer ports.Dialer,
	handler ports.CommandHandler,
	logger ports.Logger,
	emitter ConnectionEventEmitter,
) *Supervisor {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}
	s := &Supervisor{
		config:  config,
		dialer:  dialer,
		handler: handler,
		logger:  logger,
		emitter: emitter,
	}
	s.state.Store(int32(ConnStopped))
	return s
}

// State returns the current supervisor state.
func (s *Supervisor) State() ConnState {
	return ConnState(s.state.Load())
}

// Sessions returns how many sessions have completed the handshake.
func (s *Supervisor) Sessions() int64 {
	return s.sessions.Load()
}

func (s *Supervisor) enter(state ConnState) {
	prev := ConnState(s.state.Swap(int32(state)))
	if prev != state {
		s.logger.Debug("connection state",
			ports.String("from", prev.String()),
			ports.String("to", state.String()),
		)
	}
}

// Run connects, handshakes and serves until ctx is done. Failures are retried
// indefinitely. It returns ctx.Err() on cancellation, or nil when the
// coordinator disconnects cleanly and ExitOnDisconnect is set.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.enter(ConnStopped)

	retry := newRetry(s.config.RetryInterval, s.config.RetryMax)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.enter(ConnDialing)
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("connect to coordinator failed",
				ports.String("address", s.config.Address),
				ports.Duration("retry_in", retry.Current()),
				ports.Err(err),
			)
			if err := s.wait(ctx, retry); err != nil {
				return err
			}
			continue
		}

		s.enter(ConnHandshaking)
		if err := writeLine(conn, HandshakePrefix+s.config.WorkerID, s.config.WriteTimeout); err != nil {
			_ = conn.Close()
			s.logger.Warn("handshake failed", ports.Err(err))
			if err := s.wait(ctx, retry); err != nil {
				return err
			}
			continue
		}

		s.enter(ConnServing)
		retry.Reset()
		s.sessions.Add(1)
		s.logger.Info("connected to coordinator",
			ports.String("address", s.config.Address),
			ports.String("worker_id", s.config.WorkerID),
		)
		if s.emitter != nil {
			s.emitter.OnConnected(s.config.Address)
		}

		err = NewSession(conn, s.handler, s.logger, s.config.WriteTimeout).Serve(ctx)
		_ = conn.Close()
		if s.emitter != nil {
			s.emitter.OnDisconnected(err)
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			s.logger.Info("coordinator closed the connection")
			if s.config.ExitOnDisconnect {
				return nil
			}
		default:
			s.logger.Error("session ended", ports.Err(err))
		}

		if err := s.wait(ctx, retry); err != nil {
			return err
		}
	}
}

func (s *Supervisor) dial(ctx context.Context) (net.Conn, error) {
	if s.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.DialTimeout)
		defer cancel()
	}
	conn, err := s.dialer.DialContext(ctx, "tcp", s.config.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.config.Address, err)
	}
	return conn, nil
}

func (s *Supervisor) wait(ctx context.Context, r *retry) error {
	s.enter(ConnWaiting)
	return r.Wait(ctx)
}
