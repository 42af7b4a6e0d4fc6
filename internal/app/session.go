package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// SessionState is the state of one coordinator connection.
type SessionState int

const (
	SessionConnected SessionState = iota
	SessionStreaming
	SessionClosed
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionConnected:
		return "Connected"
	case SessionStreaming:
		return "Streaming"
	case SessionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session reads newline-framed commands from one connection and writes one
// response line per command, in order.
type Session struct {
	conn         net.Conn
	handler      ports.CommandHandler
	logger       ports.Logger
	writeTimeout time.Duration

	mu    sync.Mutex
	state SessionState
}

// NewSession wraps an established connection. A zero writeTimeout disables
// the write deadline.
func NewSession(conn net.Conn, handler ports.CommandHandler, logger ports.Logger, writeTimeout time.Duration) *Session {
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}
	return &Session{
		conn:         conn,
		handler:      handler,
		logger:       logger,
		writeTimeout: writeTimeout,
		state:        SessionConnected,
	}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// MaxCommandLength bounds one command line, terminator included. A longer
// line ends the session.
const MaxCommandLength = 64 * 1024

// unterminatedError reports bytes left without a terminator when the peer
// closed the stream.
type unterminatedError struct {
	n int
}

func (e *unterminatedError) Error() string {
	return fmt.Sprintf("unterminated command of %d bytes", e.n)
}

// scanCommands splits on '\n' and trims a trailing '\r'. Unlike
// bufio.ScanLines it never yields a final line that has no terminator.
func scanCommands(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r"), nil
	}
	if atEOF && len(data) > 0 {
		return 0, nil, &unterminatedError{n: len(data)}
	}
	return 0, nil, nil
}

// Serve processes commands until the peer closes the connection, an I/O
// error occurs or ctx is done. A clean close by the peer returns nil.
// Canceling ctx closes the connection; the command being applied, if any,
// still completes.
func (s *Session) Serve(ctx context.Context) error {
	s.setState(SessionStreaming)
	defer s.setState(SessionClosed)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-stop:
		}
	}()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxCommandLength)
	scanner.Split(scanCommands)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		resp := s.handler.Apply(ctx, line)
		if err := s.write(resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write response: %w", err)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := scanner.Err()
	var partial *unterminatedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &partial):
		s.logger.Warn("discarding unterminated command", ports.Int("bytes", partial.n))
		return nil
	default:
		return fmt.Errorf("read command: %w", err)
	}
}

func (s *Session) write(resp string) error {
	return writeLine(s.conn, resp, s.writeTimeout)
}

// writeLine writes msg and its terminator, under a deadline when timeout > 0.
func writeLine(conn net.Conn, msg string, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(conn, msg+"\n")
	return err
}
