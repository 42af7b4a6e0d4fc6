package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// echoHandler answers "OK|<line>" and records every line it applied.
type echoHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *echoHandler) Apply(_ context.Context, line string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
	return "OK|" + line
}

func (h *echoHandler) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

func serveAsync(ctx context.Context, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestSession_RespondsInOrder(t *testing.T) {
	worker, coord := net.Pipe()
	defer coord.Close()

	h := &echoHandler{}
	s := NewSession(worker, h, &mockLogger{}, time.Second)
	done := serveAsync(context.Background(), s)

	r := bufio.NewReader(coord)
	for _, cmd := range []string{"A|1", "B|2\r", "", "C|3"} {
		if _, err := io.WriteString(coord, cmd+"\n"); err != nil {
			t.Fatal(err)
		}
		if cmd == "" {
			continue
		}
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		want := "OK|" + strings.TrimSuffix(cmd, "\r") + "\n"
		if got != want {
			t.Errorf("response = %q, want %q", got, want)
		}
	}

	_ = coord.Close()
	if err := waitErr(t, done); err != nil {
		t.Errorf("Serve() = %v, want nil on peer close", err)
	}
	if s.State() != SessionClosed {
		t.Errorf("state = %v, want Closed", s.State())
	}
	if got := h.Lines(); len(got) != 3 {
		t.Errorf("applied %v, empty line must be skipped", got)
	}
}

func TestSession_UnterminatedLineNotApplied(t *testing.T) {
	worker, coord := net.Pipe()

	h := &echoHandler{}
	done := serveAsync(context.Background(), NewSession(worker, h, nil, 0))

	if _, err := io.WriteString(coord, "DEBIT|1|5"); err != nil {
		t.Fatal(err)
	}
	_ = coord.Close()

	if err := waitErr(t, done); err != nil {
		t.Errorf("Serve() = %v, want nil", err)
	}
	if got := h.Lines(); len(got) != 0 {
		t.Errorf("partial line was applied: %v", got)
	}
}

func TestSession_LineSplitAcrossWrites(t *testing.T) {
	worker, coord := net.Pipe()
	defer coord.Close()

	h := &echoHandler{}
	done := serveAsync(context.Background(), NewSession(worker, h, nil, time.Second))

	if _, err := io.WriteString(coord, "DEBIT|1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := h.Lines(); len(got) != 0 {
		t.Fatalf("applied %v before the terminator arrived", got)
	}

	if _, err := io.WriteString(coord, "|5\n"); err != nil {
		t.Fatal(err)
	}
	got, err := bufio.NewReader(coord).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if got != "OK|DEBIT|1|5\n" {
		t.Errorf("response = %q", got)
	}
	if lines := h.Lines(); len(lines) != 1 || lines[0] != "DEBIT|1|5" {
		t.Errorf("applied %v, want exactly [DEBIT|1|5]", lines)
	}

	_ = coord.Close()
	if err := waitErr(t, done); err != nil {
		t.Errorf("Serve() = %v, want nil", err)
	}
}

func TestSession_LineTooLong(t *testing.T) {
	worker, coord := net.Pipe()
	defer coord.Close()

	h := &echoHandler{}
	done := serveAsync(context.Background(), NewSession(worker, h, nil, 0))

	go func() {
		_, _ = io.WriteString(coord, strings.Repeat("A", MaxCommandLength+1))
	}()

	if err := waitErr(t, done); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("Serve() = %v, want bufio.ErrTooLong", err)
	}
	if got := h.Lines(); len(got) != 0 {
		t.Errorf("applied %v", got)
	}
}

func TestScanCommands(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
		partial bool
	}{
		{"complete", "A|1\nB", false, 4, "A|1", false},
		{"carriage return", "A|1\r\n", false, 5, "A|1", false},
		{"empty line", "\nA", false, 1, "", false},
		{"need more", "A|1", false, 0, "", false},
		{"unterminated at EOF", "A|1", true, 0, "", true},
		{"nothing at EOF", "", true, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, token, err := scanCommands([]byte(tt.data), tt.atEOF)
			var partial *unterminatedError
			if got := errors.As(err, &partial); got != tt.partial {
				t.Fatalf("err = %v, want unterminated %v", err, tt.partial)
			}
			if advance != tt.advance || string(token) != tt.token {
				t.Errorf("got (%d, %q), want (%d, %q)", advance, token, tt.advance, tt.token)
			}
		})
	}
}

func TestSession_ContextCancelClosesConnection(t *testing.T) {
	worker, coord := net.Pipe()
	defer coord.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(worker, &echoHandler{}, nil, 0)
	done := serveAsync(ctx, s)

	cancel()
	if err := waitErr(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}

	if _, err := coord.Read(make([]byte, 1)); err == nil {
		t.Error("connection still open after cancel")
	}
}

func TestSession_WriteTimeout(t *testing.T) {
	worker, coord := net.Pipe()
	defer coord.Close()

	done := serveAsync(context.Background(), NewSession(worker, &echoHandler{}, nil, 20*time.Millisecond))

	// The peer sends a command but never reads the response.
	if _, err := io.WriteString(coord, "A\n"); err != nil {
		t.Fatal(err)
	}

	err := waitErr(t, done)
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("Serve() = %v, want write timeout", err)
	}
}

func TestSessionState_String(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{SessionConnected, "Connected"},
		{SessionStreaming, "Streaming"},
		{SessionClosed, "Closed"},
		{SessionState(9), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}
