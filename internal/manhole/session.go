// Package manhole implements the console server: an accept loop that
// runs one interactive session per connection, each driving the
// accumulate, execute, respond cycle over a line-oriented protocol.
package manhole

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/itsmostafa/gomanhole/internal/interp"
)

// ExitPolicy decides what an in-console exit() call tears down.
type ExitPolicy string

const (
	// ExitPolicySession closes only the calling connection.
	ExitPolicySession ExitPolicy = "session"
	// ExitPolicyServer stops the whole server.
	ExitPolicyServer ExitPolicy = "server"
)

var (
	primaryPrompt      = []byte(">>> ")
	continuationPrompt = []byte("... ")
)

// SessionConfig is the per-connection bundle handed down by the
// server: the namespace the session executes against (shared
// reference or private clone, already decided by the caller), the
// executor variant, and the banner.
type SessionConfig struct {
	ID        string
	Namespace *interp.Namespace
	Executor  interp.Executor
	Banner    []byte
}

// Session drives one client connection. It owns a statement
// accumulator, writes prompts and results, and decides when the
// connection ends. Statements execute strictly one at a time; the
// next line is not read until the previous statement resolved.
type Session struct {
	id     string
	reader *bufio.Reader
	writer *bufio.Writer
	acc    *interp.Accumulator
	exec   interp.Executor
	ns     *interp.Namespace
	banner []byte
}

// NewSession wraps a duplex byte stream in a Session. The stream is
// not closed by the session; the caller owns it.
func NewSession(conn io.ReadWriter, cfg SessionConfig) *Session {
	return &Session{
		id:     cfg.ID,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		acc:    interp.NewAccumulator(),
		exec:   cfg.Executor,
		ns:     cfg.Namespace,
		banner: cfg.Banner,
	}
}

// Run services the connection until it closes. The returned exit flag
// is true when the client's own code called exit(); the error is nil
// for every expected shutdown path (EOF, half-close, peer reset) and
// non-nil only for protocol-layer I/O failures.
//
// Nothing a statement does escapes this loop: per-statement failures
// of every kind are rendered to the client and the session continues.
func (s *Session) Run(ctx context.Context) (exit bool, err error) {
	if len(s.banner) > 0 {
		if err := s.send(s.banner); err != nil {
			return false, err
		}
	}

	for {
		prompt := primaryPrompt
		if s.acc.Pending() {
			prompt = continuationPrompt
		}
		if err := s.send(prompt); err != nil {
			return false, err
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if isClosed(err) {
				// Client went away, possibly mid-statement. Normal
				// shutdown, nothing to report.
				return false, nil
			}
			return false, err
		}

		res := s.acc.Feed(strings.TrimRight(line, "\n"))
		switch res.Kind {
		case interp.Incomplete:
			continue
		case interp.Malformed:
			if err := s.send([]byte(res.Err + "\n")); err != nil {
				return false, err
			}
		case interp.Complete:
			if res.Stmt.Empty() {
				continue
			}
			out := s.exec.Run(ctx, res.Stmt, s.ns)
			if err := s.respond(out); err != nil {
				return false, err
			}
			if out.Exit {
				return true, nil
			}
		}
	}
}

// respond renders one ExecutionResult: captured output first, then
// either the failure description or the echoed value, each line
// newline-terminated. A statement with nothing to say emits nothing;
// the caller's next prompt is the only acknowledgement.
func (s *Session) respond(res *interp.Result) error {
	if res.Output != "" {
		if err := s.send([]byte(res.Output)); err != nil {
			return err
		}
	}
	if res.Failure != nil {
		return s.send([]byte(res.Failure.Trace))
	}
	if res.HasValue {
		return s.send([]byte(res.Value + "\n"))
	}
	return nil
}

// send writes raw bytes and flushes. Prompts have no trailing
// newline, so every write flushes to keep the client current.
func (s *Session) send(b []byte) error {
	if _, err := s.writer.Write(b); err != nil {
		return err
	}
	return s.writer.Flush()
}

// isClosed reports whether a read error means the peer is gone rather
// than that the protocol layer broke.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// NormalizeBanner converts configured banner text to the bytes sent
// at connect: empty stays empty (suppressed), anything else gains a
// trailing newline if missing. Banners travel as bytes on the wire,
// never as unframed text.
func NormalizeBanner(banner string) []byte {
	if banner == "" {
		return nil
	}
	if !strings.HasSuffix(banner, "\n") {
		banner += "\n"
	}
	return []byte(banner)
}
