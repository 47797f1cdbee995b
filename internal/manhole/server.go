package manhole

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsmostafa/gomanhole/internal/interp"
	"github.com/itsmostafa/gomanhole/internal/logger"
)

// ErrNoListenAddr is returned when neither a TCP address nor a UNIX
// socket path is configured.
var ErrNoListenAddr = errors.New("manhole: at least one of addr or path must be given")

// DefaultTimeout bounds threaded statement execution unless
// configured otherwise.
const DefaultTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address ("127.0.0.1:9999"). Empty
	// disables TCP.
	Addr string
	// Path is a UNIX-domain socket path. Empty disables it. The
	// socket file is removed when the server closes.
	Path string
	// Namespace seeds the value mapping statements execute against.
	Namespace map[string]any
	// Shared makes every connection execute against one namespace
	// instance, mutations visible across connections. Default is a
	// private copy per connection.
	Shared bool
	// Banner is sent once at connect. Empty suppresses it.
	Banner string
	// Threaded selects the background-worker executor with a bounded
	// wait instead of inline execution.
	Threaded bool
	// Timeout bounds each threaded statement. Zero waits forever.
	// Ignored in inline mode.
	Timeout time.Duration
	// OnExit decides whether an in-console exit() closes one
	// connection or the whole server. Defaults to ExitPolicySession.
	OnExit ExitPolicy
}

// Server owns the listeners and spawns one session goroutine per
// accepted connection. Inline statements therefore block only their
// own connection, never the accept loop or other sessions.
type Server struct {
	opts      Options
	ns        *interp.Namespace
	exec      interp.Executor
	listeners []net.Listener
	doneCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New validates opts and builds a Server. Listen must be called
// before Serve.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" && opts.Path == "" {
		return nil, ErrNoListenAddr
	}
	if opts.OnExit == "" {
		opts.OnExit = ExitPolicySession
	}
	var exec interp.Executor = interp.InlineExecutor{}
	if opts.Threaded {
		exec = interp.ThreadedExecutor{Timeout: opts.Timeout}
	}
	return &Server{
		opts:   opts,
		ns:     interp.NewNamespace(opts.Namespace),
		exec:   exec,
		doneCh: make(chan struct{}),
	}, nil
}

// Listen opens the configured listeners.
func (s *Server) Listen() error {
	if s.opts.Addr != "" {
		ln, err := net.Listen("tcp", s.opts.Addr)
		if err != nil {
			return err
		}
		s.listeners = append(s.listeners, ln)
	}
	if s.opts.Path != "" {
		ln, err := net.Listen("unix", s.opts.Path)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.listeners = append(s.listeners, ln)
	}
	return nil
}

// Serve accepts connections on every listener until Close. It blocks;
// run it on its own goroutine.
func (s *Server) Serve() {
	for _, ln := range s.listeners {
		s.wg.Add(1)
		go func(ln net.Listener) {
			defer s.wg.Done()
			s.acceptLoop(ln)
		}(ln)
	}
	s.wg.Wait()
	close(s.doneCh)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed: exit loop.
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn is the per-connection entry point: it builds the session
// config, runs the session until the connection ends, and returns
// without error for every expected shutdown path.
func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	id := uuid.NewString()
	ns := s.ns
	if !s.opts.Shared {
		ns = s.ns.Clone()
	}
	cfg := SessionConfig{
		ID:        id,
		Namespace: ns,
		Executor:  s.exec,
		Banner:    NormalizeBanner(s.opts.Banner),
	}

	logger.Info("session opened", "session", id, "remote", conn.RemoteAddr().String())
	exit, err := Handle(context.Background(), conn, cfg)
	if err != nil {
		logger.Error("session I/O failure", "session", id, "error", err)
	} else {
		logger.Info("session closed", "session", id, "exit", exit)
	}

	if exit && s.opts.OnExit == ExitPolicyServer {
		logger.Warn("exit() requested server shutdown", "session", id)
		_ = s.Close()
	}
}

// Handle runs one session over conn until it ends. Exposed so a host
// application with its own accept loop can drive sessions directly.
func Handle(ctx context.Context, conn io.ReadWriter, cfg SessionConfig) (exit bool, err error) {
	return NewSession(conn, cfg).Run(ctx)
}

// Addr returns the bound address of the first listener, useful when
// listening on an ephemeral port.
func (s *Server) Addr() net.Addr {
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Done closes when Serve has exited.
func (s *Server) Done() <-chan struct{} {
	return s.doneCh
}

// Close stops accepting connections and removes the UNIX socket file.
// Sessions already running keep their connections until they end on
// their own.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeListeners()
		if s.opts.Path != "" {
			_ = os.Remove(s.opts.Path)
		}
	})
	return nil
}

func (s *Server) closeListeners() {
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
}
