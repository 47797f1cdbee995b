// Package gomanhole opens an interactive JavaScript console into a
// running process over a TCP or UNIX-domain socket. An operator
// connects with any line client (nc, socat) and gets a REPL whose
// namespace is seeded by the host application, so live state can be
// inspected and mutated in place.
//
// Executed code is fully trusted; there is no sandbox. Bind to
// loopback or a permission-guarded socket path.
package gomanhole

import (
	"github.com/itsmostafa/gomanhole/internal/manhole"
)

// Options configures a manhole. See manhole.Options for field
// semantics.
type Options = manhole.Options

// Exit policies for in-console exit() calls.
const (
	ExitPolicySession = manhole.ExitPolicySession
	ExitPolicyServer  = manhole.ExitPolicyServer
)

// ExitPolicy decides what an in-console exit() call tears down.
type ExitPolicy = manhole.ExitPolicy

// DefaultTimeout is the threaded-mode statement timeout used by the
// daemon when none is configured.
const DefaultTimeout = manhole.DefaultTimeout

// Server is a running manhole.
type Server = manhole.Server

// Start opens the configured listeners and begins serving sessions on
// a background goroutine. The caller should Close the returned server
// on shutdown.
//
//	srv, err := gomanhole.Start(gomanhole.Options{
//		Addr:      "127.0.0.1:9999",
//		Namespace: map[string]any{"app": state},
//		Banner:    "myapp debug console",
//	})
func Start(opts Options) (*Server, error) {
	srv, err := manhole.New(opts)
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	go srv.Serve()
	return srv, nil
}
