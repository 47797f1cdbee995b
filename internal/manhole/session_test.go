package manhole

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/gomanhole/internal/interp"
)

type sessionOutcome struct {
	exit bool
	err  error
}

// startSession runs a session over one end of a pipe and reports its
// outcome on the returned channel.
func startSession(conn io.ReadWriter, cfg SessionConfig) <-chan sessionOutcome {
	ch := make(chan sessionOutcome, 1)
	go func() {
		exit, err := Handle(context.Background(), conn, cfg)
		ch <- sessionOutcome{exit: exit, err: err}
	}()
	return ch
}

// expect reads exactly len(want) bytes and compares.
func expect(t *testing.T, r *bufio.Reader, want string) {
	t.Helper()
	buf := make([]byte, len(want))
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, want, string(buf))
}

func sendLine(t *testing.T, w io.Writer, line string) {
	t.Helper()
	_, err := w.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func inlineConfig(ns *interp.Namespace, banner string) SessionConfig {
	return SessionConfig{
		ID:        "test",
		Namespace: ns,
		Executor:  interp.InlineExecutor{},
		Banner:    NormalizeBanner(banner),
	}
}

func TestSessionProtocolRoundTrips(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	outcome := startSession(server, inlineConfig(interp.NewNamespace(nil), "test console"))
	r := bufio.NewReader(client)

	// Banner then primary prompt.
	expect(t, r, "test console\n")
	expect(t, r, ">>> ")

	// Assignment: no output, straight to the next prompt.
	sendLine(t, client, "f = 5 + 5")
	expect(t, r, ">>> ")

	// Reading the name echoes the value.
	sendLine(t, client, "f")
	expect(t, r, "10\n")
	expect(t, r, ">>> ")

	// Multi-line statement: continuation prompt until the block closes.
	sendLine(t, client, "if (f > 5) {")
	expect(t, r, "... ")
	sendLine(t, client, "g = f * 2")
	expect(t, r, "... ")
	sendLine(t, client, "}")
	expect(t, r, ">>> ")

	sendLine(t, client, "g")
	expect(t, r, "20\n")
	expect(t, r, ">>> ")

	// Printed output is relayed before the prompt.
	sendLine(t, client, `print("hi")`)
	expect(t, r, "hi\n")
	expect(t, r, ">>> ")

	// exit() ends the session by design, not as an error.
	sendLine(t, client, "exit()")
	select {
	case out := <-outcome:
		assert.True(t, out.exit)
		assert.NoError(t, out.err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not exit")
	}
}

func TestSessionMalformedStatementReported(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	startSession(server, inlineConfig(interp.NewNamespace(nil), ""))
	r := bufio.NewReader(client)

	expect(t, r, ">>> ")
	sendLine(t, client, ")")

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "SyntaxError")

	// The session recovers: next prompt is primary and statements work.
	expect(t, r, ">>> ")
	sendLine(t, client, "1 + 1")
	expect(t, r, "2\n")
	expect(t, r, ">>> ")
}

func TestSessionBlankLineForcesResolution(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	startSession(server, inlineConfig(interp.NewNamespace(nil), ""))
	r := bufio.NewReader(client)

	expect(t, r, ">>> ")
	sendLine(t, client, "if (true) {")
	expect(t, r, "... ")

	// A blank line may not leave the session waiting forever: the open
	// block resolves as a reported syntax error, then a fresh prompt.
	sendLine(t, client, "")
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "SyntaxError")
	expect(t, r, ">>> ")
}

func TestSessionExecutionFailureKeepsSessionAlive(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	startSession(server, inlineConfig(interp.NewNamespace(nil), ""))
	r := bufio.NewReader(client)

	expect(t, r, ">>> ")
	sendLine(t, client, `throw new Error("boom")`)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "boom")

	// Drain any stack frames until the next prompt, then keep going.
	for {
		b, err := r.Peek(4)
		require.NoError(t, err)
		if string(b) == ">>> " {
			break
		}
		_, err = r.ReadString('\n')
		require.NoError(t, err)
	}
	expect(t, r, ">>> ")
	sendLine(t, client, "2 + 2")
	expect(t, r, "4\n")
}

func TestSessionClosesQuietlyOnEOF(t *testing.T) {
	client, server := net.Pipe()

	outcome := startSession(server, inlineConfig(interp.NewNamespace(nil), ""))
	r := bufio.NewReader(client)
	expect(t, r, ">>> ")

	// Client goes away with no further data: normal shutdown.
	require.NoError(t, client.Close())

	select {
	case out := <-outcome:
		assert.False(t, out.exit)
		assert.NoError(t, out.err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close on EOF")
	}
}

func TestSessionEmptyLineEmitsFreshPrompt(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	startSession(server, inlineConfig(interp.NewNamespace(nil), ""))
	r := bufio.NewReader(client)

	expect(t, r, ">>> ")
	sendLine(t, client, "")
	expect(t, r, ">>> ")
}

func TestSessionThreadedTimeoutStaysResponsive(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ns := interp.NewNamespace(map[string]any{
		"block": func() { <-release },
	})

	client, server := net.Pipe()
	defer client.Close()

	cfg := SessionConfig{
		ID:        "test",
		Namespace: ns,
		Executor:  interp.ThreadedExecutor{Timeout: 100 * time.Millisecond},
	}
	startSession(server, cfg)
	r := bufio.NewReader(client)

	expect(t, r, ">>> ")
	sendLine(t, client, "block()")

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "TimeoutError")

	// The worker is abandoned; the session serves the next statement.
	expect(t, r, ">>> ")
	sendLine(t, client, "1 + 1")
	expect(t, r, "2\n")
	expect(t, r, ">>> ")
}

func TestNormalizeBanner(t *testing.T) {
	tests := []struct {
		name   string
		banner string
		want   string
	}{
		{name: "empty suppressed", banner: "", want: ""},
		{name: "newline appended", banner: "hello", want: "hello\n"},
		{name: "existing newline kept", banner: "hello\n", want: "hello\n"},
		{name: "multi-line", banner: "a\nb", want: "a\nb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBanner(tt.banner)
			if string(got) != tt.want {
				t.Errorf("NormalizeBanner(%q) = %q, want %q", tt.banner, got, tt.want)
			}
			if tt.want == "" && got != nil {
				t.Error("empty banner should normalize to nil")
			}
		})
	}
}
