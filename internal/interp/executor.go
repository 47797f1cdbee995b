package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// FailureKind tags the ways a statement can fail.
type FailureKind string

const (
	// FailureSyntax: the source did not compile.
	FailureSyntax FailureKind = "SyntaxError"
	// FailureExecution: the statement threw while running.
	FailureExecution FailureKind = "ExecutionError"
	// FailureTimeout: threaded mode only; the session stopped waiting
	// but the worker was not interrupted.
	FailureTimeout FailureKind = "TimeoutError"
)

// Failure describes a failed statement in client-ready form. Trace is
// the full multi-line description (message plus the statement's own
// stack frames; nothing from the interpreter internals leaks in,
// since goja stacks only contain script-level frames).
type Failure struct {
	Kind    FailureKind
	Message string
	Trace   string
}

// Result is the outcome of running one statement. Exactly one
// statement produces exactly one Result; it is rendered to the client
// and dropped.
type Result struct {
	// Output is everything the statement printed, already
	// newline-terminated if non-empty.
	Output string
	// Value is the echoed representation of an expression-shaped
	// statement's value. HasValue distinguishes "echoed undefined is
	// suppressed" from "echoed empty string".
	Value    string
	HasValue bool
	// Failure is non-nil when the statement failed.
	Failure *Failure
	// Exit is set when the statement called exit() or quit().
	Exit bool
}

// Executor runs a completed statement against a namespace.
type Executor interface {
	Run(ctx context.Context, stmt *Statement, ns *Namespace) *Result
}

// exitRequest is the sentinel passed to vm.Interrupt by the exit()
// builtin so the session can tell an exit from a real interrupt.
type exitRequest struct{}

// builtinNames are set on every VM and excluded from namespace
// write-back.
var builtinNames = map[string]bool{
	"print":   true,
	"console": true,
	"exit":    true,
	"quit":    true,
}

// evaluate runs one statement in a fresh VM seeded from the
// namespace. A fresh VM per statement keeps abandoned workers off the
// session's interpreter: a timed-out statement keeps running in its
// own VM and only touches the shared world through the namespace.
func evaluate(stmt *Statement, ns *Namespace) *Result {
	vm := goja.New()

	var printed strings.Builder
	printFn := func(call goja.FunctionCall) goja.Value {
		for i, arg := range call.Arguments {
			if i > 0 {
				printed.WriteString(" ")
			}
			printed.WriteString(arg.String())
		}
		printed.WriteString("\n")
		return goja.Undefined()
	}
	if err := vm.Set("print", printFn); err != nil {
		return setupFailure(err)
	}
	console := vm.NewObject()
	if err := console.Set("log", printFn); err != nil {
		return setupFailure(err)
	}
	if err := vm.Set("console", console); err != nil {
		return setupFailure(err)
	}

	exitFn := func(call goja.FunctionCall) goja.Value {
		vm.Interrupt(exitRequest{})
		return goja.Undefined()
	}
	if err := vm.Set("exit", exitFn); err != nil {
		return setupFailure(err)
	}
	if err := vm.Set("quit", exitFn); err != nil {
		return setupFailure(err)
	}

	for name, value := range ns.Snapshot() {
		if err := vm.Set(name, value); err != nil {
			return setupFailure(fmt.Errorf("seed %s: %w", name, err))
		}
	}

	program, err := goja.CompileAST(stmt.Program, false)
	if err != nil {
		return &Result{Failure: &Failure{
			Kind:    FailureSyntax,
			Message: err.Error(),
			Trace:   formatParseError(err),
		}}
	}

	value, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if _, ok := interrupted.Value().(exitRequest); ok {
				return &Result{Output: printed.String(), Exit: true}
			}
		}
		return &Result{
			Output:  printed.String(),
			Failure: executionFailure(err),
		}
	}

	ns.Update(exportGlobals(vm))

	res := &Result{Output: printed.String()}
	if stmt.Expression && value != nil && !goja.IsUndefined(value) {
		res.Value = Display(value)
		res.HasValue = true
		ns.Set("_", value.Export())
	}
	return res
}

// exportGlobals pulls the statement's enumerable globals out of the
// VM. Builtins installed above are skipped; ECMAScript intrinsics
// (Object, Math, ...) are non-enumerable and never show up.
func exportGlobals(vm *goja.Runtime) map[string]any {
	global := vm.GlobalObject()
	keys := global.Keys()
	vars := make(map[string]any, len(keys))
	for _, key := range keys {
		if builtinNames[key] {
			continue
		}
		vars[key] = global.Get(key).Export()
	}
	return vars
}

// executionFailure converts a goja runtime error into a Failure with
// the thrown value and its script-level stack.
func executionFailure(err error) *Failure {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		trace := exc.String()
		if !strings.HasSuffix(trace, "\n") {
			trace += "\n"
		}
		return &Failure{
			Kind:    FailureExecution,
			Message: exc.Value().String(),
			Trace:   trace,
		}
	}
	return &Failure{
		Kind:    FailureExecution,
		Message: err.Error(),
		Trace:   err.Error() + "\n",
	}
}

func setupFailure(err error) *Result {
	return &Result{Failure: &Failure{
		Kind:    FailureExecution,
		Message: err.Error(),
		Trace:   "ExecutionError: " + err.Error() + "\n",
	}}
}

// InlineExecutor runs statements on the calling goroutine, i.e. the
// one servicing the session's protocol loop. The session cannot read
// further input while a statement runs, there is no timeout, and an
// unbounded statement blocks that session forever. Simplicity over
// isolation; the documented trade-off of inline mode.
type InlineExecutor struct{}

// Run executes stmt synchronously. The context is ignored: inline
// execution is never cancellable.
func (InlineExecutor) Run(_ context.Context, stmt *Statement, ns *Namespace) *Result {
	return evaluate(stmt, ns)
}

// ThreadedExecutor runs each statement on its own goroutine and gives
// up waiting after Timeout. The worker is never interrupted: killing
// arbitrary operator code mid-flight is less safe than letting it
// finish, so a runaway statement keeps its goroutine and its eventual
// namespace writes still land. The session reports the timeout and
// moves on.
type ThreadedExecutor struct {
	// Timeout bounds the wait for each statement. Zero waits forever.
	Timeout time.Duration
}

// Run executes stmt on a worker goroutine and waits for the first of:
// the result, the timeout, or ctx being cancelled. The buffered
// channel lets an abandoned worker deliver and exit instead of
// leaking blocked on send.
func (e ThreadedExecutor) Run(ctx context.Context, stmt *Statement, ns *Namespace) *Result {
	resultCh := make(chan *Result, 1)
	go func() {
		resultCh <- evaluate(stmt, ns)
	}()

	if e.Timeout <= 0 {
		select {
		case res := <-resultCh:
			return res
		case <-ctx.Done():
			return timeoutFailure(ctx.Err().Error())
		}
	}

	timer := time.NewTimer(e.Timeout)
	defer timer.Stop()
	select {
	case res := <-resultCh:
		return res
	case <-timer.C:
		return timeoutFailure(fmt.Sprintf(
			"statement still running after %s; worker abandoned, its eventual writes remain visible", e.Timeout))
	case <-ctx.Done():
		return timeoutFailure(ctx.Err().Error())
	}
}

func timeoutFailure(msg string) *Result {
	return &Result{Failure: &Failure{
		Kind:    FailureTimeout,
		Message: msg,
		Trace:   string(FailureTimeout) + ": " + msg + "\n",
	}}
}
