// Package interp implements the statement engine behind a console
// session: accumulating raw input lines into executable JavaScript
// statements and running them against a namespace with goja.
package interp

import (
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// endOfInput is the goja parser's message for source that stopped
// mid-construct (open brace, unterminated call, dangling operator).
// It is the signal that separates "send me another line" from a
// genuine syntax error.
const endOfInput = "Unexpected end of input"

// sourceName is the filename attached to parsed console input; it
// shows up in stack traces sent back to the client.
const sourceName = "<console>"

// FeedKind classifies the outcome of feeding one line.
type FeedKind int

const (
	// Incomplete means the buffered text is a prefix of a valid
	// statement; the caller should request a continuation line.
	Incomplete FeedKind = iota
	// Complete means the buffered text parsed as a full program.
	Complete
	// Malformed means the buffered text can never become valid.
	Malformed
)

// Statement is a fully parsed unit of console input, ready to execute.
type Statement struct {
	// Source is the exact buffered text, lines joined with "\n".
	Source string
	// Program is the parsed form of Source.
	Program *ast.Program
	// Expression reports whether the whole statement is a single
	// non-assignment expression, i.e. whether its value should be
	// echoed back REPL-style.
	Expression bool
}

// Empty reports whether the statement has no executable content
// (e.g. a lone blank line).
func (s *Statement) Empty() bool {
	return len(s.Program.Body) == 0
}

// FeedResult is the outcome of Accumulator.Feed.
type FeedResult struct {
	Kind FeedKind
	// Stmt is set when Kind is Complete.
	Stmt *Statement
	// Err is a client-ready error description when Kind is Malformed.
	Err string
}

// Accumulator buffers input lines until they form a complete
// statement. It is stateful and owned by exactly one session.
type Accumulator struct {
	buf []string
}

// NewAccumulator returns an Accumulator with an empty buffer.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Pending reports whether a partial statement is buffered. Sessions
// use it to choose between the primary and continuation prompts.
func (a *Accumulator) Pending() bool {
	return len(a.buf) > 0
}

// Reset discards any buffered lines.
func (a *Accumulator) Reset() {
	a.buf = nil
}

// Feed appends one line (without its trailing newline) to the buffer
// and attempts to parse the buffered text.
//
// A parse failure at end of input normally means "incomplete, keep the
// buffer and ask for more". The exception is a blank line fed while
// lines are already buffered: that is the client forcing resolution,
// so the result is Complete or Malformed, never Incomplete. The buffer
// is cleared on Complete and Malformed only.
func (a *Accumulator) Feed(line string) FeedResult {
	line = strings.TrimRight(line, "\r")
	force := line == "" && len(a.buf) > 0

	a.buf = append(a.buf, line)
	source := strings.Join(a.buf, "\n")

	program, err := parser.ParseFile(nil, sourceName, source, 0)
	if err != nil {
		if strings.Contains(err.Error(), endOfInput) && !force {
			return FeedResult{Kind: Incomplete}
		}
		a.Reset()
		return FeedResult{Kind: Malformed, Err: formatParseError(err)}
	}

	a.Reset()
	return FeedResult{
		Kind: Complete,
		Stmt: &Statement{
			Source:     source,
			Program:    program,
			Expression: isExpression(program),
		},
	}
}

// isExpression reports whether the program is a single expression
// statement that is not an assignment. Only such statements echo
// their value, so `f = 5 + 5` stays silent while `f` prints 10.
func isExpression(program *ast.Program) bool {
	if len(program.Body) != 1 {
		return false
	}
	stmt, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	_, assign := stmt.Expression.(*ast.AssignExpression)
	return !assign
}

// formatParseError renders a parser error the way the VM would report
// a thrown SyntaxError, one line per underlying error.
func formatParseError(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "SyntaxError") {
		return msg
	}
	return "SyntaxError: " + msg
}
