// Package consensus runs three independent interpretations of a case
// summary and reports whether they agree.
//
// Each branch gets its own deadline. A slow, failing or context-ignoring
// branch never blocks or cancels the others; it is reported as a failure
// and can only produce disagreement. There is no majority vote and no
// retry at this layer.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"casetrace/internal/casefile"
)

// Mode selects the role an interpretation branch plays.
type Mode string

const (
	ModePrimary    Mode = "primary"
	ModeLegal      Mode = "legal"
	ModeCrosscheck Mode = "crosscheck"
)

// Modes returns the branch modes in A, B, C order.
func Modes() []Mode {
	return []Mode{ModePrimary, ModeLegal, ModeCrosscheck}
}

// Defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPrefixLength = 500
)

// Outcome of an arbitration.
type Outcome string

const (
	OutcomeVerified     Outcome = "verified"
	OutcomeDisagreement Outcome = "disagreement"
)

// DisagreementMessage accompanies every non-verified result.
const DisagreementMessage = "The three interpretations differ. Additional clarification is required."

// Branch failure reasons other than an interpreter error.
const (
	FailureTimeout   = "timeout"
	FailureCancelled = "cancelled"
)

// Interpreter produces one interpretation of a summary.
type Interpreter interface {
	Interpret(ctx context.Context, summary *casefile.Summary, mode Mode) (string, error)
}

// InterpreterFunc adapts a function to Interpreter.
type InterpreterFunc func(ctx context.Context, summary *casefile.Summary, mode Mode) (string, error)

// Interpret calls f.
func (f InterpreterFunc) Interpret(ctx context.Context, summary *casefile.Summary, mode Mode) (string, error) {
	return f(ctx, summary, mode)
}

// Engines holds the raw output of each branch. A failed branch has "".
type Engines struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
}

// Matrix is the pairwise agreement of the branches.
type Matrix struct {
	AB bool `json:"AB"`
	AC bool `json:"AC"`
	BC bool `json:"BC"`
}

// Failures names why a branch produced no output.
type Failures struct {
	A string `json:"A,omitempty"`
	B string `json:"B,omitempty"`
	C string `json:"C,omitempty"`
}

// Any reports whether any branch failed.
func (f Failures) Any() bool {
	return f.A != "" || f.B != "" || f.C != ""
}

// Result is the arbitration outcome.
type Result struct {
	Mode      Outcome  `json:"mode"`
	Output    string   `json:"output,omitempty"`
	Agreement bool     `json:"agreement"`
	Engines   Engines  `json:"engines"`
	Matrix    Matrix   `json:"matrix"`
	Failures  Failures `json:"failures"`
	Message   string   `json:"message,omitempty"`
}

// Arbitrator compares three concurrent interpretations.
type Arbitrator struct {
	Interpreter Interpreter
	// Timeout bounds each branch. Zero means DefaultTimeout.
	Timeout time.Duration
	// PrefixLength is the number of leading runes compared. Zero means
	// DefaultPrefixLength.
	PrefixLength int
	Logger       *slog.Logger
}

type branch struct {
	output  string
	failure string
}

func (b branch) ok() bool { return b.failure == "" }

// Arbitrate runs the three branches and compares them. It always returns
// once every branch has finished or hit its deadline.
func (a *Arbitrator) Arbitrate(ctx context.Context, summary *casefile.Summary) Result {
	modes := Modes()
	var out [3]branch

	var wg sync.WaitGroup
	for i, m := range modes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = a.run(ctx, summary.Clone(), m)
		}()
	}
	wg.Wait()

	for i, b := range out {
		if !b.ok() {
			a.logger().WarnContext(ctx, "interpretation branch failed",
				"branch", string(rune('A'+i)),
				"mode", string(modes[i]),
				"reason", b.failure,
			)
		}
	}

	n := a.prefixLength()
	agree := func(x, y branch) bool {
		return x.ok() && y.ok() && slices.Equal(prefix(x.output, n), prefix(y.output, n))
	}

	res := Result{
		Engines:  Engines{A: out[0].output, B: out[1].output, C: out[2].output},
		Failures: Failures{A: out[0].failure, B: out[1].failure, C: out[2].failure},
		Matrix: Matrix{
			AB: agree(out[0], out[1]),
			AC: agree(out[0], out[2]),
			BC: agree(out[1], out[2]),
		},
	}
	if res.Matrix.AB && res.Matrix.AC && res.Matrix.BC {
		res.Mode = OutcomeVerified
		res.Output = out[0].output
		res.Agreement = true
		return res
	}
	res.Mode = OutcomeDisagreement
	res.Message = DisagreementMessage
	return res
}

func (a *Arbitrator) run(parent context.Context, summary *casefile.Summary, mode Mode) branch {
	if a.Interpreter == nil {
		return branch{failure: "no interpreter configured"}
	}

	ctx, cancel := context.WithTimeout(parent, a.timeout())
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan branch, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- branch{failure: fmt.Sprintf("panic: %v", r)}
			}
		}()
		s, err := a.Interpreter.Interpret(ctx, summary, mode)
		if err != nil {
			done <- branch{failure: failureReason(parent, ctx, err)}
			return
		}
		done <- branch{output: s}
	}()

	select {
	case b := <-done:
		return b
	case <-ctx.Done():
		select {
		case b := <-done:
			return b
		default:
			return branch{failure: failureReason(parent, ctx, ctx.Err())}
		}
	}
}

func failureReason(parent, ctx context.Context, err error) string {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return FailureCancelled
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return err.Error()
	}
}

func (a *Arbitrator) timeout() time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return DefaultTimeout
}

func (a *Arbitrator) prefixLength() int {
	if a.PrefixLength > 0 {
		return a.PrefixLength
	}
	return DefaultPrefixLength
}

func (a *Arbitrator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// prefix returns the first n UTF-16 code units of s after trimming
// surrounding whitespace. The cut may fall inside a surrogate pair, in
// which case only the high surrogate is kept.
func prefix(s string, n int) []uint16 {
	u := utf16.Encode([]rune(strings.TrimSpace(s)))
	if len(u) > n {
		u = u[:n]
	}
	return u
}
