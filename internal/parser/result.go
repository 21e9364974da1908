package parser

import "io"

// Outcome is the kind of a parse result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeNotDone means the document ended before it was complete.
	OutcomeNotDone
	// OutcomeMissingCookie means upstream rejected the session and asked
	// for a retry with fresh cookies.
	OutcomeMissingCookie
	OutcomeIOError
	OutcomeParseError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotDone:
		return "not_done"
	case OutcomeMissingCookie:
		return "missing_cookie"
	case OutcomeIOError:
		return "io_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Result is either Success(data) or one of the failure outcomes, in which
// case Err describes it.
type Result[T any] struct {
	outcome Outcome
	data    T
	err     *ParserError
}

func Success[T any](data T) Result[T] {
	return Result[T]{outcome: OutcomeSuccess, data: data}
}

func Failed[T any](outcome Outcome, err *ParserError) Result[T] {
	return Result[T]{outcome: outcome, err: err}
}

func (r Result[T]) Outcome() Outcome {
	return r.outcome
}

func (r Result[T]) OK() bool {
	return r.outcome == OutcomeSuccess
}

// Data returns the parsed value; it is the zero value unless OK.
func (r Result[T]) Data() T {
	return r.data
}

// Err is nil on success.
func (r Result[T]) Err() *ParserError {
	return r.err
}

// Parser turns one upstream response body into a Result.
type Parser[T any] interface {
	Name() string
	Parse(r io.Reader) Result[T]
}
