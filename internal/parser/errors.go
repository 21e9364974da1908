package parser

import (
	"fmt"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
)

type ParserErrorCause string

const (
	ErrCauseTruncated      ParserErrorCause = "document truncated"
	ErrCauseReadFailure    ParserErrorCause = "failed to read body"
	ErrCauseMalformed      ParserErrorCause = "malformed document"
	ErrCauseCookieRejected ParserErrorCause = "session cookie rejected"
	ErrCauseUpstreamError  ParserErrorCause = "upstream reported error"
)

type ParserError struct {
	Message   string
	Retryable bool
	Cause     ParserErrorCause
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("parser error: %s: %s", e.Cause, e.Message)
}

func (e *ParserError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// MapParserErrorToMetadataCause maps parser-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func MapParserErrorToMetadataCause(err *ParserError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseCookieRejected:
		return metadata.CauseCookieExpired
	case ErrCauseReadFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseTruncated, ErrCauseMalformed, ErrCauseUpstreamError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
