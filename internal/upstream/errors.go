package upstream

import (
	"fmt"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
)

type UpstreamErrorCause string

const (
	ErrCauseTimeout               UpstreamErrorCause = "timeout"
	ErrCauseNetworkFailure        UpstreamErrorCause = "network issues"
	ErrCauseReadResponseBodyError UpstreamErrorCause = "failed to read response body"
	ErrCauseRedirectLimitExceeded UpstreamErrorCause = "reached redirect limit"
	ErrCauseRequestForbidden      UpstreamErrorCause = "forbidden"
	ErrCauseRequestTooMany        UpstreamErrorCause = "too many requests"
	ErrCauseRequest4xx            UpstreamErrorCause = "4xx"
	ErrCauseRequest5xx            UpstreamErrorCause = "5xx"
	ErrCauseCancelled             UpstreamErrorCause = "cancelled"
)

// UpstreamError is the IOError of the fetch path. Retryable is advisory:
// the coordinator never retries an IOError, but the limiter backs off on it.
type UpstreamError struct {
	Message   string
	Retryable bool
	Cause     UpstreamErrorCause
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %s: %s", e.Cause, e.Message)
}

func (e *UpstreamError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapUpstreamErrorToMetadataCause maps upstream-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapUpstreamErrorToMetadataCause(err *UpstreamError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseReadResponseBodyError,
		ErrCauseRequest5xx, ErrCauseRequestTooMany, ErrCauseRedirectLimitExceeded:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
