package coordinator

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
)

type CoordinatorErrorCause string

const (
	ErrCauseCookieExpired       CoordinatorErrorCause = "cookie still rejected after refresh"
	ErrCauseCookieRefreshFailed CoordinatorErrorCause = "cookie refresh failed"
)

type CoordinatorError struct {
	Message   string
	Retryable bool
	Cause     CoordinatorErrorCause
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("coordinator error: %s: %s", e.Cause, e.Message)
}

func (e *CoordinatorError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// errAlreadyFresh aborts a refresh transaction that lost the race to a
// concurrent refresh of the same route.
var errAlreadyFresh = errors.New("route directions already refreshed")

// mapCoordinatorErrorToMetadataCause maps coordinator-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapCoordinatorErrorToMetadataCause(err *CoordinatorError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseCookieExpired:
		return metadata.CauseCookieExpired
	case ErrCauseCookieRefreshFailed:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
