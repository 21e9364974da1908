package metadata

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, refresh, or abort decisions.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.

# CauseNetworkFailure

  - Transport failure or unusable HTTP status from the upstream site.
  - Examples: timeouts, DNS failures, connection resets, 5xx.

# CauseCookieExpired

  - The upstream site refused the request because the session cookie
    is missing or expired. Only ever signalled by a parse outcome.

# CauseContentInvalid

  - A response was fetched but could not be parsed.
  - Examples: malformed XML, an HTML page where XML was expected,
    a truncated document.

# CauseStorageFailure

  - Failure while reading or writing the local cache.

# CauseStoreConflict

  - A refresh lost the race against a concurrent refresh of the same route.
    Not an error: the other refresh already landed newer data.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CauseCookieExpired
	CauseContentInvalid
	CauseStorageFailure
	CauseStoreConflict
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseCookieExpired:
		return "cookie_expired"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseStoreConflict:
		return "store_conflict"
	default:
		return "unknown"
	}
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrRouteTag   AttributeKey = "route_tag"
	AttrStopTag    AttributeKey = "stop_tag"
	AttrParser     AttributeKey = "parser"
	AttrOutcome    AttributeKey = "outcome"
	AttrMessage    AttributeKey = "message"
)
