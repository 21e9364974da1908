package timeutil

import "time"

// Staleness windows used by the per-route refresh policy.
const (
	OneDay   = 24 * time.Hour
	OneMonth = 30 * OneDay
)
