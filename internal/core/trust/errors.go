package trust

import "errors"

var (
	// ErrScoreNotFound indicates no persisted score for (did, scope)
	ErrScoreNotFound = errors.New("trust score not found")

	// ErrClusterNotFound indicates no cluster with the given hash
	ErrClusterNotFound = errors.New("sybil cluster not found")

	// ErrJobRunning indicates a reputation run is already in flight for the scope
	ErrJobRunning = errors.New("reputation job already running")
)
