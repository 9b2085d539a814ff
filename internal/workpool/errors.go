package workpool

import "errors"

var (
	// ErrStopped is returned by Submit once the pool has been terminated.
	ErrStopped = errors.New("workpool stopped")
	// ErrDropped is the result of a job that was still queued at Terminate.
	ErrDropped = errors.New("workpool job dropped before start")
)
