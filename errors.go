package jobqueue

import "errors"

var (
	// Builder errors.
	ErrNoJob           = errors.New("jobqueue: must provide a job")
	ErrPriorityNotSet  = errors.New("jobqueue: must provide a priority")
	ErrSessionIDNotSet = errors.New("jobqueue: must provide a running session id")
	ErrCreatedAtNotSet = errors.New("jobqueue: must provide a creation timestamp")

	// Queue errors.
	ErrJobNotFound  = errors.New("jobqueue: job not found")
	ErrDuplicateJob = errors.New("jobqueue: job already enqueued")

	// Store errors.
	ErrStoreClosed = errors.New("jobqueue: store closed")

	// Recovery errors.
	ErrUnknownJobType = errors.New("jobqueue: no decoder registered for job type")

	// Manager errors.
	ErrManagerStarted = errors.New("jobqueue: manager already started")
	ErrManagerStopped = errors.New("jobqueue: manager stopped")
)
