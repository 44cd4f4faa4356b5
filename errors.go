package parley

import "errors"

var (
	// Submission errors. These indicate API misuse and are returned
	// synchronously instead of being recorded as job outcomes.
	ErrEmptyBatch   = errors.New("parley: empty job batch")
	ErrInvalidJob   = errors.New("parley: invalid job")
	ErrQueueClosed  = errors.New("parley: queue closed")
	ErrNoJobFactory = errors.New("parley: no job factory")

	// Execution errors recorded as job outcomes.
	ErrWorkerStopped        = errors.New("parley: worker stopped")
	ErrMissingOutcome       = errors.New("parley: executor returned no outcome for job")
	ErrDependencyUnresolved = errors.New("parley: job dependency unresolved")
	ErrUploadUnsupported    = errors.New("parley: transport does not support uploads")

	// Queue access errors.
	ErrIndexOutOfRange = errors.New("parley: queue index out of range")
	ErrJobNotPending   = errors.New("parley: job no longer pending at index")

	// State store errors.
	ErrStoreClosed = errors.New("parley: state store closed")
)
