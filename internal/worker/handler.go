package worker

import (
	"context"
	"errors"
)

// JobHandler executes one kind of background job.
type JobHandler interface {
	// Type returns the job_type value this handler owns.
	Type() string

	// Handle runs the job. The payload is the raw JSON stored at enqueue
	// time. Wrap errors with NewPermanentError when retrying cannot help,
	// for example a malformed payload or a deleted record.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that must not be retried. The
// worker parks such jobs as failed immediately instead of rescheduling.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the worker gives up on the job.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, anywhere in its chain, is a
// PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
