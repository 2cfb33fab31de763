package queue

import "context"

// Job defines a queue job handler. Jobs are registered on a consumer queue by
// message type; the workers route each dequeued message to its job.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the job with the given payload.
	Handle(ctx context.Context, payload interface{}) error
}
