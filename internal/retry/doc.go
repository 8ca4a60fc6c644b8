// Package retry wraps fallible external calls with bounded attempts and
// exponential backoff.
//
// An Executor holds a Policy, a sleep function, and an Observer. Tests inject a
// recording sleep so backoff sequences can be asserted without waiting. Errors
// marked services.ErrFatal or services.ErrConflict stop immediately; everything
// else is retried until the policy is exhausted, at which point the returned
// error matches ErrExhausted and still wraps the last cause.
package retry
