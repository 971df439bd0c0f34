package session

import "errors"

var (
	// ErrEmptyInput is returned for blank submissions; nothing is sent upstream.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy is returned while a submission is pending.
	ErrBusy = errors.New("a request is already pending")
	// ErrUpstreamUnavailable wraps a service-unavailable failure that outlived the retry policy.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamError wraps any other upstream failure.
	ErrUpstreamError = errors.New("upstream error")
	// ErrNoPriorUserTurn is returned by Regenerate when there is nothing to resubmit.
	ErrNoPriorUserTurn = errors.New("no prior user turn")
	// ErrNoClipboard is returned by Copy when no clipboard is configured.
	ErrNoClipboard = errors.New("clipboard unavailable")
)

// upstreamError tags a generator failure with its category while keeping
// the cause separately for display.
type upstreamError struct {
	kind  error
	cause error
}

func (e *upstreamError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *upstreamError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

func classifyUpstream(err error, retryable func(error) bool) error {
	if retryable != nil && retryable(err) {
		return &upstreamError{kind: ErrUpstreamUnavailable, cause: err}
	}
	return &upstreamError{kind: ErrUpstreamError, cause: err}
}
