package webhook

import "errors"

var (
	// ErrSignatureInvalid maps to HTTP 403; the body is never processed.
	ErrSignatureInvalid = errors.New("webhook: signature invalid")
	// ErrMalformedPayload is acknowledged with HTTP 200 and logged, because
	// providers retry non-2xx responses and a permanently malformed payload
	// would retry forever.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
	// ErrInvalidTransition marks a state-machine conflict. The request is
	// still acknowledged; the provider did nothing wrong.
	ErrInvalidTransition = errors.New("webhook: invalid state transition")
	// ErrStoreUnavailable surfaces as HTTP 500 so the provider retries; no
	// state was durably committed.
	ErrStoreUnavailable = errors.New("webhook: store unavailable")
	// ErrDispatchFailed marks a failed side effect. State is already
	// committed, so it never affects the HTTP response.
	ErrDispatchFailed = errors.New("webhook: dispatch failed")
)
