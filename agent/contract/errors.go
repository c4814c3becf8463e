package contract

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrToolFailure    = errors.New("tool execution failed")
	ErrGatewayFailure = errors.New("model gateway failed")
	ErrMemoryStore    = errors.New("memory store unavailable")
	ErrDepthExceeded  = errors.New("tool-call depth exceeded")

	ErrInvalidUser    = errors.New("user id is empty")
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidMessage = errors.New("message is empty")
)
