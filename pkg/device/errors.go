package device

import "errors"

var (
	// ErrNotFound indicates no device matches the given ID or name
	ErrNotFound = errors.New("device not found")

	// ErrTimeout indicates the relay did not answer in time
	ErrTimeout = errors.New("timed out waiting for relay")

	// ErrNotConnected indicates the backend is unreachable or rejected our credentials
	ErrNotConnected = errors.New("relay not connected")

	// ErrRateLimited indicates the backend refused the request because of its rate limit
	ErrRateLimited = errors.New("relay rate limit exceeded")

	// ErrUnsupported indicates the device has no button for the requested command
	ErrUnsupported = errors.New("command not supported by device")

	// ErrValidation indicates a state payload was rejected before any command was sent
	ErrValidation = errors.New("invalid state payload")
)
