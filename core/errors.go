package core

import "errors"

var (
	// ErrNotReady correlation did not resolve what the probe needs
	ErrNotReady = errors.New("role bindings not ready")
	// ErrReplayTimeout no response for a replayed exchange in time
	ErrReplayTimeout = errors.New("replay response timeout")
	// ErrReplayFailed the replay channel could not send the exchange
	ErrReplayFailed = errors.New("replay failed")
	// ErrNoReference no captured polling response to compare with
	ErrNoReference = errors.New("no captured polling response with a body")
	// ErrNoChannel no replay channel attached
	ErrNoChannel = errors.New("no replay channel")
)
