package ecs

import "errors"

var (
	// ErrDispatcherClosed is returned by RunSchedule and WorldScope once
	// Close has been called. A system that panics is reported by
	// RunSchedule with a separate error naming the system.
	ErrDispatcherClosed = errors.New("depot/ecs: dispatcher closed")
)
