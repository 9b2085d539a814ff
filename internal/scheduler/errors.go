package scheduler

import "errors"

var (
	ErrUnknownWidget   = errors.New("unknown widget kind")
	ErrInvalidLayout   = errors.New("invalid widget layout")
	ErrDuplicateWidget = errors.New("duplicate widget name")
	ErrDrawTimeout     = errors.New("widget draw timed out")
	ErrBusy            = errors.New("widget draw still running")
	ErrUnloaded        = errors.New("scheduler unloaded")
)
