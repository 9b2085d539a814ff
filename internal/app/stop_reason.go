package app

import (
	"os"
	"syscall"
)

// StopReason is logged when the app shuts down.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopSIGHUP     StopReason = "sighup"
	StopSIGQUIT    StopReason = "sigquit"
	StopQuit       StopReason = "display_quit"
	StopFatalError StopReason = "fatal_error"
)

// ReasonFor maps a received signal to a stop reason.
func ReasonFor(sig os.Signal) StopReason {
	switch sig {
	case os.Interrupt:
		return StopSIGINT
	case syscall.SIGTERM:
		return StopSIGTERM
	case syscall.SIGHUP:
		return StopSIGHUP
	case syscall.SIGQUIT:
		return StopSIGQUIT
	default:
		return StopUnknown
	}
}

// Signals are the signals that trigger a graceful shutdown.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
