// Package logx is infoscreen's structured logging on top of zerolog.
//
// Console output is human readable with a short file:line caller, the
// optional file sink is JSON. Per-tick messages go through Throttle.
package logx
