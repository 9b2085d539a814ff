// Package systemd sends sd_notify state changes when the process runs as a
// systemd service. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports service state to systemd.
type Notifier struct {
	enabled bool
	notify  func(state string) (bool, error)
}

// New returns a notifier; a disabled one never talks to systemd.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		notify:  func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *Notifier) send(state string) error {
	if n == nil || !n.enabled {
		return nil
	}
	_, err := n.notify(state)
	return err
}

func (n *Notifier) Ready() error    { return n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() error { return n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(s string) error { return n.send("STATUS=" + s) }

// WatchdogInterval returns how often the watchdog must be pinged, or zero
// when the unit has no watchdog configured.
func (n *Notifier) WatchdogInterval() time.Duration {
	if n == nil || !n.enabled {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

// Watchdog pings systemd at half the configured interval until ctx is done.
// healthy gates each ping; a nil healthy always pings.
func (n *Notifier) Watchdog(ctx context.Context, every time.Duration, healthy func() bool) error {
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				continue
			}
			if err := n.send(daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
