package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "infoscreen/pkg/logx"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading. Editors tend to write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// Manager holds the committed config and republishes it when the file changes.
type Manager struct {
	path     string
	debounce time.Duration
	validate func(*Config) error

	log logx.Logger

	mu  sync.RWMutex
	cur *Config
	sum uint64

	subsMu sync.Mutex
	subs   map[chan *Config]struct{}
}

type ManagerOption func(*Manager)

// WithValidator adds a check a reloaded config must pass before it is committed.
func WithValidator(fn func(*Config) error) ManagerOption {
	return func(m *Manager) { m.validate = fn }
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

func NewManager(path string, opts ...ManagerOption) *Manager {
	m := &Manager{
		path:     path,
		debounce: DefaultDebounce,
		subs:     map[chan *Config]struct{}{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Path() string { return m.path }

// SetLogger is separate from the options because logging is only set up
// once the first config has been read.
func (m *Manager) SetLogger(log logx.Logger) {
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

func (m *Manager) logger() logx.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.log
}

// Load reads, validates and commits the file.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

// Current returns the last committed config.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func (m *Manager) read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(m.path, b)
	if err != nil {
		return nil, err
	}
	if m.validate != nil {
		if err := m.validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cur = cfg
	m.sum = checksum(cfg)
	m.mu.Unlock()
}

func checksum(cfg *Config) uint64 {
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Subscribe returns a channel receiving every committed reload and a func
// that closes it. A slow subscriber only ever misses stale configs.
func (m *Manager) Subscribe(buffer int) (<-chan *Config, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.subsMu.Unlock()
		})
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for ch := range m.subs {
		for {
			select {
			case ch <- cfg:
			default:
				// full: drop the oldest and retry
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Reload re-reads the file and publishes it when its content changed. It
// reports whether a new config was committed. A config that fails to parse
// or validate leaves the current one in place.
func (m *Manager) Reload() (bool, error) {
	cfg, err := m.read()
	if err != nil {
		return false, err
	}
	sum := checksum(cfg)
	m.mu.RLock()
	same := sum != 0 && sum == m.sum
	m.mu.RUnlock()
	if same {
		return false, nil
	}
	m.commit(cfg)
	m.publish(cfg)
	return true, nil
}

// Watch reloads the file on change until ctx is done. It watches the
// parent directory so that editors replacing the file by rename are
// seen. A broken watcher is returned as an error for the caller to restart.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()
	dir, file := filepath.Split(m.path)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	log := m.logger().With(logx.String("path", m.path))
	log.Debug("config watcher started")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watch: event channel closed")
			}
			if filepath.Base(ev.Name) != file || ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(m.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watch: error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn("config watch overflow; reloading", logx.Err(err))
				timer.Reset(m.debounce)
				continue
			}
			log.Warn("config watch error", logx.Err(err))
		case <-timer.C:
			changed, err := m.Reload()
			switch {
			case err != nil:
				log.Warn("config rejected; keeping previous", logx.Err(err))
			case changed:
				log.Debug("config published")
			default:
				log.Debug("config unchanged")
			}
		}
	}
}
