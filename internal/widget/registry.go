package widget

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrDuplicateKind = errors.New("widget kind already registered")

// Factory builds one widget instance.
type Factory func(spec Spec, deps Deps) (Widget, error)

// Kind is one entry in the registration table.
type Kind struct {
	Name string
	New  Factory

	// Defaults used when the configuration leaves them unset.
	FastUpdate      bool
	RefreshInterval int
}

// Registry maps kind names to factories. Names are matched case-insensitively.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(k Kind) error {
	if k.Name == "" || k.New == nil {
		return fmt.Errorf("widget: kind needs a name and a factory")
	}
	key := strings.ToLower(k.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kinds[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, k.Name)
	}
	r.kinds[key] = k
	return nil
}

func (r *Registry) Lookup(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Names lists registered kinds in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for n := range r.kinds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Builtin returns the kinds shipped with infoscreen.
func Builtin() []Kind {
	return []Kind{
		{Name: "clock", New: NewClock, FastUpdate: true, RefreshInterval: 1},
		{Name: "date", New: NewDate, RefreshInterval: 60},
		{Name: "dummy", New: NewDummy, RefreshInterval: 1},
		{Name: "text", New: NewText, RefreshInterval: 60},
	}
}

// DefaultRegistry returns a registry holding the builtin kinds.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}
