package command

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrDuplicateCommand = errors.New("command: duplicate command name")
	ErrNilCommand       = errors.New("command: command is nil")
	ErrInvalidCommand   = errors.New("command: command name required")
)

// Registry stores commands by name and keeps registration order for event
// resolution. All access goes through one mutex.
type Registry struct {
	mu    sync.Mutex
	order []string
	items map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Command)}
}

// Register adds cmd under its name.
func (r *Registry) Register(cmd Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	name := strings.TrimSpace(cmd.Name())
	if name == "" {
		return ErrInvalidCommand
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, name)
	}
	r.items[name] = cmd
	r.order = append(r.order, name)
	return nil
}

// Unregister removes name; absent names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; !ok {
		return
	}
	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the command registered as name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.items[name]
	return cmd, ok
}

// FindByEventName returns the first command, in registration order, that
// declares eventName.
func (r *Registry) FindByEventName(eventName string) (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		cmd := r.items[name]
		if Expects(cmd, eventName) {
			return cmd, true
		}
	}
	return nil, false
}

// Names lists registered commands in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
