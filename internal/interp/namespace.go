package interp

import (
	"sync"
)

// Namespace is the mapping of names to values that console statements
// execute against. A single instance may be shared by every session
// in the process, or each session may hold a private Clone.
//
// The mutex guards the map itself, nothing more: Go faults on
// concurrent map access, so snapshot-in and write-back-out are
// serialized. Whole statements are NOT atomic. Two operators writing
// the same name race last-write-wins, and a timed-out background
// statement still lands its writes whenever it finishes. That is
// accepted behavior for a human-paced debugging tool, not a data path
// to engineer around.
type Namespace struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewNamespace builds a Namespace seeded from init. The seed map is
// copied; the caller keeps ownership of its own map.
func NewNamespace(init map[string]any) *Namespace {
	vars := make(map[string]any, len(init))
	for k, v := range init {
		vars[k] = v
	}
	return &Namespace{vars: vars}
}

// Clone returns an independent copy with the same contents. Used for
// private-namespace sessions, one clone per connection.
func (n *Namespace) Clone() *Namespace {
	return NewNamespace(n.Snapshot())
}

// Snapshot returns a copy of the current contents, used to seed a VM
// before executing a statement.
func (n *Namespace) Snapshot() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]any, len(n.vars))
	for k, v := range n.vars {
		out[k] = v
	}
	return out
}

// Update merges vars into the namespace, overwriting existing names.
// Called with the globals a statement left behind in its VM.
func (n *Namespace) Update(vars map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, v := range vars {
		n.vars[k] = v
	}
}

// Set stores a single name.
func (n *Namespace) Set(name string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vars[name] = value
}

// Get reads a single name.
func (n *Namespace) Get(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.vars[name]
	return v, ok
}

// Len reports the number of bound names.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vars)
}
