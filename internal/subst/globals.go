package subst

import (
	"sort"
	"sync"
)

// Globals is the process-wide variable mapping consulted after a project's
// own variables. It is safe for concurrent use; a Set is visible to every
// substitution that starts after it returns.
type Globals struct {
	// vars holds the variable values.
	vars map[string]string

	// mu protects vars.
	mu sync.RWMutex
}

// NewGlobals creates a global variable mapping seeded with initial.
func NewGlobals(initial map[string]string) *Globals {
	g := &Globals{vars: make(map[string]string, len(initial))}
	for k, v := range initial {
		g.vars[k] = v
	}
	return g
}

// Set sets a variable value.
func (g *Globals) Set(name, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vars[name] = value
}

// Get returns a variable value.
func (g *Globals) Get(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vars[name]
	return v, ok
}

// Delete removes a variable.
func (g *Globals) Delete(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.vars, name)
}

// Lookup implements Source.
func (g *Globals) Lookup(name string) (string, bool) {
	return g.Get(name)
}

// Snapshot returns the variables sorted by name.
func (g *Globals) Snapshot() Vars {
	g.mu.RLock()
	defer g.mu.RUnlock()

	vs := make(Vars, 0, len(g.vars))
	for k, v := range g.vars {
		vs = append(vs, Var{Name: k, Value: v})
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Name < vs[j].Name })
	return vs
}
