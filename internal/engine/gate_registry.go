package engine

import (
	"sync"
)

// GateRegistry exposes the pending approval gates of in-flight runs to
// the external decision surface.
type GateRegistry struct {
	mu    sync.Mutex
	gates map[string]*ApprovalGate
}

func NewGateRegistry() *GateRegistry {
	return &GateRegistry{gates: make(map[string]*ApprovalGate)}
}

func (r *GateRegistry) Register(g *ApprovalGate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[g.ID] = g
}

func (r *GateRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gates, id)
}

func (r *GateRegistry) Get(id string) (*ApprovalGate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[id]
	return g, ok
}

func (r *GateRegistry) Pending() []*ApprovalGate {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make([]*ApprovalGate, 0, len(r.gates))
	for _, g := range r.gates {
		pending = append(pending, g)
	}
	return pending
}

// Decide routes an external decision to a pending gate and reports the
// terminal decision it produced.
func (r *GateRegistry) Decide(gateID string, approved bool) (Decision, error) {
	g, ok := r.Get(gateID)
	if !ok {
		return "", &GateNotFoundError{GateID: gateID}
	}
	if err := g.Decide(approved); err != nil {
		return "", err
	}
	return g.Decision(), nil
}
