package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionTimedOut Decision = "timed_out"
)

// ApprovalGate is the runtime state machine behind an approval node:
// pending until an external decision arrives or the timeout elapses,
// terminal afterwards. The executor's walk suspends on the done channel
// rather than polling or sleeping.
type ApprovalGate struct {
	ID      string
	Path    string
	Prompt  string
	Created time.Time
	Timeout time.Duration

	mu       sync.Mutex
	decision Decision
	done     chan struct{}
}

func NewApprovalGate(path, prompt string, timeout time.Duration) *ApprovalGate {
	return &ApprovalGate{
		ID:       uuid.NewString(),
		Path:     path,
		Prompt:   prompt,
		Created:  time.Now().UTC(),
		Timeout:  timeout,
		decision: DecisionPending,
		done:     make(chan struct{}),
	}
}

// Decide resolves a pending gate. A second decision, or a decision
// arriving after the timeout already expired the gate, is rejected.
func (g *ApprovalGate) Decide(approved bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decision != DecisionPending {
		return &AlreadyResolvedError{GateID: g.ID, Decision: g.decision}
	}
	if approved {
		g.decision = DecisionApproved
	} else {
		g.decision = DecisionDenied
	}
	close(g.done)
	return nil
}

// expire moves a still-pending gate to TIMED_OUT. A decision that won
// the race keeps its result.
func (g *ApprovalGate) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decision != DecisionPending {
		return
	}
	g.decision = DecisionTimedOut
	close(g.done)
}

func (g *ApprovalGate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

func (g *ApprovalGate) resolved() <-chan struct{} {
	return g.done
}
