package engine

import (
	"sync"
	"time"

	"github.com/haatos/conveyor/internal/pipeline"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeAborted   Outcome = "aborted"
)

// StageResult is one entry in the per-stage outcome log. TimedOut
// distinguishes a timeout from an ordinary failure or cancellation.
type StageResult struct {
	StageID   string
	Outcome   Outcome
	TimedOut  bool
	Duration  time.Duration
	Artifacts map[string]string
	Err       string
}

type HookResult struct {
	Hook    string
	Trigger pipeline.HookTrigger
	Outcome Outcome
	Err     string
}

// RunResult is the final, immutable record of one pipeline execution.
// Stage entries are keyed by slash-joined path identifiers, which the
// uniqueness invariant on the model keeps unambiguous.
type RunResult struct {
	Pipeline string
	BuildID  string
	Outcome  Outcome
	Duration time.Duration
	Stages   map[string]StageResult
	Hooks    []HookResult
}

// resultLog is the single mutable structure per run. Parallel children
// report completions concurrently; each stage writes its own key once.
type resultLog struct {
	mu     sync.Mutex
	stages map[string]StageResult
	hooks  []HookResult
}

func newResultLog() *resultLog {
	return &resultLog{stages: make(map[string]StageResult)}
}

func (l *resultLog) record(sr StageResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages[sr.StageID] = sr
}

func (l *resultLog) recordHook(hr HookResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hr)
}

func (l *resultLog) snapshot() (map[string]StageResult, []HookResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stages := make(map[string]StageResult, len(l.stages))
	for id, sr := range l.stages {
		stages[id] = sr
	}
	hooks := make([]HookResult, len(l.hooks))
	copy(hooks, l.hooks)
	return stages, hooks
}
