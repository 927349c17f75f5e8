package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/haatos/conveyor/internal/pipeline"
)

// Executor runs a pipeline: it walks the group tree, applies guards,
// enforces timeouts, suspends on approval gates and fires the post-run
// hooks exactly once. One Executor may serve many concurrent runs;
// per-run state lives in the result log, never on the Executor.
type Executor struct {
	gates *GateRegistry
}

func NewExecutor(gates *GateRegistry) *Executor {
	if gates == nil {
		gates = NewGateRegistry()
	}
	return &Executor{gates: gates}
}

func (e *Executor) Gates() *GateRegistry {
	return e.gates
}

// Run executes the pipeline against the run context and reports exactly
// one RunResult. Validation and credential errors reject the run before
// any stage side effect occurs.
func (e *Executor) Run(
	ctx context.Context,
	p *pipeline.Pipeline,
	rc *pipeline.RunContext,
) (*RunResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkCredentials(p, rc); err != nil {
		return nil, err
	}

	started := time.Now()
	rl := newResultLog()
	outcome := OutcomeSuccess
	halted := false

	for _, g := range p.Groups {
		if ctx.Err() != nil {
			e.skipSubtree(rl, g, g.Name, OutcomeCancelled)
			continue
		}
		if halted && !g.AlwaysRun {
			e.skipSubtree(rl, g, g.Name, OutcomeSkipped)
			continue
		}
		if !g.Guard.Evaluate(rc) {
			e.skipSubtree(rl, g, g.Name, OutcomeSkipped)
			continue
		}
		if groupOutcome := e.runGroup(ctx, rl, g, g.Name, rc); groupOutcome == OutcomeFailure {
			outcome = OutcomeFailure
			halted = true
		}
	}

	if ctx.Err() != nil {
		outcome = OutcomeAborted
	}

	e.fireHooks(ctx, rl, p.Hooks, outcome, rc)

	stages, hooks := rl.snapshot()
	return &RunResult{
		Pipeline: p.Name,
		BuildID:  rc.BuildID,
		Outcome:  outcome,
		Duration: time.Since(started),
		Stages:   stages,
		Hooks:    hooks,
	}, nil
}

// checkCredentials walks every referenced action up front so a missing
// credential is a ConfigurationError, never a mid-run surprise.
func checkCredentials(p *pipeline.Pipeline, rc *pipeline.RunContext) error {
	missing := make(map[string]struct{})
	requireFrom := func(action pipeline.Action) {
		cr, ok := action.(pipeline.CredentialRequirer)
		if !ok {
			return
		}
		for _, name := range cr.RequiredCredentials() {
			if !rc.HasCredential(name) {
				missing[name] = struct{}{}
			}
		}
	}

	for _, s := range p.Stages() {
		requireFrom(s.Action)
	}
	for _, hooks := range p.Hooks {
		for _, h := range hooks {
			requireFrom(h.Action)
		}
	}

	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	slices.Sort(names)
	return &ConfigurationError{Missing: names}
}

// runNode dispatches a child and returns its propagation outcome.
// A timed-out stage is recorded CANCELLED but propagates as FAILURE;
// a fail-fast cancellation propagates as CANCELLED so it does not
// count as a second failure.
func (e *Executor) runNode(
	ctx context.Context,
	rl *resultLog,
	node pipeline.Node,
	path string,
	rc *pipeline.RunContext,
) Outcome {
	switch n := node.(type) {
	case *pipeline.Stage:
		return e.runStage(ctx, rl, n, path, rc)
	case *pipeline.Group:
		if !n.Guard.Evaluate(rc) {
			e.skipSubtree(rl, n, path, OutcomeSkipped)
			return OutcomeSkipped
		}
		return e.runGroup(ctx, rl, n, path, rc)
	case *pipeline.Gate:
		return e.runGate(ctx, rl, n, path)
	default:
		rl.record(StageResult{
			StageID: path,
			Outcome: OutcomeFailure,
			Err:     fmt.Sprintf("unknown node type %T", node),
		})
		return OutcomeFailure
	}
}

func (e *Executor) runGroup(
	ctx context.Context,
	rl *resultLog,
	g *pipeline.Group,
	path string,
	rc *pipeline.RunContext,
) Outcome {
	if g.Mode == pipeline.ModeParallel {
		return e.runParallel(ctx, rl, g, path, rc)
	}

	failed := false
	for _, child := range g.Children {
		childPath := path + "/" + child.NodeName()
		if failed && !g.ContinueOnError {
			e.skipChild(rl, child, childPath, OutcomeSkipped)
			continue
		}
		if ctx.Err() != nil {
			e.skipChild(rl, child, childPath, OutcomeCancelled)
			failed = true
			continue
		}
		if e.runNode(ctx, rl, child, childPath, rc) == OutcomeFailure {
			failed = true
		}
	}
	if failed {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (e *Executor) runParallel(
	ctx context.Context,
	rl *resultLog,
	g *pipeline.Group,
	path string,
	rc *pipeline.RunContext,
) Outcome {
	groupCtx := ctx
	var cancel context.CancelFunc
	if g.FailFast {
		groupCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false

	for _, child := range g.Children {
		childPath := path + "/" + child.NodeName()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.runNode(groupCtx, rl, child, childPath, rc) == OutcomeFailure {
				mu.Lock()
				failed = true
				mu.Unlock()
				if cancel != nil {
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	if failed {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

type invokeResult struct {
	result *pipeline.ActionResult
	err    error
}

func (e *Executor) runStage(
	ctx context.Context,
	rl *resultLog,
	s *pipeline.Stage,
	path string,
	rc *pipeline.RunContext,
) Outcome {
	if !s.Guard.Evaluate(rc) {
		rl.record(StageResult{StageID: path, Outcome: OutcomeSkipped})
		return OutcomeSkipped
	}
	// cancellation boundary: once a fail-fast sibling has failed, an
	// unstarted stage never invokes its action
	if ctx.Err() != nil {
		rl.record(StageResult{StageID: path, Outcome: OutcomeCancelled, Err: "cancelled before start"})
		return OutcomeCancelled
	}

	stageCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	started := time.Now()
	done := make(chan invokeResult, 1)
	go func() {
		result, err := s.Action.Invoke(stageCtx, rc)
		done <- invokeResult{result: result, err: err}
	}()

	select {
	case <-stageCtx.Done():
		// cooperative cancellation: the action is signaled through its
		// context, but the walk moves on without waiting for it
		sr := StageResult{
			StageID:  path,
			Outcome:  OutcomeCancelled,
			Duration: time.Since(started),
		}
		if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			sr.TimedOut = true
			sr.Err = fmt.Sprintf("stage timed out after %s", s.Timeout)
			rl.record(sr)
			return OutcomeFailure
		}
		sr.Err = "cancelled"
		rl.record(sr)
		return OutcomeCancelled
	case ir := <-done:
		sr := StageResult{
			StageID:  path,
			Duration: time.Since(started),
		}
		switch {
		case ir.err != nil:
			sr.Outcome = OutcomeFailure
			sr.Err = ir.err.Error()
		case ir.result == nil:
			sr.Outcome = OutcomeFailure
			sr.Err = "action returned no result"
		case ir.result.Status == pipeline.ActionSuccess:
			sr.Outcome = OutcomeSuccess
			sr.Artifacts = ir.result.Artifacts
		default:
			sr.Outcome = OutcomeFailure
			sr.Artifacts = ir.result.Artifacts
			sr.Err = ir.result.Err
		}
		rl.record(sr)
		if sr.Outcome == OutcomeFailure {
			return OutcomeFailure
		}
		return OutcomeSuccess
	}
}

// runGate suspends the walk until the gate is decided, times out or the
// run itself is cancelled. A timeout resolves as a denial and fails the
// containing group.
func (e *Executor) runGate(
	ctx context.Context,
	rl *resultLog,
	gate *pipeline.Gate,
	path string,
) Outcome {
	ag := NewApprovalGate(path, gate.Prompt, gate.Timeout)
	e.gates.Register(ag)
	defer e.gates.Unregister(ag.ID)

	started := time.Now()
	timer := time.NewTimer(gate.Timeout)
	defer timer.Stop()

	select {
	case <-ag.resolved():
	case <-timer.C:
		ag.expire()
	case <-ctx.Done():
		rl.record(StageResult{
			StageID:  path,
			Outcome:  OutcomeCancelled,
			Duration: time.Since(started),
			Err:      "run cancelled while awaiting approval",
		})
		return OutcomeCancelled
	}

	sr := StageResult{StageID: path, Duration: time.Since(started)}
	switch ag.Decision() {
	case DecisionApproved:
		sr.Outcome = OutcomeSuccess
		rl.record(sr)
		return OutcomeSuccess
	case DecisionDenied:
		sr.Outcome = OutcomeFailure
		sr.Err = "approval denied"
		rl.record(sr)
		return OutcomeFailure
	default:
		sr.Outcome = OutcomeFailure
		sr.TimedOut = true
		sr.Err = fmt.Sprintf("approval timed out after %s", gate.Timeout)
		rl.record(sr)
		return OutcomeFailure
	}
}

// skipSubtree records the outcome for every stage and gate under a
// group that never runs. Skipped stages never invoke their actions.
func (e *Executor) skipSubtree(rl *resultLog, g *pipeline.Group, path string, outcome Outcome) {
	for _, child := range g.Children {
		e.skipChild(rl, child, path+"/"+child.NodeName(), outcome)
	}
}

func (e *Executor) skipChild(rl *resultLog, node pipeline.Node, path string, outcome Outcome) {
	switch n := node.(type) {
	case *pipeline.Group:
		e.skipSubtree(rl, n, path, outcome)
	default:
		rl.record(StageResult{StageID: path, Outcome: outcome})
	}
}

// fireHooks dispatches post-run hooks exactly once. Hook failures are
// recorded but the run outcome is already final.
func (e *Executor) fireHooks(
	ctx context.Context,
	rl *resultLog,
	hooks map[pipeline.HookTrigger][]pipeline.Hook,
	outcome Outcome,
	rc *pipeline.RunContext,
) {
	triggers := []pipeline.HookTrigger{pipeline.TriggerAlways}
	switch outcome {
	case OutcomeSuccess:
		triggers = append(triggers, pipeline.TriggerOnSuccess)
	case OutcomeFailure:
		triggers = append(triggers, pipeline.TriggerOnFailure)
	}

	// hooks still fire after an aborted run's context is cancelled
	hookCtx := context.WithoutCancel(ctx)
	for _, trigger := range triggers {
		for _, h := range hooks[trigger] {
			hr := HookResult{Hook: h.Name, Trigger: trigger, Outcome: OutcomeSuccess}
			result, err := h.Action.Invoke(hookCtx, rc)
			switch {
			case err != nil:
				hr.Outcome = OutcomeFailure
				hr.Err = err.Error()
			case result != nil && result.Status != pipeline.ActionSuccess:
				hr.Outcome = OutcomeFailure
				hr.Err = result.Err
			}
			if hr.Outcome == OutcomeFailure {
				log.Printf("hook %q (%s) failed: %s\n", h.Name, trigger, hr.Err)
			}
			rl.recordHook(hr)
		}
	}
}
