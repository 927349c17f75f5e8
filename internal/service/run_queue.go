package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/haatos/conveyor/internal/engine"
	"github.com/haatos/conveyor/internal/pipeline"
	"github.com/haatos/conveyor/internal/store"
	"github.com/haatos/conveyor/internal/util"
)

func NewRunQueue(pipelineService *PipelineService, maxRuns int64) *RunQueue {
	return &RunQueue{
		pipelineService: pipelineService,
		queue:           make(chan *store.Run, maxRuns),
		done:            make(chan struct{}),
		cancelRunMap:    NewCancelMap[int64](),
	}
}

// RunQueue serializes the runs of one pipeline. Independent pipelines
// run on independent queues and share no mutable state.
type RunQueue struct {
	pipelineService *PipelineService

	queue        chan *store.Run
	done         chan struct{}
	cancelRunMap *CancelMap[int64]
}

func (rq *RunQueue) CancelRun(runID int64) {
	rq.cancelRunMap.Call(runID)
}

func (rq *RunQueue) Enqueue(r *store.Run) error {
	select {
	case rq.queue <- r:
		return nil
	default:
		return NewErrRunQueueFull()
	}
}

func (rq *RunQueue) Run() {
	for {
		select {
		case run := <-rq.queue:
			ctx, cancel := context.WithCancel(context.Background())
			rq.cancelRunMap.AddCancel(run.RunID, cancel)

			if err := rq.processRun(ctx, run); err != nil {
				endedOn := time.Now().UTC()
				status := store.StatusFailed
				if _, ok := err.(RunCancelError); ok {
					status = store.StatusCancelled
				}
				if sqlErr := rq.pipelineService.UpdateRunEndedOn(
					context.Background(),
					run.RunID,
					status,
					util.AsPtr(err.Error()),
					&endedOn,
				); sqlErr != nil {
					log.Println("err updating run status to failed:", sqlErr)
				}
				log.Println("err processing pipeline run:", err)
			}

			cancel()
			rq.cancelRunMap.RemoveCancel(run.RunID)
		case <-rq.done:
			close(rq.queue)
			return
		}
	}
}

func (rq *RunQueue) Shutdown() {
	select {
	case <-rq.done:
	default:
		close(rq.done)
	}
}

func (rq *RunQueue) processRun(ctx context.Context, run *store.Run) error {
	svc := rq.pipelineService

	p, err := svc.GetPipelineByID(ctx, run.RunPipelineID)
	if err != nil {
		return err
	}

	parsed, err := svc.ParseDefinition(p.Definition)
	if err != nil {
		return err
	}

	credentials, err := svc.credentialService.ResolveCredentials(ctx)
	if err != nil {
		return err
	}
	rc := pipeline.NewRunContext(run.Branch, run.BuildID, run.Environment, credentials)

	startedOn := time.Now().UTC()
	if err := svc.UpdateRunStartedOn(
		context.Background(), run.RunID, store.StatusRunning, &startedOn,
	); err != nil {
		return err
	}

	result, err := svc.executor.Run(ctx, parsed, rc)
	if err != nil {
		// validation and configuration errors reject the run before
		// any stage executed
		return err
	}

	if err := svc.SaveStageResults(
		context.Background(), run.RunID, stageResultRows(result),
	); err != nil {
		log.Println("err saving stage results:", err)
	}

	status := store.StatusPassed
	switch result.Outcome {
	case engine.OutcomeFailure:
		status = store.StatusFailed
	case engine.OutcomeAborted:
		status = store.StatusCancelled
	}

	endedOn := time.Now().UTC()
	if err := svc.UpdateRunEndedOn(
		context.Background(),
		run.RunID,
		status,
		util.AsPtr(runSummary(result)),
		&endedOn,
	); err != nil {
		return err
	}

	if result.Outcome == engine.OutcomeAborted {
		return RunCancelError{Message: "run cancelled"}
	}
	return nil
}

func stageResultRows(result *engine.RunResult) []store.StageResultRow {
	rows := make([]store.StageResultRow, 0, len(result.Stages))
	for id, sr := range result.Stages {
		row := store.StageResultRow{
			StageID:    id,
			Outcome:    string(sr.Outcome),
			TimedOut:   sr.TimedOut,
			DurationMS: sr.Duration.Milliseconds(),
		}
		if len(sr.Artifacts) > 0 {
			if b, err := json.Marshal(sr.Artifacts); err == nil {
				row.Artifacts = util.AsPtr(string(b))
			}
		}
		if sr.Err != "" {
			row.Error = util.AsPtr(sr.Err)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StageID < rows[j].StageID })
	return rows
}

func runSummary(result *engine.RunResult) string {
	sb := new(strings.Builder)
	ids := make([]string, 0, len(result.Stages))
	for id := range result.Stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sr := result.Stages[id]
		fmt.Fprintf(sb, "%-10s %s (%s)\n", sr.Outcome, id, sr.Duration.Round(time.Millisecond))
		if sr.Err != "" {
			fmt.Fprintf(sb, "  |  %s\n", sr.Err)
		}
	}
	for _, hr := range result.Hooks {
		fmt.Fprintf(sb, "%-10s hook %s (%s)\n", hr.Outcome, hr.Hook, hr.Trigger)
	}
	fmt.Fprintf(sb, "%s || pipeline %s finished in %s\n",
		strings.ToUpper(string(result.Outcome)),
		result.Pipeline,
		result.Duration.Round(time.Millisecond),
	)
	return sb.String()
}
