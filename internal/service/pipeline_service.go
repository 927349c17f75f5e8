package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/action"
	"github.com/haatos/conveyor/internal/engine"
	"github.com/haatos/conveyor/internal/notify"
	"github.com/haatos/conveyor/internal/pipeline"
	"github.com/haatos/conveyor/internal/store"
	"github.com/haatos/conveyor/internal/util"
)

type PipelineWriter interface {
	CreatePipeline(context.Context, string, string, string) (*store.Pipeline, error)
	UpdatePipeline(context.Context, int64, string, string, string) error
	UpdatePipelineSchedule(context.Context, int64, *string, *string, *string) error
	UpdatePipelineScheduleJobID(context.Context, int64, *string) error
	DeletePipeline(context.Context, int64) error
}

type PipelineReader interface {
	ReadPipelineByID(context.Context, int64) (*store.Pipeline, error)
	ReadPipelineByName(context.Context, string) (*store.Pipeline, error)
	ListPipelines(context.Context) ([]*store.Pipeline, error)
	ListScheduledPipelines(context.Context) ([]*store.Pipeline, error)
}

type PipelineStore interface {
	PipelineWriter
	PipelineReader
}

type RunWriter interface {
	CreateRun(context.Context, int64, string, string, string) (*store.Run, error)
	UpdateRunStartedOn(context.Context, int64, store.RunStatus, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, store.RunStatus, *string, *time.Time) error
	DeleteRun(context.Context, int64) error
	CreateStageResults(context.Context, int64, []store.StageResultRow) error
}

type RunReader interface {
	ReadRunByID(context.Context, int64) (*store.Run, error)
	ReadRunByBuildID(context.Context, string) (*store.Run, error)
	ListPipelineRuns(context.Context, int64) ([]store.Run, error)
	ListLatestPipelineRuns(context.Context, int64, int64) ([]store.Run, error)
	CountPipelineRuns(context.Context, int64) (int64, error)
	ListStageResults(context.Context, int64) ([]store.StageResultRow, error)
}

type RunStore interface {
	RunWriter
	RunReader
}

type TargetStore interface {
	CreateTarget(context.Context, string, string, string, *string, string) (*store.Target, error)
	ReadTargetByName(context.Context, string) (*store.Target, error)
	ListTargets(context.Context) ([]*store.Target, error)
	DeleteTarget(context.Context, int64) error
}

type APIKeyStore interface {
	CreateAPIKey(context.Context, string, string) (*store.APIKey, error)
	ReadAPIKeyByValue(context.Context, string) (*store.APIKey, error)
	ListAPIKeys(context.Context) ([]*store.APIKey, error)
	DeleteAPIKey(context.Context, int64) error
}

type PipelineService struct {
	pipelineStore     PipelineStore
	runStore          RunStore
	targetStore       TargetStore
	apiKeyStore       APIKeyStore
	credentialService *CredentialService
	scheduler         gocron.Scheduler
	notifier          *notify.Notifier
	executor          *engine.Executor
	environment       string

	mu     sync.Mutex
	queues map[int64]*RunQueue
}

func NewPipelineService(
	pipelineStore PipelineStore,
	runStore RunStore,
	targetStore TargetStore,
	apiKeyStore APIKeyStore,
	credentialService *CredentialService,
	scheduler gocron.Scheduler,
	notifier *notify.Notifier,
	environment string,
) *PipelineService {
	return &PipelineService{
		pipelineStore:     pipelineStore,
		runStore:          runStore,
		targetStore:       targetStore,
		apiKeyStore:       apiKeyStore,
		credentialService: credentialService,
		scheduler:         scheduler,
		notifier:          notifier,
		executor:          engine.NewExecutor(engine.NewGateRegistry()),
		environment:       environment,
		queues:            make(map[int64]*RunQueue),
	}
}

// Gates exposes the pending approval gates of in-flight runs.
func (s *PipelineService) Gates() *engine.GateRegistry {
	return s.executor.Gates()
}

// ResolveTarget satisfies action.TargetResolver against the target store.
func (s *PipelineService) ResolveTarget(
	ctx context.Context,
	name string,
) (*action.DeployTarget, error) {
	t, err := s.targetStore.ReadTargetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	dt := &action.DeployTarget{
		Name:           t.Name,
		Endpoint:       t.Endpoint,
		ActivateScript: t.ActivateScript,
	}
	if t.CredentialName != nil {
		dt.Credential = *t.CredentialName
	}
	return dt, nil
}

// ParseDefinition parses and validates a pipeline definition against
// the registered action kinds.
func (s *PipelineService) ParseDefinition(definition string) (*pipeline.Pipeline, error) {
	registry := action.DefaultRegistry(s, s.notifier)
	return pipeline.Parse([]byte(definition), registry.Resolve)
}

func (s *PipelineService) InitializeRunQueues(ctx context.Context) error {
	pipelines, err := s.ListPipelines(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, len(pipelines))
	for i, p := range pipelines {
		ids[i] = p.PipelineID
	}

	s.AddRunQueues(ids, internal.Config.QueueSize)
	s.StartRunQueues()
	return nil
}

func (s *PipelineService) CreatePipeline(
	ctx context.Context,
	name, description, definition string,
) (*store.Pipeline, error) {
	if _, err := s.ParseDefinition(definition); err != nil {
		return nil, err
	}
	p, err := s.pipelineStore.CreatePipeline(ctx, name, description, definition)
	if err != nil {
		return nil, err
	}
	s.AddRunQueue(p.PipelineID, internal.Config.QueueSize)
	if err := s.StartRunQueue(p.PipelineID); err != nil {
		return p, err
	}
	return p, nil
}

func (s *PipelineService) GetPipelineByID(
	ctx context.Context,
	pipelineID int64,
) (*store.Pipeline, error) {
	return s.pipelineStore.ReadPipelineByID(ctx, pipelineID)
}

func (s *PipelineService) GetPipelineByName(
	ctx context.Context,
	name string,
) (*store.Pipeline, error) {
	return s.pipelineStore.ReadPipelineByName(ctx, name)
}

func (s *PipelineService) ListPipelines(
	ctx context.Context,
) ([]*store.Pipeline, error) {
	pipelines, err := s.pipelineStore.ListPipelines(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return pipelines, nil
}

func (s *PipelineService) ListScheduledPipelines(
	ctx context.Context,
) ([]*store.Pipeline, error) {
	pipelines, err := s.pipelineStore.ListScheduledPipelines(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return pipelines, nil
}

func (s *PipelineService) UpdatePipeline(
	ctx context.Context,
	pipelineID int64,
	name, description, definition string,
) error {
	if _, err := s.ParseDefinition(definition); err != nil {
		return err
	}
	return s.pipelineStore.UpdatePipeline(ctx, pipelineID, name, description, definition)
}

func (s *PipelineService) UpdatePipelineSchedule(
	ctx context.Context,
	id int64,
	schedule, branch *string,
) error {
	p, err := s.pipelineStore.ReadPipelineByID(ctx, id)
	if err != nil {
		return err
	}

	if schedule == nil {
		if p.ScheduleJobID != nil && s.scheduler != nil {
			if err := s.scheduler.RemoveJob(uuid.MustParse(*p.ScheduleJobID)); err != nil {
				log.Println("unable to remove existing job: ", err)
			}
		}
		return s.pipelineStore.UpdatePipelineSchedule(ctx, p.PipelineID, nil, nil, nil)
	}

	jobID, err := s.SchedulePipelineRun(p.PipelineID, *schedule, *branch)
	if err != nil {
		return err
	}
	return s.pipelineStore.UpdatePipelineSchedule(ctx, p.PipelineID, schedule, branch, jobID)
}

func (s *PipelineService) UpdatePipelineScheduleJobID(
	ctx context.Context,
	pipelineID int64,
	jobID *string,
) error {
	return s.pipelineStore.UpdatePipelineScheduleJobID(ctx, pipelineID, jobID)
}

func (s *PipelineService) DeletePipeline(
	ctx context.Context, pipelineID int64,
) error {
	err := s.pipelineStore.DeletePipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	s.RemoveRunQueue(pipelineID)
	return nil
}

func (s *PipelineService) CreatePipelineRun(
	ctx context.Context,
	pipelineID int64,
	branch string,
) (*store.Run, error) {
	return s.runStore.CreateRun(ctx, pipelineID, uuid.NewString(), branch, s.environment)
}

func (s *PipelineService) GetRunByID(
	ctx context.Context, runID int64,
) (*store.Run, error) {
	return s.runStore.ReadRunByID(ctx, runID)
}

func (s *PipelineService) UpdateRunStartedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	startedOn *time.Time,
) error {
	return s.runStore.UpdateRunStartedOn(ctx, runID, status, startedOn)
}

func (s *PipelineService) UpdateRunEndedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	output *string,
	endedOn *time.Time,
) error {
	return s.runStore.UpdateRunEndedOn(ctx, runID, status, output, endedOn)
}

func (s *PipelineService) SaveStageResults(
	ctx context.Context,
	runID int64,
	rows []store.StageResultRow,
) error {
	return s.runStore.CreateStageResults(ctx, runID, rows)
}

func (s *PipelineService) ListStageResults(
	ctx context.Context,
	runID int64,
) ([]store.StageResultRow, error) {
	return s.runStore.ListStageResults(ctx, runID)
}

func (s *PipelineService) DeletePipelineRun(
	ctx context.Context, runID int64,
) error {
	return s.runStore.DeleteRun(ctx, runID)
}

func (s *PipelineService) ListPipelineRuns(
	ctx context.Context,
	pipelineID int64,
) ([]store.Run, error) {
	runs, err := s.runStore.ListPipelineRuns(ctx, pipelineID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return runs, nil
}

func (s *PipelineService) ListLatestPipelineRuns(
	ctx context.Context,
	pipelineID, limit int64,
) ([]store.Run, error) {
	return s.runStore.ListLatestPipelineRuns(ctx, pipelineID, limit)
}

func (s *PipelineService) GetPipelineRunCount(
	ctx context.Context, id int64,
) (int64, error) {
	return s.runStore.CountPipelineRuns(ctx, id)
}

func (s *PipelineService) CreateTarget(
	ctx context.Context,
	name, description, endpoint string,
	credentialName *string,
	activateScript string,
) (*store.Target, error) {
	return s.targetStore.CreateTarget(
		ctx, name, description, endpoint, credentialName, activateScript)
}

func (s *PipelineService) ListTargets(ctx context.Context) ([]*store.Target, error) {
	targets, err := s.targetStore.ListTargets(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return targets, nil
}

func (s *PipelineService) DeleteTarget(ctx context.Context, targetID int64) error {
	return s.targetStore.DeleteTarget(ctx, targetID)
}

func (s *PipelineService) CreateAPIKey(
	ctx context.Context,
	description, value string,
) (*store.APIKey, error) {
	return s.apiKeyStore.CreateAPIKey(ctx, description, value)
}

func (s *PipelineService) GetAPIKeyByValue(
	ctx context.Context,
	value string,
) (*store.APIKey, error) {
	return s.apiKeyStore.ReadAPIKeyByValue(ctx, value)
}

func (s *PipelineService) SchedulePipelineRun(
	pipelineID int64,
	schedule, branch string,
) (*string, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			if r, err := s.CreatePipelineRun(
				context.Background(),
				pipelineID,
				branch,
			); err == nil {
				if err := s.EnqueueRun(r); err != nil {
					log.Println("queue is full")
					return
				}
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("error scheduling pipeline job: %+w", err)
	}
	return util.AsPtr(job.ID().String()), nil
}

func (s *PipelineService) AddRunQueues(ids []int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.queues[id] = NewRunQueue(s, maxRuns)
	}
}

func (s *PipelineService) StartRunQueues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		go s.queues[i].Run()
	}
}

func (s *PipelineService) AddRunQueue(id int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id] = NewRunQueue(s, maxRuns)
}

func (s *PipelineService) StartRunQueue(id int64) error {
	rq, ok := s.GetPipelineRunQueue(id)
	if !ok {
		return fmt.Errorf("run queue for pipeline %d does not exist", id)
	}
	go rq.Run()
	return nil
}

func (s *PipelineService) GetPipelineRunQueue(id int64) (*RunQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.queues[id]
	return rq, ok
}

func (s *PipelineService) RemoveRunQueue(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, id)
}

func (s *PipelineService) EnqueueRun(r *store.Run) error {
	rq, ok := s.GetPipelineRunQueue(r.RunPipelineID)
	if !ok {
		return fmt.Errorf("run queue for pipeline %d does not exist", r.RunPipelineID)
	}

	return rq.Enqueue(r)
}

func (s *PipelineService) CancelRun(pipelineID, runID int64) {
	rq, ok := s.GetPipelineRunQueue(pipelineID)
	if !ok {
		return
	}
	rq.CancelRun(runID)
}

func (s *PipelineService) ShutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wg sync.WaitGroup
	for _, rq := range s.queues {
		wg.Go(func() {
			rq.Shutdown()
		})
	}
	wg.Wait()
}
