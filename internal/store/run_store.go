package store

import (
	"context"
	"time"
)

type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
	StatusPassed    RunStatus = "passed"
)

type Run struct {
	RunID         int64 `param:"run_id"`
	RunPipelineID int64
	BuildID       string
	Branch        string
	Environment   string
	Output        *string
	Status        RunStatus
	CreatedOn     time.Time
	StartedOn     *time.Time
	EndedOn       *time.Time

	PipelineName string
}

// StageResultRow persists one entry of a run's per-stage outcome log.
type StageResultRow struct {
	StageResultID int64
	ResultRunID   int64
	StageID       string
	Outcome       string
	TimedOut      bool
	DurationMS    int64
	Artifacts     *string
	Error         *string
}

type RunStore interface {
	CreateRun(context.Context, int64, string, string, string) (*Run, error)
	ReadRunByID(context.Context, int64) (*Run, error)
	ReadRunByBuildID(context.Context, string) (*Run, error)
	UpdateRunStartedOn(context.Context, int64, RunStatus, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, RunStatus, *string, *time.Time) error
	DeleteRun(context.Context, int64) error
	ListPipelineRuns(context.Context, int64) ([]Run, error)
	ListLatestPipelineRuns(context.Context, int64, int64) ([]Run, error)
	CountPipelineRuns(context.Context, int64) (int64, error)
	CreateStageResults(context.Context, int64, []StageResultRow) error
	ListStageResults(context.Context, int64) ([]StageResultRow, error)
}
