package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/haatos/conveyor/internal"
)

type RunSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewRunSQLiteStore(rdb, rwdb *sql.DB) *RunSQLiteStore {
	return &RunSQLiteStore{rdb, rwdb}
}

func (store *RunSQLiteStore) CreateRun(
	ctx context.Context,
	pipelineID int64,
	buildID, branch, environment string,
) (*Run, error) {
	r := &Run{
		RunPipelineID: pipelineID,
		BuildID:       buildID,
		Branch:        branch,
		Environment:   environment,
		Status:        StatusQueued,
	}
	query := `insert into runs (
		run_pipeline_id,
		build_id,
		branch,
		environment,
		status
	)
	values ($1, $2, $3, $4, $5)
	returning run_id, created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, r, query,
		r.RunPipelineID, r.BuildID, r.Branch, r.Environment, r.Status,
	); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) ReadRunByID(ctx context.Context, id int64) (*Run, error) {
	r := &Run{RunID: id}
	query := "select * from runs where run_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, r, query, r.RunID); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) ReadRunByBuildID(ctx context.Context, buildID string) (*Run, error) {
	r := new(Run)
	query := "select * from runs where build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, r, query, buildID); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) UpdateRunStartedOn(
	ctx context.Context,
	id int64,
	status RunStatus,
	startedOn *time.Time,
) error {
	query := `update runs
	set status = $1,
		started_on = $2
	where run_id = $3`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		startedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) UpdateRunEndedOn(
	ctx context.Context,
	id int64,
	status RunStatus,
	output *string,
	endedOn *time.Time,
) error {
	query := `update runs
	set status = $1,
		output = $2,
		ended_on = $3
	where run_id = $4`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		output,
		endedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) DeleteRun(ctx context.Context, id int64) error {
	query := "delete from runs where run_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *RunSQLiteStore) ListPipelineRuns(
	ctx context.Context,
	pipelineID int64,
) ([]Run, error) {
	query := `select * from runs
	where run_pipeline_id = $1
	order by created_on desc`
	runs := make([]Run, 0)
	err := sqlscan.Select(ctx, store.rdb, &runs, query, pipelineID)
	return runs, err
}

func (store *RunSQLiteStore) ListLatestPipelineRuns(
	ctx context.Context,
	pipelineID, limit int64,
) ([]Run, error) {
	query := `select * from runs
	where run_pipeline_id = $1
	order by created_on desc limit $2`
	runs := make([]Run, 0)
	err := sqlscan.Select(ctx, store.rdb, &runs, query, pipelineID, limit)
	return runs, err
}

func (store *RunSQLiteStore) CountPipelineRuns(
	ctx context.Context,
	pipelineID int64,
) (int64, error) {
	var count int64
	query := `select count(*) from runs where run_pipeline_id = $1`
	err := sqlscan.Get(ctx, store.rdb, &count, query, pipelineID)
	return count, err
}

func (store *RunSQLiteStore) CreateStageResults(
	ctx context.Context,
	runID int64,
	rows []StageResultRow,
) error {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `insert into stage_results (
		result_run_id,
		stage_id,
		outcome,
		timed_out,
		duration_ms,
		artifacts,
		error
	)
	values ($1, $2, $3, $4, $5, $6, $7)`
	for _, row := range rows {
		if _, err := tx.ExecContext(
			ctx, query,
			runID,
			row.StageID,
			row.Outcome,
			row.TimedOut,
			row.DurationMS,
			row.Artifacts,
			row.Error,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (store *RunSQLiteStore) ListStageResults(
	ctx context.Context,
	runID int64,
) ([]StageResultRow, error) {
	query := `select * from stage_results
	where result_run_id = $1
	order by stage_id`
	rows := make([]StageResultRow, 0)
	err := sqlscan.Select(ctx, store.rdb, &rows, query, runID)
	return rows, err
}
