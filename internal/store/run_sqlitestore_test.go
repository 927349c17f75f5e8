package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/haatos/conveyor/internal/util"
)

func TestRunSQLiteStore_CreateRun(t *testing.T) {
	t.Run("success - run created", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		buildID := uuid.NewString()

		// act
		r, err := runStore.CreateRun(
			context.Background(), p.PipelineID, buildID, "main", "staging")

		// assert
		assert.NoError(t, err)
		assert.NotNil(t, r)
		assert.NotEqual(t, 0, r.RunID)
		assert.Equal(t, p.PipelineID, r.RunPipelineID)
		assert.Equal(t, buildID, r.BuildID)
		assert.Equal(t, "main", r.Branch)
		assert.Equal(t, "staging", r.Environment)
		assert.Equal(t, StatusQueued, r.Status)
		assert.Nil(t, r.StartedOn)
		assert.Nil(t, r.EndedOn)
	})
	t.Run("failure - build id already exists", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		existing := generateRun(t, p)

		// act
		r, err := runStore.CreateRun(
			context.Background(), p.PipelineID, existing.BuildID, "main", "staging")

		// assert
		assert.Error(t, err)
		assert.Nil(t, r)
	})
}

func TestRunSQLiteStore_ReadRunByBuildID(t *testing.T) {
	t.Run("success - run found", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		expected := generateRun(t, p)

		// act
		r, err := runStore.ReadRunByBuildID(context.Background(), expected.BuildID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.RunID, r.RunID)
		assert.Equal(t, expected.Branch, r.Branch)
	})
	t.Run("failure - run not found", func(t *testing.T) {
		// act
		r, err := runStore.ReadRunByBuildID(context.Background(), uuid.NewString())

		// assert
		assert.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, r)
	})
}

func TestRunSQLiteStore_UpdateRunLifecycle(t *testing.T) {
	t.Run("success - started and ended timestamps stored", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		r := generateRun(t, p)
		started := time.Now().UTC()
		ended := started.Add(3 * time.Second)
		output := util.AsPtr("PASSED || pipeline finished")

		// act
		err := runStore.UpdateRunStartedOn(
			context.Background(), r.RunID, StatusRunning, &started)
		assert.NoError(t, err)
		err = runStore.UpdateRunEndedOn(
			context.Background(), r.RunID, StatusPassed, output, &ended)

		// assert
		assert.NoError(t, err)
		updated, err := runStore.ReadRunByID(context.Background(), r.RunID)
		assert.NoError(t, err)
		assert.Equal(t, StatusPassed, updated.Status)
		assert.NotNil(t, updated.StartedOn)
		assert.NotNil(t, updated.EndedOn)
		assert.Equal(t, *output, *updated.Output)
	})
}

func TestRunSQLiteStore_ListPipelineRuns(t *testing.T) {
	t.Run("success - runs listed newest first", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		first := generateRun(t, p)
		second := generateRun(t, p)

		// act
		runs, err := runStore.ListPipelineRuns(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.Len(t, runs, 2)
		ids := []int64{runs[0].RunID, runs[1].RunID}
		assert.Contains(t, ids, first.RunID)
		assert.Contains(t, ids, second.RunID)

		count, err := runStore.CountPipelineRuns(context.Background(), p.PipelineID)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), count)

		latest, err := runStore.ListLatestPipelineRuns(context.Background(), p.PipelineID, 1)
		assert.NoError(t, err)
		assert.Len(t, latest, 1)
	})
}

func TestRunSQLiteStore_StageResults(t *testing.T) {
	t.Run("success - stage results stored and listed in order", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		r := generateRun(t, p)
		rows := []StageResultRow{
			{
				StageID:    "build/compile",
				Outcome:    "success",
				DurationMS: 120,
				Artifacts:  util.AsPtr(`{"output":"ok"}`),
			},
			{
				StageID:    "deploy/activate",
				Outcome:    "failure",
				TimedOut:   true,
				DurationMS: 5000,
				Error:      util.AsPtr("stage timed out"),
			},
		}

		// act
		err := runStore.CreateStageResults(context.Background(), r.RunID, rows)

		// assert
		assert.NoError(t, err)
		stored, err := runStore.ListStageResults(context.Background(), r.RunID)
		assert.NoError(t, err)
		assert.Len(t, stored, 2)
		assert.Equal(t, "build/compile", stored[0].StageID)
		assert.Equal(t, "success", stored[0].Outcome)
		assert.False(t, stored[0].TimedOut)
		assert.Equal(t, "deploy/activate", stored[1].StageID)
		assert.True(t, stored[1].TimedOut)
		assert.Equal(t, "stage timed out", *stored[1].Error)
	})
	t.Run("failure - duplicate stage id in one run", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		r := generateRun(t, p)
		rows := []StageResultRow{
			{StageID: "build/compile", Outcome: "success"},
			{StageID: "build/compile", Outcome: "failure"},
		}

		// act
		err := runStore.CreateStageResults(context.Background(), r.RunID, rows)

		// assert
		assert.Error(t, err)
		stored, err := runStore.ListStageResults(context.Background(), r.RunID)
		assert.NoError(t, err)
		assert.Empty(t, stored)
	})
}
