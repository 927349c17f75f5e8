package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/haatos/conveyor/internal/util"

	_ "modernc.org/sqlite"
)

var pipelineStore *PipelineSQLiteStore
var runStore *RunSQLiteStore
var credentialStore *CredentialSQLiteStore
var targetStore *TargetSQLiteStore
var apiKeyStore *APIKeySQLiteStore

func TestMain(m *testing.M) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		log.Fatal(err)
	}

	RunMigrations(db, "migrations")

	pipelineStore = NewPipelineSQLiteStore(db, db)
	runStore = NewRunSQLiteStore(db, db)
	credentialStore = NewCredentialSQLiteStore(db, db)
	targetStore = NewTargetSQLiteStore(db, db)
	apiKeyStore = NewAPIKeySQLiteStore(db, db)
	code := m.Run()
	os.Exit(code)
}

const testDefinition = `
pipeline: test
groups:
  - group: build
    stages:
      - stage: compile
        run: "true"
`

func generatePipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := pipelineStore.CreatePipeline(
		context.Background(),
		fmt.Sprintf("pipeline-%s", uuid.NewString()),
		"generated test pipeline",
		testDefinition,
	)
	assert.NoError(t, err)
	return p
}

func generateRun(t *testing.T, p *Pipeline) *Run {
	t.Helper()
	r, err := runStore.CreateRun(
		context.Background(),
		p.PipelineID,
		uuid.NewString(),
		"main",
		"development",
	)
	assert.NoError(t, err)
	return r
}

func TestPipelineSQLiteStore_CreatePipeline(t *testing.T) {
	t.Run("success - pipeline created", func(t *testing.T) {
		// arrange
		name := "create pipeline success"
		description := "create pipeline success"

		// act
		p, err := pipelineStore.CreatePipeline(
			context.Background(),
			name, description, testDefinition,
		)

		// assert
		assert.NoError(t, err)
		assert.NotNil(t, p)
		assert.NotEqual(t, 0, p.PipelineID)
		assert.Equal(t, name, p.Name)
		assert.Equal(t, description, p.Description)
		assert.Equal(t, testDefinition, p.Definition)
		assert.Nil(t, p.Schedule)
	})
	t.Run("failure - name already exists", func(t *testing.T) {
		// arrange
		existing := generatePipeline(t)

		// act
		p, err := pipelineStore.CreatePipeline(
			context.Background(),
			existing.Name, "duplicate", testDefinition,
		)

		// assert
		assert.Error(t, err)
		assert.Nil(t, p)
	})
}

func TestPipelineSQLiteStore_ReadPipelineByID(t *testing.T) {
	t.Run("success - pipeline found", func(t *testing.T) {
		// arrange
		expected := generatePipeline(t)

		// act
		p, err := pipelineStore.ReadPipelineByID(context.Background(), expected.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.Name, p.Name)
		assert.Equal(t, expected.Description, p.Description)
		assert.Equal(t, expected.Definition, p.Definition)
	})
	t.Run("failure - pipeline not found", func(t *testing.T) {
		// arrange
		var id int64 = 43241

		// act
		p, err := pipelineStore.ReadPipelineByID(context.Background(), id)

		// assert
		assert.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, p)
	})
}

func TestPipelineSQLiteStore_ReadPipelineByName(t *testing.T) {
	t.Run("success - pipeline found", func(t *testing.T) {
		// arrange
		expected := generatePipeline(t)

		// act
		p, err := pipelineStore.ReadPipelineByName(context.Background(), expected.Name)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.PipelineID, p.PipelineID)
	})
}

func TestPipelineSQLiteStore_UpdatePipeline(t *testing.T) {
	t.Run("success - pipeline updated", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		name := fmt.Sprintf("updated-%s", uuid.NewString())
		description := "updated description"

		// act
		err := pipelineStore.UpdatePipeline(
			context.Background(),
			p.PipelineID, name, description, testDefinition,
		)

		// assert
		assert.NoError(t, err)
		updated, err := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)
		assert.NoError(t, err)
		assert.Equal(t, name, updated.Name)
		assert.Equal(t, description, updated.Description)
	})
}

func TestPipelineSQLiteStore_UpdatePipelineSchedule(t *testing.T) {
	t.Run("success - schedule set and cleared", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		schedule := util.AsPtr("0 4 * * *")
		branch := util.AsPtr("main")
		jobID := util.AsPtr(uuid.NewString())

		// act
		err := pipelineStore.UpdatePipelineSchedule(
			context.Background(), p.PipelineID, schedule, branch, jobID)

		// assert
		assert.NoError(t, err)
		updated, err := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)
		assert.NoError(t, err)
		assert.Equal(t, *schedule, *updated.Schedule)
		assert.Equal(t, *branch, *updated.ScheduleBranch)
		assert.Equal(t, *jobID, *updated.ScheduleJobID)

		scheduled, err := pipelineStore.ListScheduledPipelines(context.Background())
		assert.NoError(t, err)
		assert.True(t, slices.ContainsFunc(scheduled, func(sp *Pipeline) bool {
			return sp.PipelineID == p.PipelineID
		}))

		err = pipelineStore.UpdatePipelineSchedule(
			context.Background(), p.PipelineID, nil, nil, nil)
		assert.NoError(t, err)
		cleared, err := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)
		assert.NoError(t, err)
		assert.Nil(t, cleared.Schedule)
		assert.Nil(t, cleared.ScheduleBranch)
	})
}

func TestPipelineSQLiteStore_DeletePipeline(t *testing.T) {
	t.Run("success - pipeline and runs deleted", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		r := generateRun(t, p)

		// act
		err := pipelineStore.DeletePipeline(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, err)
		_, err = pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		_, err = runStore.ReadRunByID(context.Background(), r.RunID)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}
