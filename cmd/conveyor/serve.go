package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/handler"
	"github.com/haatos/conveyor/internal/notify"
	"github.com/haatos/conveyor/internal/security"
	"github.com/haatos/conveyor/internal/service"
	"github.com/haatos/conveyor/internal/settings"
	"github.com/haatos/conveyor/internal/store"

	_ "modernc.org/sqlite"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	scheduler := service.NewScheduler()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Println("scheduler shutdown: ", err)
		}
	}()

	pipelineStore := store.NewPipelineSQLiteStore(rdb, rwdb)
	runStore := store.NewRunSQLiteStore(rdb, rwdb)
	credentialStore := store.NewCredentialSQLiteStore(rdb, rwdb)
	targetStore := store.NewTargetSQLiteStore(rdb, rwdb)
	apiKeyStore := store.NewAPIKeySQLiteStore(rdb, rwdb)
	aesEncrypter := security.NewAESEncrypter(security.EncryptionKey())
	notifier := notify.NewNotifier(settings.Settings.NotifyWebhook)

	credentialSvc := service.NewCredentialService(credentialStore, aesEncrypter)
	pipelineSvc := service.NewPipelineService(
		pipelineStore,
		runStore,
		targetStore,
		apiKeyStore,
		credentialSvc,
		scheduler,
		notifier,
		settings.Settings.Environment,
	)
	if err := pipelineSvc.InitializeRunQueues(context.Background()); err != nil {
		return err
	}
	defer pipelineSvc.ShutdownAll()

	if err := schedulePipelines(pipelineSvc); err != nil {
		return err
	}
	scheduler.Start()

	e := setupEcho()
	g := e.Group("")
	handler.SetupPipelineRoutes(g, pipelineSvc)
	handler.SetupApprovalRoutes(g, pipelineSvc.Gates())
	handler.SetupCredentialRoutes(g, credentialSvc)
	handler.SetupTargetRoutes(g, pipelineSvc)

	internal.GracefulShutdown(e, settings.Settings.Port)
	return nil
}

// schedulePipelines restores cron jobs for pipelines that carried a
// schedule when the server last stopped.
func schedulePipelines(pipelineSvc *service.PipelineService) error {
	ctx := context.Background()
	pipelines, err := pipelineSvc.ListScheduledPipelines(ctx)
	if err != nil {
		return err
	}
	for _, p := range pipelines {
		if p.Schedule == nil || p.ScheduleBranch == nil {
			continue
		}
		jobID, err := pipelineSvc.SchedulePipelineRun(
			p.PipelineID, *p.Schedule, *p.ScheduleBranch)
		if err != nil {
			log.Println("unable to schedule pipeline: ", err)
			continue
		}
		if err := pipelineSvc.UpdatePipelineScheduleJobID(
			ctx, p.PipelineID, jobID,
		); err != nil {
			log.Println("unable to store schedule job id: ", err)
		}
	}
	return nil
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}
