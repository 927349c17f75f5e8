package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/settings"
)

func main() {
	root := &cobra.Command{
		Use:           "conveyor",
		Short:         "Pipeline orchestration engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			internal.InitializeConfiguration()
			settings.ReadDotenv(internal.DotEnvPath)
			settings.Settings = settings.NewSettings()
		},
	}

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newServeCmd(),
		newCredentialCmd(),
		newAPIKeyCmd(),
	)

	if err := root.Execute(); err != nil {
		log.SetFlags(0)
		log.Println(err)
		os.Exit(1)
	}
}
