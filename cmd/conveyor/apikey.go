package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/store"

	_ "modernc.org/sqlite"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage webhook trigger API keys",
	}
	cmd.AddCommand(newAPIKeyAddCmd())
	return cmd
}

func newAPIKeyAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Generate a webhook trigger API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb := store.InitDatabase(true)
			defer rdb.Close()
			rwdb := store.InitDatabase(false)
			defer rwdb.Close()
			store.RunMigrations(rwdb, internal.MigrationsDir)

			apiKeyStore := store.NewAPIKeySQLiteStore(rdb, rwdb)
			key, err := apiKeyStore.CreateAPIKey(
				context.Background(), description, uuid.NewString())
			if err != nil {
				return err
			}
			// the value is only printed once
			fmt.Fprintln(cmd.OutOrStdout(), key.Value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "api key description")
	return cmd
}
