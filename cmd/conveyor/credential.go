package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/haatos/conveyor/internal"
	"github.com/haatos/conveyor/internal/security"
	"github.com/haatos/conveyor/internal/service"
	"github.com/haatos/conveyor/internal/store"

	_ "modernc.org/sqlite"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage pipeline credentials",
	}
	cmd.AddCommand(newCredentialAddCmd())
	return cmd
}

func newCredentialAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an encrypted credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := promptSecret("secret: ")
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("secret must not be empty")
			}

			rdb := store.InitDatabase(true)
			defer rdb.Close()
			rwdb := store.InitDatabase(false)
			defer rwdb.Close()
			store.RunMigrations(rwdb, internal.MigrationsDir)

			credentialSvc := service.NewCredentialService(
				store.NewCredentialSQLiteStore(rdb, rwdb),
				security.NewAESEncrypter(security.EncryptionKey()),
			)
			c, err := credentialSvc.CreateCredential(
				context.Background(), args[0], description, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential %q added\n", c.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "credential description")
	return cmd
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
