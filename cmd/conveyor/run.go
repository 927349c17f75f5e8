package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haatos/conveyor/internal/action"
	"github.com/haatos/conveyor/internal/engine"
	"github.com/haatos/conveyor/internal/notify"
	"github.com/haatos/conveyor/internal/pipeline"
	"github.com/haatos/conveyor/internal/settings"
)

func newRunCmd() *cobra.Command {
	var (
		branch      string
		environment string
		buildID     string
		credentials []string
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline.yml>",
		Short: "Run a pipeline definition locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseDefinitionFile(args[0])
			if err != nil {
				return err
			}

			if environment == "" {
				environment = settings.Settings.Environment
			}
			if buildID == "" {
				buildID = uuid.NewString()
			}
			secrets, err := parseCredentialFlags(credentials)
			if err != nil {
				return err
			}
			rc := pipeline.NewRunContext(branch, buildID, environment, secrets)

			gates := engine.NewGateRegistry()
			executor := engine.NewExecutor(gates)

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go promptApprovals(ctx, gates, cmd.InOrStdin(), cmd.OutOrStdout())

			result, err := executor.Run(ctx, p, rc)
			if err != nil {
				return err
			}

			printRunResult(cmd.OutOrStdout(), result)
			if result.Outcome != engine.OutcomeSuccess {
				return fmt.Errorf("pipeline %q finished with outcome %s", p.Name, result.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "main", "branch the run context carries")
	cmd.Flags().StringVarP(&environment, "environment", "e", "", "target environment")
	cmd.Flags().StringVar(&buildID, "build-id", "", "build identifier (generated when empty)")
	cmd.Flags().StringArrayVarP(
		&credentials, "credential", "c", nil, "credential as name=value, repeatable")
	return cmd
}

func parseDefinitionFile(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewNotifier(settings.Settings.NotifyWebhook)
	registry := action.DefaultRegistry(nil, notifier)
	return pipeline.Parse(data, registry.Resolve)
}

func parseCredentialFlags(pairs []string) (map[string]pipeline.Secret, error) {
	secrets := make(map[string]pipeline.Secret, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid credential %q, expected name=value", pair)
		}
		secrets[name] = pipeline.Secret(value)
	}
	return secrets, nil
}

// promptApprovals polls for pending approval gates and resolves them
// from the terminal.
func promptApprovals(
	ctx context.Context,
	gates *engine.GateRegistry,
	in io.Reader,
	out io.Writer,
) {
	reader := bufio.NewReader(in)
	seen := make(map[string]bool)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, g := range gates.Pending() {
			id := g.ID
			if seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(out, "approval required for %s: %s [y/N] ", g.Path, g.Prompt)
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			_, _ = gates.Decide(id, answer == "y" || answer == "yes")
		}
	}
}

func printRunResult(out io.Writer, result *engine.RunResult) {
	ids := make([]string, 0, len(result.Stages))
	for id := range result.Stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sr := result.Stages[id]
		line := fmt.Sprintf("%-10s %s (%s)", strings.ToUpper(string(sr.Outcome)), id, sr.Duration)
		if sr.TimedOut {
			line += " [timed out]"
		}
		if sr.Err != "" {
			line += ": " + sr.Err
		}
		fmt.Fprintln(out, line)
	}
	for _, hr := range result.Hooks {
		fmt.Fprintf(out, "%-10s hook %s (%s)\n", strings.ToUpper(string(hr.Outcome)), hr.Hook, hr.Trigger)
	}
	fmt.Fprintf(
		out,
		"%s || pipeline %s build %s finished in %s\n",
		strings.ToUpper(string(result.Outcome)),
		result.Pipeline,
		result.BuildID,
		result.Duration,
	)
}
