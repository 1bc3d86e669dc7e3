// Command latch loads declarative unit files, runs a cascade sweep
// against a context built from flags, and reports what bound.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arlowe/go-latch/infrastructure/export"
	"github.com/arlowe/go-latch/infrastructure/sinks"
	"github.com/arlowe/go-latch/internal/application"
	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/engine"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOptions holds flags for the run command.
type runOptions struct {
	unitsPath  string
	actor      string
	where      string
	when       string
	state      []string
	maxRounds  int
	auditPath  string
	ledgerPath string
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latch",
		Short: "latch evaluates latent units against a runtime context",
		Long:  "latch registers guard-gated units from a YAML file and cascades bindings until convergence.",
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a cascade sweep over a unit file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.unitsPath, "units", "", "path to the YAML unit file (required)")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "acting perspective (empty for system)")
	cmd.Flags().StringVar(&opts.where, "where", "", "context location")
	cmd.Flags().StringVar(&opts.when, "when", "", "context timestamp, RFC3339 (default now)")
	cmd.Flags().StringArrayVar(&opts.state, "state", nil, "initial state entries as key=value")
	cmd.Flags().IntVar(&opts.maxRounds, "rounds", engine.DefaultMaxRounds, "cascade round cap")
	cmd.Flags().StringVar(&opts.auditPath, "audit", "", "write the attempt trail to this JSONL file")
	cmd.Flags().StringVar(&opts.ledgerPath, "ledger", "", "export the transition ledger to this JSON file")
	_ = cmd.MarkFlagRequired("units")

	return cmd
}

func runSweep(cmd *cobra.Command, opts *runOptions) error {
	units, err := application.NewLoader().LoadFromFile(opts.unitsPath)
	if err != nil {
		return err
	}

	var engineOpts []engine.Option
	if opts.auditPath != "" {
		sink, err := sinks.NewJSONLSink(opts.auditPath)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithAuditSink(sink))
	}

	eng := engine.New(engineOpts...)
	defer eng.Close()

	for _, unit := range units {
		if err := eng.Register(unit); err != nil {
			return fmt.Errorf("register %s: %w", unit.ID, err)
		}
	}

	when := time.Now()
	if opts.when != "" {
		when, err = time.Parse(time.RFC3339, opts.when)
		if err != nil {
			return fmt.Errorf("parse --when: %w", err)
		}
	}
	state, err := parseStateFlags(opts.state)
	if err != nil {
		return err
	}
	ectx := domain.NewContext(opts.actor, when, opts.where, state)

	results, final, err := eng.SweepWith(cmd.Context(), ectx, engine.SweepOptions{
		MaxRounds:      opts.maxRounds,
		ApplyMutations: true,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bound %d of %d units\n", len(results), len(units))
	for _, bound := range results {
		fmt.Fprintf(out, "  %s (%s) weight=%.2f\n", bound.UnitID, bound.UnitType, bound.Weight)
		for _, change := range bound.AppliedChanges {
			fmt.Fprintf(out, "    state %s: %v -> %v\n", change.Key, change.Old, change.New)
		}
	}
	fmt.Fprintf(out, "final state: %v\n", final.StateMap())

	for _, unit := range units {
		if !eng.Satisfied(unit.ID) {
			fmt.Fprintf(out, "%s\n", eng.Explain(unit.ID))
		}
	}

	if opts.ledgerPath != "" {
		if err := export.Ledger(eng.Ledger(), opts.ledgerPath, export.FormatJSON); err != nil {
			return err
		}
	}
	return nil
}

// parseStateFlags turns key=value pairs into an initial state map.
// Values true/false become booleans; everything else stays a string.
func parseStateFlags(entries []string) (map[string]any, error) {
	state := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --state entry %q: want key=value", entry)
		}
		switch value {
		case "true":
			state[key] = true
		case "false":
			state[key] = false
		default:
			state[key] = value
		}
	}
	return state, nil
}
