package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/internal/store"
	"github.com/me/queuesim/pkg/model"
)

func newRunCmd() *cobra.Command {
	var maxTicks int
	var gantt, asJSON bool
	var dbPath string

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run a scenario locally to completion and report the results",
		Long: `Loads a YAML or JSON scenario, advances it tick by tick until every client
has finished, and prints per-client results with aggregate metrics.

With --db the run is also saved to a SQLite database, the same one a
queuesim server can be pointed at.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			sess, err := sim.NewSession(sc, logger)
			if err != nil {
				return err
			}

			_, runErr := sess.RunToCompletion(cmd.Context(), maxTicks)
			if runErr != nil && !errors.Is(runErr, sim.ErrTickLimit) {
				return runErr
			}

			run, results, err := sess.Record()
			if err != nil {
				return err
			}
			if dbPath != "" {
				if err := saveRun(cmd, dbPath, run, results); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"run": run, "results": results}); err != nil {
					return err
				}
				return runErr
			}

			printSummary(out, run.Name, run.Policy, run.Ticks, run.Summary)
			printCompletionOrder(out, results)
			fmt.Fprintln(out)
			printResults(out, results)
			if gantt {
				fmt.Fprintln(out)
				printGantt(out, run.Segments, run.Ticks)
			}
			if dbPath != "" {
				fmt.Fprintf(out, "\nSaved run %s to %s\n", run.ID, dbPath)
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Stop after this many ticks (default: scenario max_ticks, then 100000)")
	cmd.Flags().BoolVar(&gantt, "gantt", false, "Draw the service timeline")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run and results as JSON")
	cmd.Flags().StringVar(&dbPath, "db", "", "Save the run to this SQLite database")
	return cmd
}

func saveRun(cmd *cobra.Command, dbPath string, run *model.Run, results []model.ClientResult) error {
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := st.SaveRun(cmd.Context(), run, results); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.Info("run saved", "run_id", run.ID, "db", dbPath)
	return nil
}
