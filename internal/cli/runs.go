package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/queuesim/pkg/model"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse runs recorded on the server",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var policy string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if policy != "" {
				q.Set("policy", policy)
			}

			var runs []model.Run
			resp, err := client.GetInto("/api/v1/runs?"+q.Encode(), &runs)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %8s  %9s  %s\n", "ID", "NAME", "POLICY", "TICKS", "COMPLETED", "STARTED")
			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %8s  %9s  %s\n", "--", "----", "------", "-----", "---------", "-------")
			for _, r := range runs {
				fmt.Fprintf(out, "%-40s  %-20s  %-10s  %8s  %9d  %s\n", r.ID, r.Name, r.Policy,
					humanize.Comma(int64(r.Ticks)), r.Summary.Completed, humanize.Time(r.StartedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Only runs of this policy")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var gantt bool

	cmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show the results of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/runs/" + url.PathEscape(args[0])

			var run model.Run
			if _, err := client.GetInto(path, &run); err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			var results []model.ClientResult
			if _, err := client.GetInto(path+"/results", &results); err != nil {
				return fmt.Errorf("get results: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:        %s\n", run.ID)
			printSummary(out, run.Name, run.Policy, run.Ticks, run.Summary)
			printCompletionOrder(out, results)
			fmt.Fprintln(out)
			printResults(out, results)
			if gantt {
				fmt.Fprintln(out)
				printGantt(out, run.Segments, run.Ticks)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&gantt, "gantt", false, "Draw the service timeline")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run_id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/runs/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s deleted\n", args[0])
			return nil
		},
	}
}
