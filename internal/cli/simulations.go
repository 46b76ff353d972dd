package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/pkg/model"
)

func simPath(id string, rest ...string) string {
	return "/api/v1/simulations/" + url.PathEscape(id) + strings.Join(rest, "")
}

func newSubmitCmd() *cobra.Command {
	var auto, run bool

	cmd := &cobra.Command{
		Use:   "submit <scenario-file>",
		Short: "Create a simulation on the server from a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := config.Load(args[0])
			if err != nil {
				return err
			}

			path := "/api/v1/simulations"
			if auto {
				path += "?auto=true"
			}
			var snap sim.Snapshot
			resp, err := client.Post(path, sc)
			if err != nil {
				return fmt.Errorf("create simulation: %w", err)
			}
			if err := decodeData(resp, &snap); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulation created: %s\n", snap.ID)
			if !run {
				return nil
			}

			resp, err = client.Post(simPath(snap.ID, "/run"), nil)
			if err != nil {
				return fmt.Errorf("run simulation: %w", err)
			}
			if err := decodeData(resp, &snap); err != nil {
				return err
			}
			printSummary(out, snap.Name, snap.Policy, snap.Tick, snap.Summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Let the server advance the simulation on its own")
	cmd.Flags().BoolVar(&run, "run", false, "Run the simulation to completion right away")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live simulations on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []struct {
				ID       string        `json:"id"`
				Name     string        `json:"name"`
				Policy   string        `json:"policy"`
				Tick     int           `json:"tick"`
				Finished bool          `json:"finished"`
				Auto     bool          `json:"auto"`
				Summary  model.Summary `json:"summary"`
			}
			if _, err := client.GetInto("/api/v1/simulations", &data); err != nil {
				return fmt.Errorf("list simulations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(out, "No simulations found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %6s  %-8s  %s\n", "ID", "NAME", "POLICY", "TICK", "STATE", "DONE")
			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %6s  %-8s  %s\n", "--", "----", "------", "----", "-----", "----")
			for _, s := range data {
				state := "running"
				switch {
				case s.Finished:
					state = "finished"
				case s.Auto:
					state = "auto"
				}
				fmt.Fprintf(out, "%-40s  %-20s  %-10s  %6d  %-8s  %d\n", s.ID, s.Name, s.Policy, s.Tick, state, s.Summary.Completed)
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <simulation_id>",
		Short: "Show the state of a simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap sim.Snapshot
			if _, err := client.GetInto(simPath(args[0]), &snap); err != nil {
				return fmt.Errorf("get simulation: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulation: %s\n", snap.ID)
			fmt.Fprintf(out, "  Name:     %s\n", snap.Name)
			fmt.Fprintf(out, "  Policy:   %s\n", snap.Policy)
			fmt.Fprintf(out, "  Tick:     %d\n", snap.Tick)
			fmt.Fprintf(out, "  Finished: %t\n", snap.Finished)
			if snap.RunID != "" {
				fmt.Fprintf(out, "  Run:      %s\n", snap.RunID)
			}
			fmt.Fprintf(out, "  Queue:    %s\n", strings.Join(snap.Queue, " "))
			for _, lv := range snap.Levels {
				fmt.Fprintf(out, "    L%d %-8s q=%d  %s\n", lv.Index, lv.Policy, lv.Quantum, strings.Join(lv.Clients, " "))
			}

			fmt.Fprintln(out, "  Clients:")
			for _, c := range snap.Clients {
				fmt.Fprintf(out, "    - %s: %s (%d/%d left)\n", c.ID, c.State, c.Remaining, c.Work)
			}
			return nil
		},
	}
}

func newTickCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "tick <simulation_id>",
		Short: "Advance a simulation by one or more ticks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(simPath(args[0], "/tick?n="+strconv.Itoa(n)), nil)
			if err != nil {
				return fmt.Errorf("tick simulation: %w", err)
			}
			var data struct {
				Ticks    []sim.TickResult `json:"ticks"`
				Tick     int              `json:"tick"`
				Finished bool             `json:"finished"`
			}
			if err := decodeData(resp, &data); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, tr := range data.Ticks {
				fmt.Fprintf(out, "%s\n", describeTick(tr))
			}
			fmt.Fprintf(out, "Now at tick %d", data.Tick)
			if data.Finished {
				fmt.Fprint(out, " (finished)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 1, "Number of ticks")
	return cmd
}

func describeTick(tr sim.TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%-5d", tr.Tick)
	if tr.Idle {
		b.WriteString(" idle")
	} else {
		fmt.Fprintf(&b, " served %s", tr.Served)
	}
	if tr.Completed != "" {
		fmt.Fprintf(&b, ", %s done", tr.Completed)
	}
	if len(tr.Arrived) > 0 {
		fmt.Fprintf(&b, ", arrived %s", strings.Join(tr.Arrived, " "))
	}
	if len(tr.Promoted) > 0 {
		fmt.Fprintf(&b, ", promoted %s", strings.Join(tr.Promoted, " "))
	}
	return b.String()
}

func newBlockCmd() *cobra.Command {
	return clientChangeCmd("block", "Take a client out of the queue until resumed")
}

func newResumeCmd() *cobra.Command {
	return clientChangeCmd("resume", "Put a blocked client back in the queue")
}

func clientChangeCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <simulation_id> <client_id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(simPath(args[0], "/clients/", url.PathEscape(args[1]), "/", action), nil)
			if err != nil {
				return fmt.Errorf("%s client: %w", action, err)
			}
			var view sim.ClientView
			if err := decodeData(resp, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Client %s: %s\n", view.ID, view.State)
			return nil
		},
	}
}

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <simulation_id>",
		Short: "Record a simulation as a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(simPath(args[0], "/finish"), nil)
			if err != nil {
				return fmt.Errorf("finish simulation: %w", err)
			}
			var run model.Run
			if err := decodeData(resp, &run); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run recorded: %s\n", run.ID)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <simulation_id>",
		Short: "Discard a live simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete(simPath(args[0])); err != nil {
				return fmt.Errorf("delete simulation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulation %s deleted\n", args[0])
			return nil
		},
	}
}

func newGanttCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gantt <simulation_id>",
		Short: "Draw the service timeline of a simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap sim.Snapshot
			if _, err := client.GetInto(simPath(args[0]), &snap); err != nil {
				return fmt.Errorf("get simulation: %w", err)
			}
			printGantt(cmd.OutOrStdout(), snap.Segments, snap.Tick)
			return nil
		},
	}
}
