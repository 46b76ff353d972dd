package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/queuesim/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking QUEUESIM_SERVER first.
func defaultServer() string {
	if s := os.Getenv("QUEUESIM_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the queuesim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "queuesim",
		Short: "queuesim: scheduling policy simulator",
		Long: `queuesim runs tick-based simulations of clients competing for one server
under round robin, priority, shortest-remaining-time and multi-level
feedback scheduling. Scenarios run locally or on a queuesim server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			level, err := logging.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			format, err := logging.ParseFormat(flagLogFormat)
			if err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(level, format, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "queuesim server URL (or QUEUESIM_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newSubmitCmd(),
		newListCmd(),
		newStatusCmd(),
		newTickCmd(),
		newBlockCmd(),
		newResumeCmd(),
		newFinishCmd(),
		newDeleteCmd(),
		newGanttCmd(),
		newRunsCmd(),
	)

	return root
}
