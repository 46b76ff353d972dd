package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/pkg/model"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Check scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				sc, err := config.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %s\n", path)
					var apiErr *model.APIError
					if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
						for _, d := range apiErr.Details {
							fmt.Fprintf(out, "      %s: %s\n", d.Field, d.Message)
						}
					} else {
						fmt.Fprintf(out, "      %v\n", err)
					}
					continue
				}
				fmt.Fprintf(out, "ok    %s (%s, %d clients)\n", path, sc.Policy, len(sc.Clients))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios invalid", failed, len(args))
			}
			return nil
		},
	}
}
