package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/models"
)

func newDecrementCmd() *cobra.Command {
	var (
		configPath string
		apiURL     string
		afterID    int64
		afterTime  string
		jobUniques []string
	)

	cmd := &cobra.Command{
		Use:   "decrement",
		Short: "Stop starting new material for jobs",
		Long: `Removes each job's not-yet-started quantity so the cell stops loading
new material for it, then prints every decrement after --after-id or
--after-time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("after-id") && afterTime != "" {
				return fmt.Errorf("set --after-id or --after-time, not both")
			}
			q := url.Values{}
			if cmd.Flags().Changed("after-id") {
				q.Set("after_id", fmt.Sprintf("%d", afterID))
			}
			if afterTime != "" {
				if _, err := time.Parse(time.RFC3339, afterTime); err != nil {
					return fmt.Errorf("invalid --after-time %q: %w", afterTime, err)
				}
				q.Set("after_time", afterTime)
			}

			client, err := newAPIClient(configPath, apiURL)
			if err != nil {
				return err
			}
			path := "/decrements"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var decs []models.Decrement
			if err := client.post(path, decrement.Options{JobUniques: jobUniques}, &decs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(decs) == 0 {
				fmt.Fprintln(out, "No decrements.")
				return nil
			}
			for _, d := range decs {
				fmt.Fprintf(out, "#%d %s path %d: -%d (%s)\n", d.ID, d.JobUnique, d.Proc1Path, d.Quantity, d.TimeUTC.Format(time.RFC3339))
			}
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &apiURL)
	cmd.Flags().Int64Var(&afterID, "after-id", 0, "print decrements after this id")
	cmd.Flags().StringVar(&afterTime, "after-time", "", "print decrements after this RFC3339 time")
	cmd.Flags().StringSliceVar(&jobUniques, "job", nil, "only decrement these jobs (repeatable)")
	return cmd
}
