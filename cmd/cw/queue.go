package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/eventlog"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Material queue commands",
	}

	cmd.AddCommand(newQueueAddCastingCmd())
	cmd.AddCommand(newQueueAddMaterialCmd())
	cmd.AddCommand(newQueueSetCmd())
	cmd.AddCommand(newQueueRemoveCmd())
	return cmd
}

func newQueueAddCastingCmd() *cobra.Command {
	var (
		configPath, url, part, serial string
		position                      int
	)

	cmd := &cobra.Command{
		Use:   "add-casting <queue>",
		Short: "Add a casting not yet assigned to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			body := map[string]any{"part": part, "position": position, "serial": serial}
			var qm eventlog.QueuedMaterial
			if err := client.post("/queues/"+args[0]+"/castings", body, &qm); err != nil {
				return err
			}
			printQueued(cmd, &qm)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().StringVar(&part, "part", "", "part name (required)")
	cmd.Flags().StringVar(&serial, "serial", "", "serial to record")
	cmd.Flags().IntVar(&position, "position", -1, "queue position (-1 appends)")
	cmd.MarkFlagRequired("part")
	return cmd
}

func newQueueAddMaterialCmd() *cobra.Command {
	var (
		configPath, url, job, serial string
		lastProcess, position        int
	)

	cmd := &cobra.Command{
		Use:   "add-material <queue>",
		Short: "Add material for a job that finished a process outside the cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			body := map[string]any{"job_unique": job, "last_process": lastProcess, "position": position, "serial": serial}
			var qm eventlog.QueuedMaterial
			if err := client.post("/queues/"+args[0]+"/material", body, &qm); err != nil {
				return err
			}
			printQueued(cmd, &qm)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().StringVar(&job, "job", "", "job unique (required)")
	cmd.Flags().IntVar(&lastProcess, "last-process", 0, "last completed process (0 for raw material)")
	cmd.Flags().StringVar(&serial, "serial", "", "serial to record")
	cmd.Flags().IntVar(&position, "position", -1, "queue position (-1 appends)")
	cmd.MarkFlagRequired("job")
	return cmd
}

func newQueueSetCmd() *cobra.Command {
	var (
		configPath, url string
		position        int
	)

	cmd := &cobra.Command{
		Use:   "set <material-id> <queue>",
		Short: "Move material to a position in a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid material id %q", args[0])
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			body := map[string]any{"queue": args[1], "position": position}
			if err := client.do(http.MethodPut, fmt.Sprintf("/material/%d/queue", id), body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Material %d queued in %s\n", id, args[1])
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().IntVar(&position, "position", -1, "queue position (-1 appends)")
	return cmd
}

func newQueueRemoveCmd() *cobra.Command {
	var configPath, url string

	cmd := &cobra.Command{
		Use:   "remove <material-id>",
		Short: "Remove material from every queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid material id %q", args[0])
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			if err := client.do(http.MethodDelete, fmt.Sprintf("/material/%d/queue", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Material %d removed from queues\n", id)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	return cmd
}

func printQueued(cmd *cobra.Command, qm *eventlog.QueuedMaterial) {
	fmt.Fprintf(cmd.OutOrStdout(), "Material %d queued in %s at position %d\n", qm.MaterialID, qm.Queue, qm.Position)
}
