package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/models"
)

func newMaterialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "material",
		Short: "Material tracking commands",
	}

	cmd.AddCommand(newMaterialShowCmd())
	cmd.AddCommand(newMaterialAssignCmd("serial", "Assign a serial to material"))
	cmd.AddCommand(newMaterialAssignCmd("workorder", "Assign material to a workorder"))
	cmd.AddCommand(newMaterialInspectCmd())
	cmd.AddCommand(newMaterialNoteCmd())
	return cmd
}

func parseMaterialID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid material id %q", s)
	}
	return id, nil
}

func newMaterialShowCmd() *cobra.Command {
	var configPath, url string

	cmd := &cobra.Command{
		Use:   "show <material-id>",
		Short: "Show material details and inspections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMaterialID(args[0])
			if err != nil {
				return err
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			var d eventlog.MaterialDetails
			if err := client.get(fmt.Sprintf("/material/%d", id), &d); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Material:    %d\n", d.ID)
			fmt.Fprintf(out, "Part:        %s\n", d.PartName)
			fmt.Fprintf(out, "Job:         %s\n", orDash(d.JobUnique))
			fmt.Fprintf(out, "Process:     %d/%d (path %d)\n", d.Process, d.NumProcesses, d.Path)
			fmt.Fprintf(out, "Serial:      %s\n", orDash(d.Serial))
			fmt.Fprintf(out, "Workorder:   %s\n", orDash(d.Workorder))
			fmt.Fprintf(out, "Signaled:    %s\n", orDash(strings.Join(d.SignaledInspections, ", ")))
			fmt.Fprintf(out, "Completed:   %s\n", orDash(strings.Join(d.CompletedInspections, ", ")))
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	return cmd
}

func newMaterialAssignCmd(field, short string) *cobra.Command {
	var configPath, url string

	cmd := &cobra.Command{
		Use:   field + " <material-id> <" + field + ">",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMaterialID(args[0])
			if err != nil {
				return err
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			var e models.LogEntry
			if err := client.post(fmt.Sprintf("/material/%d/%s", id, field), map[string]any{field: args[1]}, &e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Material %d %s set to %s (log %d)\n", id, field, args[1], e.Counter)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	return cmd
}

func newMaterialInspectCmd() *cobra.Command {
	var (
		configPath, url, inspType string
		process                   int
		result, passed            bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <material-id>",
		Short: "Signal an inspection, or record its result with --result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMaterialID(args[0])
			if err != nil {
				return err
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/material/%d/inspections", id)
			verb := "signaled"
			if result {
				path += "/result"
				verb = "recorded"
			}
			body := map[string]any{"type": inspType, "process": process, "passed": passed}
			if err := client.post(path, body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inspection %s %s for material %d (passed=%t)\n", inspType, verb, id, passed)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().StringVar(&inspType, "type", "", "inspection type (required)")
	cmd.Flags().IntVar(&process, "process", 0, "process inspected (0 for the latest)")
	cmd.Flags().BoolVar(&result, "result", false, "record an inspection result instead of a signal")
	cmd.Flags().BoolVar(&passed, "passed", false, "selected for inspection, or inspection passed with --result")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newMaterialNoteCmd() *cobra.Command {
	var configPath, url string

	cmd := &cobra.Command{
		Use:   "note <material-id> <note>",
		Short: "Log an operator note against material",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMaterialID(args[0])
			if err != nil {
				return err
			}
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			note := strings.Join(args[1:], " ")
			if err := client.post(fmt.Sprintf("/material/%d/notes", id), map[string]any{"note": note}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note added to material %d\n", id)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	return cmd
}
