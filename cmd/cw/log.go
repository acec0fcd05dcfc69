package main

import (
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/models"
)

func newLogCmd() *cobra.Command {
	var (
		configPath, apiURL string
		serial, workorder  string
		start, end         string
		material, after    int64
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the cell event log",
		Long: `Show the cell event log. With no filter, every entry after --after is
shown. --material, --serial, --workorder and --start/--end select one
query; set at most one of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := logQueryPath(material, serial, workorder, start, end, after)
			if err != nil {
				return err
			}
			client, err := newAPIClient(configPath, apiURL)
			if err != nil {
				return err
			}
			var entries []models.LogEntry
			if err := client.get(path, &entries); err != nil {
				return err
			}
			printLog(cmd, entries)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &apiURL)
	cmd.Flags().Int64Var(&material, "material", 0, "entries for a material id")
	cmd.Flags().StringVar(&serial, "serial", "", "entries for material with this serial")
	cmd.Flags().StringVar(&workorder, "workorder", "", "entries for material in this workorder")
	cmd.Flags().StringVar(&start, "start", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "range end, exclusive (RFC3339)")
	cmd.Flags().Int64Var(&after, "after", 0, "entries with a counter above this")
	return cmd
}

func logQueryPath(material int64, serial, workorder, start, end string, after int64) (string, error) {
	set := 0
	for _, b := range []bool{material > 0, serial != "", workorder != "", start != "" || end != ""} {
		if b {
			set++
		}
	}
	if set > 1 {
		return "", fmt.Errorf("set only one of --material, --serial, --workorder, --start/--end")
	}
	switch {
	case material > 0:
		return fmt.Sprintf("/material/%d/log", material), nil
	case serial != "":
		return "/log/serial/" + url.PathEscape(serial), nil
	case workorder != "":
		return "/log/workorder/" + url.PathEscape(workorder), nil
	case start != "" || end != "":
		if start == "" || end == "" {
			return "", fmt.Errorf("--start and --end must be set together")
		}
		for _, ts := range []string{start, end} {
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				return "", fmt.Errorf("invalid time %q: %w", ts, err)
			}
		}
		q := url.Values{"start": {start}, "end": {end}}
		return "/log?" + q.Encode(), nil
	default:
		return fmt.Sprintf("/log?after=%d", after), nil
	}
}

func printLog(cmd *cobra.Command, entries []models.LogEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No log entries.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COUNTER\tTIME\tTYPE\tPALLET\tLOCATION\tRESULT\tMATERIAL")
	for _, e := range entries {
		ids := make([]string, 0, len(e.Material))
		for _, m := range e.Material {
			ids = append(ids, fmt.Sprintf("%d", m.MaterialID))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s %d\t%s\t%s\n",
			e.Counter, e.TimeUTC.UTC().Format(time.RFC3339), e.Type, orDash(e.Pallet),
			e.LocName, e.LocNum, orDash(e.Result), orDash(strings.Join(ids, ",")))
	}
	w.Flush()
}
