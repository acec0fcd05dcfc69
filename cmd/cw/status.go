package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/status"
	"golang.org/x/term"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		url        string
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pallets, queues, and job progress",
		Long:  "Fetches the current status from a running cell API and prints it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, url, noColor)
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath, url string, noColor bool) error {
	client, err := newAPIClient(configPath, url)
	if err != nil {
		return err
	}
	var st status.CurrentStatus
	if err := client.get("/status", &st); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(out)
	renderStatus(out, &st, colorize)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// palette holds the colors used by renderStatus.
type palette struct {
	header, ok, warn, bad *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.Bold),
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.header, p.ok, p.warn, p.bad} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func renderStatus(w io.Writer, st *status.CurrentStatus, colorize bool) {
	p := newPalette(colorize)

	fmt.Fprintf(w, "Status at %s (schedule %s)\n", st.TimeUTC.Format("2006-01-02 15:04:05Z"), orDash(st.LatestScheduleID))
	if st.QueueSyncFault {
		p.bad.Fprintln(w, "QUEUE SYNC FAULT")
	}
	for _, f := range st.Faults {
		p.warn.Fprintf(w, "  ! %s\n", f)
	}

	fmt.Fprintln(w)
	p.header.Fprintln(w, "PALLETS")
	if len(st.Pallets) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, pal := range st.Pallets {
		route := "-"
		if pal.HasRoute {
			route = pal.Route.Comment
		}
		fmt.Fprintf(w, "  %-6s %-14s %-14s cycle %-3d %s\n",
			pal.Pallet, fmt.Sprintf("%s %d", pal.Location, pal.LocationNum), pal.Tracking, pal.Cycle, route)
	}

	fmt.Fprintln(w)
	p.header.Fprintln(w, "QUEUES")
	if len(st.Queues) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	names := make([]string, 0, len(st.Queues))
	for q := range st.Queues {
		names = append(names, q)
	}
	sort.Strings(names)
	for _, q := range names {
		ids := make([]string, len(st.Queues[q]))
		for i, id := range st.Queues[q] {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(w, "  %-14s %s\n", q, strings.Join(ids, " "))
	}

	fmt.Fprintln(w)
	p.header.Fprintln(w, "JOBS")
	if len(st.Jobs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, j := range st.Jobs {
		line := fmt.Sprintf("  %-16s %-12s remaining %-4d in-process %-4d decremented %d",
			j.Unique, j.PartName, j.Remaining, j.InProcess, j.Decremented)
		switch {
		case j.Held:
			p.warn.Fprintln(w, line+"  HELD")
		case j.Remaining == 0 && j.InProcess == 0:
			p.ok.Fprintln(w, line+"  done")
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
