package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/cellwatch/internal/models"
	"gopkg.in/yaml.v3"
)

// jobsFile is the YAML layout read by `cw jobs add`.
type jobsFile struct {
	ScheduleID string       `yaml:"schedule_id"`
	Jobs       []models.Job `yaml:"jobs"`
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job management commands",
	}

	cmd.AddCommand(newJobsAddCmd())
	cmd.AddCommand(newJobsArchiveCmd())
	cmd.AddCommand(newJobsDemandCmd())
	return cmd
}

func newJobsDemandCmd() *cobra.Command {
	var (
		configPath, url string
		path            int
	)

	cmd := &cobra.Command{
		Use:   "demand <unique>",
		Short: "Show how many more pieces of a job path will be started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			var resp struct {
				Outstanding int `json:"outstanding"`
			}
			if err := client.get(fmt.Sprintf("/jobs/%s/demand?path=%d", args[0], path), &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s path %d: %d outstanding\n", args[0], path, resp.Outstanding)
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().IntVar(&path, "path", 1, "process-1 path")
	return cmd
}

func newJobsAddCmd() *cobra.Command {
	var (
		configPath string
		url        string
		file       string
		expected   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule of jobs from a YAML file",
		Long: `Reads jobs from a YAML file and adds them as a new schedule.
--expected must name the current latest schedule id (empty for the first
schedule); a mismatch is rejected so concurrent schedulers do not clobber
each other.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsAdd(cmd, configPath, url, file, expected)
		},
	}

	addClientFlags(cmd, &configPath, &url)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of jobs (required)")
	cmd.Flags().StringVar(&expected, "expected", "", "expected previous schedule id")
	cmd.MarkFlagRequired("file")
	return cmd
}

func loadJobsFile(path string) (*jobsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var jf jobsFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(jf.Jobs) == 0 {
		return nil, fmt.Errorf("%s: no jobs", path)
	}
	return &jf, nil
}

func runJobsAdd(cmd *cobra.Command, configPath, url, file, expected string) error {
	jf, err := loadJobsFile(file)
	if err != nil {
		return err
	}
	client, err := newAPIClient(configPath, url)
	if err != nil {
		return err
	}
	req := map[string]any{
		"schedule_id":                   jf.ScheduleID,
		"jobs":                          jf.Jobs,
		"expected_previous_schedule_id": expected,
	}
	var resp struct {
		ScheduleID string `json:"schedule_id"`
	}
	if err := client.post("/jobs", req, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d jobs as schedule %s\n", len(jf.Jobs), resp.ScheduleID)
	return nil
}

func newJobsArchiveCmd() *cobra.Command {
	var configPath, url string

	cmd := &cobra.Command{
		Use:   "archive <unique>",
		Short: "Archive a job so it receives no more work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(configPath, url)
			if err != nil {
				return err
			}
			if err := client.post("/jobs/"+args[0]+"/archive", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived job %s\n", args[0])
			return nil
		},
	}

	addClientFlags(cmd, &configPath, &url)
	return cmd
}
