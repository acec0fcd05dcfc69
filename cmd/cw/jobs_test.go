package main

import (
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const jobsYAML = `schedule_id: week12
jobs:
  - unique: uniq1
    part: part1
    priority: 2
    processes:
      - paths:
          - planned_quantity: 10
            pallets: ["1", "2"]
            load_stations: [1]
            input_queue: castings
            stops:
              - station_group: MC
                stations: [1, 2]
                program: prog1
                expected_cycle_time: 30m
            expected_load_time: 5m
`

func TestLoadJobsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := writeTestFile(path, jobsYAML); err != nil {
		t.Fatal(err)
	}
	jf, err := loadJobsFile(path)
	if err != nil {
		t.Fatalf("loadJobsFile: %v", err)
	}
	if jf.ScheduleID != "week12" || len(jf.Jobs) != 1 {
		t.Fatalf("jobs file = %+v", jf)
	}
	j := jf.Jobs[0]
	if j.Unique != "uniq1" || j.Priority != 2 {
		t.Errorf("job = %+v", j)
	}
	path1 := j.Processes[0].Paths[0]
	if path1.InputQueue != "castings" || path1.ExpectedLoadTime != 5*time.Minute {
		t.Errorf("path = %+v", path1)
	}
	if path1.Stops[0].ExpectedCycleTime != 30*time.Minute {
		t.Errorf("cycle time = %v", path1.Stops[0].ExpectedCycleTime)
	}
}

func TestLoadJobsFile_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	writeTestFile(empty, "schedule_id: x\n")
	if _, err := loadJobsFile(empty); err == nil || !strings.Contains(err.Error(), "no jobs") {
		t.Errorf("empty file err = %v", err)
	}
	bad := filepath.Join(dir, "bad.yaml")
	writeTestFile(bad, "jobs: [unclosed\n")
	if _, err := loadJobsFile(bad); err == nil {
		t.Error("expected parse error")
	}
	if _, err := loadJobsFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestJobsAddCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	writeTestFile(path, jobsYAML)
	srv, reqs := fakeAPI(t, http.StatusCreated, map[string]string{"schedule_id": "week12"})

	out, err := runCmd(t, "jobs", "add", "--url", srv.URL, "-f", path, "--expected", "week11")
	if err != nil {
		t.Fatalf("jobs add: %v", err)
	}
	if !strings.Contains(out, "Added 1 jobs as schedule week12") {
		t.Errorf("output = %q", out)
	}
	if len(*reqs) != 1 {
		t.Fatalf("requests = %+v", *reqs)
	}
	r := (*reqs)[0]
	if r.method != http.MethodPost || r.path != "/api/v1/jobs" {
		t.Errorf("request = %s %s", r.method, r.path)
	}
	if r.body["expected_previous_schedule_id"] != "week11" || r.body["schedule_id"] != "week12" {
		t.Errorf("body = %+v", r.body)
	}
}

func TestJobsAddCmd_RequiresFile(t *testing.T) {
	if _, err := runCmd(t, "jobs", "add", "--url", "http://localhost:1"); err == nil {
		t.Fatal("expected error without --file")
	}
}

func TestJobsArchiveCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusNoContent, nil)
	out, err := runCmd(t, "jobs", "archive", "uniq1", "--url", srv.URL)
	if err != nil {
		t.Fatalf("jobs archive: %v", err)
	}
	if !strings.Contains(out, "Archived job uniq1") {
		t.Errorf("output = %q", out)
	}
	if (*reqs)[0].path != "/api/v1/jobs/uniq1/archive" {
		t.Errorf("path = %s", (*reqs)[0].path)
	}
}

func TestJobsDemandCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusOK, map[string]any{"job_unique": "uniq1", "path": 2, "outstanding": 3})
	out, err := runCmd(t, "jobs", "demand", "uniq1", "--path", "2", "--url", srv.URL)
	if err != nil {
		t.Fatalf("demand: %v", err)
	}
	if !strings.Contains(out, "Job uniq1 path 2: 3 outstanding") {
		t.Errorf("output = %q", out)
	}
	if r := (*reqs)[0]; r.path != "/api/v1/jobs/uniq1/demand" || r.query != "path=2" {
		t.Errorf("request = %+v", r)
	}
}
