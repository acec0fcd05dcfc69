package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/models"
	"github.com/zulandar/cellwatch/internal/status"
)

// captured is one request seen by the fake API.
type captured struct {
	method, path, query string
	body                map[string]any
}

func fakeAPI(t *testing.T, code int, resp any) (*httptest.Server, *[]captured) {
	t.Helper()
	var reqs []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			json.Unmarshal(data, &c.body)
		}
		reqs = append(reqs, c)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if resp != nil {
			json.NewEncoder(w).Encode(resp)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func sampleStatus() *status.CurrentStatus {
	return &status.CurrentStatus{
		TimeUTC:          time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		LatestScheduleID: "sched1",
		Pallets: []status.PalletStatus{{
			Pallet: "1", HasRoute: true, Route: controller.Route{Comment: "cw 1:uniq1-1-1"},
			Cycle: 3, Location: controller.LocLoadStation, LocationNum: 1, Tracking: controller.TrackBeforeLoad,
		}},
		Queues: map[string][]int64{"castings": {4, 5}},
		Jobs: []status.JobStatus{
			{Job: models.Job{Unique: "uniq1", PartName: "part1"}, Remaining: 7, InProcess: 1},
			{Job: models.Job{Unique: "uniq2", PartName: "part2"}, Held: true},
		},
		Faults:         []string{"queue castings holds [4], log has [4 5]"},
		QueueSyncFault: true,
	}
}

func TestRenderStatus(t *testing.T) {
	var b strings.Builder
	renderStatus(&b, sampleStatus(), false)
	out := b.String()
	for _, want := range []string{
		"schedule sched1",
		"QUEUE SYNC FAULT",
		"! queue castings holds [4], log has [4 5]",
		"cw 1:uniq1-1-1",
		"castings       4 5",
		"uniq1",
		"HELD",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("uncolored output contains escape codes:\n%s", out)
	}
}

func TestRenderStatus_Color(t *testing.T) {
	var b strings.Builder
	renderStatus(&b, sampleStatus(), true)
	if !strings.Contains(b.String(), "\x1b[") {
		t.Errorf("colored output has no escape codes:\n%s", b.String())
	}
}

func TestRenderStatus_Empty(t *testing.T) {
	var b strings.Builder
	renderStatus(&b, &status.CurrentStatus{}, false)
	if got := strings.Count(b.String(), "(none)"); got != 3 {
		t.Errorf("(none) count = %d, want 3:\n%s", got, b.String())
	}
}

func TestStatusCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusOK, sampleStatus())
	out, err := runCmd(t, "status", "--url", srv.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "sched1") {
		t.Errorf("output missing schedule: %s", out)
	}
	if len(*reqs) != 1 || (*reqs)[0].path != "/api/v1/status" {
		t.Errorf("requests = %+v", *reqs)
	}
}

func TestStatusCmd_APIError(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusServiceUnavailable, map[string]string{"error": "cell: controller busy"})
	_, err := runCmd(t, "status", "--url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "503 cell: controller busy") {
		t.Errorf("err = %v, want 503 busy", err)
	}
}

func TestNewAPIClient_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cellwatch.yaml")
	if err := writeTestFile(cfgPath, "cell: west\napi:\n  port: 5123\n"); err != nil {
		t.Fatal(err)
	}
	c, err := newAPIClient(cfgPath, "")
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	if c.base != "http://localhost:5123/api/v1" {
		t.Errorf("base = %q", c.base)
	}

	c, err = newAPIClient("/nonexistent.yaml", "http://cell:9000/")
	if err != nil {
		t.Fatalf("newAPIClient with url: %v", err)
	}
	if c.base != "http://cell:9000/api/v1" {
		t.Errorf("base = %q", c.base)
	}
}
