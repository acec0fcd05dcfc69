package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/models"
)

func TestMaterialShowCmd(t *testing.T) {
	d := eventlog.MaterialDetails{
		Material:            models.Material{ID: 4, PartName: "part1", JobUnique: "uniq1", NumProcesses: 2, Serial: "S4"},
		Process:             1,
		Path:                1,
		SignaledInspections: []string{"CMM"},
	}
	srv, reqs := fakeAPI(t, http.StatusOK, d)
	out, err := runCmd(t, "material", "show", "4", "--url", srv.URL)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Material:    4", "Process:     1/2 (path 1)", "Serial:      S4", "Workorder:   -", "Signaled:    CMM"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if (*reqs)[0].path != "/api/v1/material/4" {
		t.Errorf("path = %q", (*reqs)[0].path)
	}
}

func TestMaterialAssignCmds(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusCreated, models.LogEntry{Counter: 12})
	out, err := runCmd(t, "material", "serial", "4", "S4", "--url", srv.URL)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	if !strings.Contains(out, "Material 4 serial set to S4 (log 12)") {
		t.Errorf("output = %q", out)
	}
	if _, err := runCmd(t, "material", "workorder", "4", "WO-1", "--url", srv.URL); err != nil {
		t.Fatalf("workorder: %v", err)
	}
	if r := (*reqs)[0]; r.path != "/api/v1/material/4/serial" || r.body["serial"] != "S4" {
		t.Errorf("serial request = %+v", r)
	}
	if r := (*reqs)[1]; r.path != "/api/v1/material/4/workorder" || r.body["workorder"] != "WO-1" {
		t.Errorf("workorder request = %+v", r)
	}

	if _, err := runCmd(t, "material", "serial", "0", "S4", "--url", srv.URL); err == nil {
		t.Error("expected error for material id 0")
	}
}

func TestMaterialInspectCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusCreated, models.LogEntry{})
	if _, err := runCmd(t, "material", "inspect", "4", "--type", "CMM", "--passed", "--url", srv.URL); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if _, err := runCmd(t, "material", "inspect", "4", "--type", "CMM", "--result", "--process", "2", "--url", srv.URL); err != nil {
		t.Fatalf("inspect --result: %v", err)
	}
	if r := (*reqs)[0]; r.path != "/api/v1/material/4/inspections" || r.body["type"] != "CMM" || r.body["passed"] != true {
		t.Errorf("signal request = %+v", r)
	}
	if r := (*reqs)[1]; r.path != "/api/v1/material/4/inspections/result" || r.body["process"] != float64(2) || r.body["passed"] != false {
		t.Errorf("result request = %+v", r)
	}

	if _, err := runCmd(t, "material", "inspect", "4", "--url", srv.URL); err == nil {
		t.Error("expected error without --type")
	}
}

func TestMaterialNoteCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusCreated, models.LogEntry{})
	if _, err := runCmd(t, "material", "note", "4", "chipped", "edge", "--url", srv.URL); err != nil {
		t.Fatalf("note: %v", err)
	}
	if r := (*reqs)[0]; r.path != "/api/v1/material/4/notes" || r.body["note"] != "chipped edge" {
		t.Errorf("request = %+v", r)
	}
}
