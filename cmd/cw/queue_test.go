package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/zulandar/cellwatch/internal/eventlog"
)

func TestQueueAddCastingCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusCreated, eventlog.QueuedMaterial{MaterialID: 4, Queue: "castings", Position: 2})
	out, err := runCmd(t, "queue", "add-casting", "castings", "--part", "part1", "--serial", "S1", "--url", srv.URL)
	if err != nil {
		t.Fatalf("add-casting: %v", err)
	}
	if !strings.Contains(out, "Material 4 queued in castings at position 2") {
		t.Errorf("output = %q", out)
	}
	r := (*reqs)[0]
	if r.path != "/api/v1/queues/castings/castings" || r.body["part"] != "part1" || r.body["position"] != float64(-1) {
		t.Errorf("request = %+v", r)
	}
}

func TestQueueAddMaterialCmd(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusCreated, eventlog.QueuedMaterial{MaterialID: 9, Queue: "transfer"})
	if _, err := runCmd(t, "queue", "add-material", "transfer", "--job", "uniq1", "--last-process", "1", "--url", srv.URL); err != nil {
		t.Fatalf("add-material: %v", err)
	}
	r := (*reqs)[0]
	if r.path != "/api/v1/queues/transfer/material" || r.body["job_unique"] != "uniq1" || r.body["last_process"] != float64(1) {
		t.Errorf("request = %+v", r)
	}
}

func TestQueueSetAndRemoveCmds(t *testing.T) {
	srv, reqs := fakeAPI(t, http.StatusNoContent, nil)
	if _, err := runCmd(t, "queue", "set", "7", "castings", "--position", "0", "--url", srv.URL); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := runCmd(t, "queue", "remove", "7", "--url", srv.URL); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(*reqs) != 2 {
		t.Fatalf("requests = %+v", *reqs)
	}
	if r := (*reqs)[0]; r.method != http.MethodPut || r.path != "/api/v1/material/7/queue" || r.body["queue"] != "castings" {
		t.Errorf("set request = %+v", r)
	}
	if r := (*reqs)[1]; r.method != http.MethodDelete || r.path != "/api/v1/material/7/queue" {
		t.Errorf("remove request = %+v", r)
	}

	if _, err := runCmd(t, "queue", "remove", "seven", "--url", srv.URL); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
