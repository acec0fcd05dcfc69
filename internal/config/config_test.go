package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
cell: west
route_prefix: cw-west

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: cell
  password: pw

queues:
  - name: castings
    role: raw
  - name: transfer
    role: in-process

poll:
  schedule: "@every 30s"

controller:
  type: sim
  pallets: 5
  machines: 6
  lock:
    backend: redis
    name: mazak
    wait: 90s
    ttl: 5m
    redis_url: redis://localhost:6379/0

api:
  port: 8088

alerts:
  slack_webhook_url: https://hooks.slack.com/services/T/B/X
  discord_webhook_id: "123"
  discord_webhook_token: abc
`

const minimalYAML = `
cell: east
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Cell != "west" {
		t.Errorf("Cell = %q, want %q", cfg.Cell, "west")
	}
	if cfg.RoutePrefix != "cw-west" {
		t.Errorf("RoutePrefix = %q, want %q", cfg.RoutePrefix, "cw-west")
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.Name != "cellwatch_west" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "cellwatch_west")
	}
	if len(cfg.Queues) != 2 {
		t.Fatalf("len(Queues) = %d, want 2", len(cfg.Queues))
	}
	if cfg.Queues[0].Name != "castings" || cfg.Queues[0].Role != "raw" {
		t.Errorf("Queues[0] = %+v", cfg.Queues[0])
	}
	if cfg.Poll.Schedule != "@every 30s" {
		t.Errorf("Poll.Schedule = %q", cfg.Poll.Schedule)
	}
	if cfg.Controller.Pallets != 5 || cfg.Controller.Machines != 6 {
		t.Errorf("Controller = %+v", cfg.Controller)
	}
	if cfg.Controller.Lock.Backend != "redis" || cfg.Controller.Lock.Name != "mazak" {
		t.Errorf("Lock = %+v", cfg.Controller.Lock)
	}
	if cfg.Controller.Lock.Wait != 90*time.Second {
		t.Errorf("Lock.Wait = %v, want 90s", cfg.Controller.Lock.Wait)
	}
	if cfg.Controller.Lock.TTL != 5*time.Minute {
		t.Errorf("Lock.TTL = %v, want 5m", cfg.Controller.Lock.TTL)
	}
	if cfg.API.Port != 8088 {
		t.Errorf("API.Port = %d, want 8088", cfg.API.Port)
	}
	if cfg.Alerts.DiscordWebhookID != "123" || cfg.Alerts.DiscordWebhookToken != "abc" {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
}

func TestParse_MinimalConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RoutePrefix != "cellwatch" {
		t.Errorf("RoutePrefix = %q, want %q", cfg.RoutePrefix, "cellwatch")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "cellwatch.db" {
		t.Errorf("Database.Path = %q, want cellwatch.db", cfg.Database.Path)
	}
	if cfg.Poll.Schedule != "@every 1m" {
		t.Errorf("Poll.Schedule = %q, want @every 1m", cfg.Poll.Schedule)
	}
	if cfg.Controller.Type != "sim" {
		t.Errorf("Controller.Type = %q, want sim", cfg.Controller.Type)
	}
	if cfg.Controller.Lock.Backend != "db" {
		t.Errorf("Lock.Backend = %q, want db", cfg.Controller.Lock.Backend)
	}
	if cfg.Controller.Lock.Wait != 2*time.Minute {
		t.Errorf("Lock.Wait = %v, want 2m", cfg.Controller.Lock.Wait)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want 5000", cfg.API.Port)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing cell", "queues: []\n", "cell is required"},
		{"bad driver", "cell: a\ndatabase:\n  driver: oracle\n", "database.driver"},
		{"queue without name", "cell: a\nqueues:\n  - role: raw\n", "queues[0].name is required"},
		{"duplicate queue", "cell: a\nqueues:\n  - name: q\n  - name: q\n", "duplicated"},
		{"redis without url", "cell: a\ncontroller:\n  lock:\n    backend: redis\n", "redis_url is required"},
		{"bad lock backend", "cell: a\ncontroller:\n  lock:\n    backend: etcd\n", "controller.lock.backend"},
		{"negative pallets", "cell: a\ncontroller:\n  pallets: -1\n", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("cell: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err)
	}
}

func TestQueueNames(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names := cfg.QueueNames()
	if !names["castings"] || !names["transfer"] {
		t.Errorf("QueueNames() = %v", names)
	}
	if names["missing"] {
		t.Error("QueueNames() should not contain undeclared queue")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cellwatch.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cell != "east" {
		t.Errorf("Cell = %q, want east", cfg.Cell)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err)
	}
}
