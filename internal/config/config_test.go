package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worldkeeper.yaml")
	raw := "db_path: /srv/world/craft.db\nqueue_capacity: 256\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DBPath != "/srv/world/craft.db" || c.QueueCapacity != 256 {
		t.Fatalf("file values not applied: %+v", c)
	}
	if !c.Enabled || c.EnqueueTimeoutMs != 5000 || c.ItemsPath != Defaults().ItemsPath {
		t.Fatalf("defaults lost: %+v", c)
	}

	ec := c.Engine()
	if ec.Path != c.DBPath || ec.QueueCapacity != 256 || ec.EnqueueTimeout != 5*time.Second || !ec.Enabled {
		t.Fatalf("engine config=%+v", ec)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
	if c != Defaults() {
		t.Fatalf("config=%+v want defaults", c)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("queue_capacity: [1,2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WK_DB_ENABLED", "false")
	t.Setenv("WK_QUEUE_CAPACITY", "32")
	t.Setenv("WK_COMMIT_INTERVAL_MS", "250")

	c := Defaults()
	if err := c.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if c.Enabled || c.QueueCapacity != 32 || c.CommitInterval() != 250*time.Millisecond {
		t.Fatalf("env not applied: %+v", c)
	}
	if c.DBPath != Defaults().DBPath {
		t.Fatalf("unset variable overwrote db_path: %q", c.DBPath)
	}

	t.Setenv("WK_QUEUE_CAPACITY", "lots")
	if err := c.ApplyEnv(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	c := Defaults()
	c.QueueCapacity = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected queue_capacity error")
	}
	c = Defaults()
	c.DBPath = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected db_path error")
	}
	c.Enabled = false
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled config without path should be valid: %v", err)
	}
}
