package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSchemaCmdWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schema", "config.schema.json")
	cmd := SchemaCmd()
	cmd.SetArgs([]string{"--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected schema file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, got %v", err)
	}
}

func TestCheckCmdPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menagerie.hjson")
	if err := os.WriteFile(path, []byte("{ world: { width: 20 } }"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var buf bytes.Buffer
	cmd := CheckCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		World struct {
			Width int `json:"width"`
		} `json:"world"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if decoded.World.Width != 20 {
		t.Fatalf("expected width 20, got %d", decoded.World.Width)
	}
}

func TestCheckCmdRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menagerie.hjson")
	if err := os.WriteFile(path, []byte("{ loop: { tickRate: 0 } }"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cmd := CheckCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected invalid tick rate to fail")
	}
}
