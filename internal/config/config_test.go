package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "roots:\n  - /data/photos/\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Roots[0]; got != "/data/photos" {
		t.Errorf("root not cleaned: %q", got)
	}
	if cfg.Finder.SomeBytesSize != 64 {
		t.Errorf("SomeBytesSize = %d, want 64", cfg.Finder.SomeBytesSize)
	}
	if cfg.Finder.PartialHashSize != 10*1024 {
		t.Errorf("PartialHashSize = %d, want 10240", cfg.Finder.PartialHashSize)
	}
	if cfg.Finder.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Finder.Workers, runtime.NumCPU())
	}
	if cfg.MaxDepth() != -1 {
		t.Errorf("MaxDepth = %d, want -1", cfg.MaxDepth())
	}
	if !cfg.IsDryRun() {
		t.Error("dry run must default to true")
	}
	if !cfg.ShouldVerify() {
		t.Error("verify must default to true")
	}
	if cfg.Cleanup.Mode != "delete" {
		t.Errorf("Mode = %q, want delete", cfg.Cleanup.Mode)
	}
	if cfg.PoolPath != "duplicates.json" {
		t.Errorf("PoolPath = %q", cfg.PoolPath)
	}
	if cfg.Rdfind.Checksum != "sha256" {
		t.Errorf("Rdfind.Checksum = %q", cfg.Rdfind.Checksum)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
roots: [/srv/a, /srv/b]
walker:
  top_down: true
  max_depth: 0
finder:
  some_bytes_size: 128
  fast_io: true
  workers: 2
cleanup:
  dry_run: false
  mode: move
  trash_dir: /srv/trash
  rules:
    - name: by_directory
      args: [/srv/b/incoming]
    - name: keep_shortest_path
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxDepth() != 0 {
		t.Errorf("MaxDepth = %d, want 0", cfg.MaxDepth())
	}
	if cfg.IsDryRun() {
		t.Error("dry_run: false must be honored")
	}
	if !cfg.Finder.FastIO || cfg.Finder.Workers != 2 || cfg.Finder.SomeBytesSize != 128 {
		t.Errorf("finder section not decoded: %+v", cfg.Finder)
	}
	if len(cfg.Cleanup.Rules) != 2 || cfg.Cleanup.Rules[0].Args[0] != "/srv/b/incoming" {
		t.Errorf("rules not decoded: %+v", cfg.Cleanup.Rules)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "no roots", body: "excludes: [.git]\n", wantErr: errNoRoots},
		{name: "relative root", body: "roots: [data]\n", wantErr: errInvalidPath},
		{name: "move without trash", body: "roots: [/a]\ncleanup:\n  mode: move\n", wantErr: errNoTrashDir},
		{name: "unknown rule", body: "roots: [/a]\ncleanup:\n  rules:\n    - name: by_magic\n", wantErr: errUnknownRule},
		{name: "rule without args", body: "roots: [/a]\ncleanup:\n  rules:\n    - name: by_parent\n", wantErr: errMissingArgs},
		{name: "bad mode", body: "roots: [/a]\ncleanup:\n  mode: shred\n", wantMsg: "oneof"},
		{name: "bad checksum", body: "roots: [/a]\nrdfind:\n  checksum: crc32\n", wantMsg: "oneof"},
		{name: "unknown field", body: "roots: [/a]\nrootz: [/b]\n", wantMsg: "decode yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default("/tmp/x")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if cfg.Logging.RotationDays != 30 || cfg.Logging.Level != "info" {
		t.Errorf("logging defaults not applied: %+v", cfg.Logging)
	}
}

func TestValidateAfterOverride(t *testing.T) {
	cfg, err := Default("/tmp/x")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Roots = []string{"/srv/media/../media"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Roots[0] != "/srv/media" {
		t.Errorf("root not cleaned: %s", cfg.Roots[0])
	}

	cfg.Roots = []string{"relative/path"}
	if err := cfg.Validate(); !errors.Is(err, errInvalidPath) {
		t.Errorf("expected errInvalidPath, got %v", err)
	}
}
