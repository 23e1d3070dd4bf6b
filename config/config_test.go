package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Geometry.Seed != 42 {
		t.Errorf("expected Seed=42, got %d", cfg.Geometry.Seed)
	}
	if cfg.Geometry.AttemptLimit != 10 {
		t.Errorf("expected AttemptLimit=10, got %d", cfg.Geometry.AttemptLimit)
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Batch.Workers)
	}
	if cfg.PropertyDB.Driver != "none" {
		t.Errorf("expected property driver none, got %q", cfg.PropertyDB.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ilfeat.yaml")

	content := `
pipeline:
  generators: [topological, padel]
  required: [topological]
  combine: mean
geometry:
  attempt_limit: 3
cache:
  memory_ttl: 10m
external:
  - name: padel
    command: ["padel.sh", "{input}", "{output}"]
    names: [nAcid, nBase]
    timeout: 30s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Geometry.AttemptLimit != 3 {
		t.Errorf("expected AttemptLimit=3, got %d", cfg.Geometry.AttemptLimit)
	}
	if cfg.Geometry.Seed != 42 {
		t.Errorf("unset fields keep defaults, got Seed=%d", cfg.Geometry.Seed)
	}
	if cfg.Pipeline.Combine != "mean" {
		t.Errorf("expected combine=mean, got %q", cfg.Pipeline.Combine)
	}
	if cfg.Cache.MemoryTTL != 10*time.Minute {
		t.Errorf("expected MemoryTTL=10m, got %v", cfg.Cache.MemoryTTL)
	}
	if len(cfg.External) != 1 || cfg.External[0].Timeout != 30*time.Second {
		t.Errorf("external tool not parsed: %+v", cfg.External)
	}
	if cfg.External[0].Retries != 1 {
		t.Errorf("expected one retry, got %d", cfg.External[0].Retries)
	}
	if !cfg.IsRequired("topological") || cfg.IsRequired("padel") {
		t.Error("required set not honoured")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":        "pipeline: [",
		"no generators":   "pipeline:\n  generators: []\n",
		"stray required":  "pipeline:\n  required: [padel]\n",
		"zero workers":    "batch:\n  workers: 0\n",
		"unknown driver":  "property_db:\n  driver: mongo\n",
		"file needs path": "property_db:\n  driver: file\n",
		"tool no command": "external:\n  - name: x\n    names: [a]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ilfeat.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".ilfeat"), 0755); err != nil {
		t.Fatal(err)
	}
	content := `
batch:
  workers: 8
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".ilfeat", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.Batch.Workers)
	}

	cfg, err = LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected defaults, got Workers=%d", cfg.Batch.Workers)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ilfeat.yaml")
	cfg := DefaultConfig()
	cfg.Pipeline.AllowedElements = []string{"C", "H", "N"}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(loaded.Pipeline.AllowedElements, ",") != "C,H,N" {
		t.Errorf("allowed elements lost: %v", loaded.Pipeline.AllowedElements)
	}
}

func TestCachePaths(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()

	dir := cfg.CacheDir(root)
	if dir != filepath.Join(root, ".ilfeat") {
		t.Errorf("unexpected cache dir %s", dir)
	}
	if err := EnsureCacheDir(dir); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("cache dir not created: %v", err)
	}
	if CacheDBPath(dir) != filepath.Join(dir, "descriptors.db") {
		t.Errorf("unexpected db path %s", CacheDBPath(dir))
	}

	cfg.Cache.Dir = "/var/cache/ilfeat"
	if cfg.CacheDir(root) != "/var/cache/ilfeat" {
		t.Error("absolute cache dir should be used as is")
	}
}
