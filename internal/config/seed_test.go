package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedEmptyPath(t *testing.T) {
	seed, err := LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed(\"\") error: %v", err)
	}
	if len(seed.ShuttlesConfig) != 0 || len(seed.StockToShuttle) != 0 {
		t.Errorf("expected empty seed, got %+v", seed)
	}
}

func TestLoadSeedParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	content := `
shuttles_config:
  s1:
    host: 127.0.0.1
    command_port: 2000
  s2:
    host: 127.0.0.2
    command_port: 2000
stock_to_shuttle:
  stockA:
    - s1
    - s2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed error: %v", err)
	}
	if len(seed.ShuttlesConfig) != 2 {
		t.Fatalf("expected 2 shuttles, got %d", len(seed.ShuttlesConfig))
	}
	if seed.ShuttlesConfig["s1"].Host != "127.0.0.1" || seed.ShuttlesConfig["s1"].CommandPort != 2000 {
		t.Errorf("unexpected s1 seed: %+v", seed.ShuttlesConfig["s1"])
	}
	if len(seed.StockToShuttle["stockA"]) != 2 {
		t.Errorf("expected 2 shuttles for stockA, got %v", seed.StockToShuttle["stockA"])
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed("/nonexistent/path/seed.yaml")
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
}
