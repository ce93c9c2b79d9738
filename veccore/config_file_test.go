package veccore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veccore.yaml")
	content := `storage_path: ./mydata
metrics_enabled: false
max_collections: 5
storage_backend: badger
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cfg := &Config{MaxCollections: 100, MetricsEnabled: true}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			t.Fatalf("applying option: %v", err)
		}
	}
	if cfg.StoragePath != "./mydata" {
		t.Errorf("expected storage path ./mydata, got %s", cfg.StoragePath)
	}
	if cfg.MetricsEnabled {
		t.Error("expected metrics disabled")
	}
	if cfg.MaxCollections != 5 {
		t.Errorf("expected max collections 5, got %d", cfg.MaxCollections)
	}
	if cfg.StorageBackend != BackendBadger {
		t.Errorf("expected badger backend, got %v", cfg.StorageBackend)
	}
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veccore.yaml")
	if err := os.WriteFile(path, []byte("storage_backend: rocksdb\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/veccore.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
