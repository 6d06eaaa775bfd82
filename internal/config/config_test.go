package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("askmesh", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Retrieval.SimilarityThreshold != 0.60 {
		t.Fatalf("Retrieval.SimilarityThreshold = %f", cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Fatalf("Retrieval.TopK = %d", cfg.Retrieval.TopK)
	}
	if cfg.Executor.RowLimit != 20 {
		t.Fatalf("Executor.RowLimit = %d", cfg.Executor.RowLimit)
	}
	if cfg.Cache.Backend != CacheBackendFile {
		t.Fatalf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Cache.Dir != "cache_data" {
		t.Fatalf("Cache.Dir = %q", cfg.Cache.Dir)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.Database.Driver != "pgx" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("ObjectStore.Enabled should default to false")
	}
	if cfg.Sessions.Max != 1000 || cfg.Sessions.IdleTimeout != 30*time.Minute {
		t.Fatalf("Sessions = %+v", cfg.Sessions)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("askmesh-api", mapLookup(map[string]string{"ASKMESH_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadTestProfileUsesMemoryCache(t *testing.T) {
	cfg, err := Load("askmesh", mapLookup(map[string]string{"ASKMESH_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Fatalf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Retrieval.Enabled {
		t.Fatal("Retrieval.Enabled should default to false in test")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("askmesh", mapLookup(map[string]string{
		"ASKMESH_HTTP_ADDR":                      ":9999",
		"ASKMESH_HTTP_READ_TIMEOUT":              "2s",
		"ASKMESH_LOG_LEVEL":                      "error",
		"ASKMESH_DB_DRIVER":                      "duckdb",
		"ASKMESH_DB_DSN":                         "/tmp/warehouse.duckdb",
		"ASKMESH_DB_MAX_OPEN_CONNS":              "9",
		"ASKMESH_DB_STATEMENT_TIMEOUT":           "12s",
		"ASKMESH_SCHEMA_FILE":                    "schema.sql",
		"ASKMESH_RETRIEVAL_SIMILARITY_THRESHOLD": "0.42",
		"ASKMESH_RETRIEVAL_TOP_K":                "3",
		"ASKMESH_EMBEDDING_PROVIDER":             "ollama",
		"ASKMESH_EMBEDDING_MODEL":                "nomic-embed-text",
		"ASKMESH_AI_PROVIDER":                    "ollama",
		"ASKMESH_AI_BASE_URL":                    "http://localhost:11434",
		"ASKMESH_AI_MODEL":                       "llama3.2",
		"ASKMESH_AI_TEMPERATURE":                 "0.3",
		"ASKMESH_AI_TIMEOUT":                     "21s",
		"ASKMESH_CACHE_BACKEND":                  "objectstore",
		"ASKMESH_CACHE_OBJECT_KEY":               "askmesh/cache.json",
		"ASKMESH_EXECUTOR_ROW_LIMIT":             "50",
		"ASKMESH_SESSION_MAX":                    "8",
		"ASKMESH_SESSION_IDLE_TIMEOUT":           "0s",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.Driver != "duckdb" || cfg.Database.DSN != "/tmp/warehouse.duckdb" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.Database.MaxOpenConns != 9 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.StatementTimeout != 12*time.Second {
		t.Fatalf("Database.StatementTimeout = %s", cfg.Database.StatementTimeout)
	}
	if cfg.Schema.File != "schema.sql" {
		t.Fatalf("Schema.File = %q", cfg.Schema.File)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.42 || cfg.Retrieval.TopK != 3 {
		t.Fatalf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Embedding.Provider != ProviderOllama || cfg.Embedding.Model != "nomic-embed-text" {
		t.Fatalf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.AI.Provider != ProviderOllama || cfg.AI.Model != "llama3.2" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Cache.Backend != CacheBackendObjectStore || cfg.Cache.ObjectKey != "askmesh/cache.json" {
		t.Fatalf("Cache = %+v", cfg.Cache)
	}
	if !cfg.ObjectStore.Enabled {
		t.Fatal("objectstore cache backend should enable the object store")
	}
	if cfg.Executor.RowLimit != 50 {
		t.Fatalf("Executor.RowLimit = %d", cfg.Executor.RowLimit)
	}
	if cfg.Sessions.Max != 8 || cfg.Sessions.IdleTimeout != 0 {
		t.Fatalf("Sessions = %+v", cfg.Sessions)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"ASKMESH_PROFILE": "oops"},
		{"ASKMESH_HTTP_READ_TIMEOUT": "NaN"},
		{"ASKMESH_DB_MAX_OPEN_CONNS": "oops"},
		{"ASKMESH_RETRIEVAL_SIMILARITY_THRESHOLD": "high"},
		{"ASKMESH_RETRIEVAL_TOP_K": "0"},
		{"ASKMESH_EXECUTOR_ROW_LIMIT": "-1"},
		{"ASKMESH_SESSION_MAX": "0"},
		{"ASKMESH_SESSION_IDLE_TIMEOUT": "-1m"},
		{"ASKMESH_CACHE_BACKEND": "redis"},
		{"ASKMESH_AI_PROVIDER": "gemini"},
		{"ASKMESH_AI_TEMPERATURE": "bad"},
		{"ASKMESH_AUTH_REQUIRED": "not-bool"},
		{"ASKMESH_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("askmesh", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestFileLookupOverlaysYAMLUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askmesh.yaml")
	content := []byte(`
ai:
  model: from-file
  api_key: file-key
retrieval:
  top_k: 7
executor:
  row_limit: 15
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	lookup, err := FileLookup(path, mapLookup(map[string]string{"ASKMESH_AI_MODEL": "from-env"}))
	if err != nil {
		t.Fatalf("FileLookup() error = %v", err)
	}
	cfg, err := Load("askmesh", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Model != "from-env" {
		t.Fatalf("AI.Model = %q, want env value", cfg.AI.Model)
	}
	if cfg.AI.APIKey != "file-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Fatalf("Retrieval.TopK = %d", cfg.Retrieval.TopK)
	}
	if cfg.Executor.RowLimit != 15 {
		t.Fatalf("Executor.RowLimit = %d", cfg.Executor.RowLimit)
	}
}

func TestFileLookupErrorsOnMissingFile(t *testing.T) {
	if _, err := FileLookup(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
