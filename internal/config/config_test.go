package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "CLUSTER_EPSILON", "MIN_CLUSTER_SIZE", "CLUSTER_WORKERS",
		"CLUSTER_NEIGHBORS", "CLUSTER_TOP_N", "CLUSTER_MERGE_DUPLICATE_NAMES",
		"LOG_LEVEL", "LOG_FORMAT", "WEB_PORT", "WEB_CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Cluster.Eps != 0.5 {
		t.Errorf("expected default eps 0.5, got %v", cfg.Cluster.Eps)
	}
	if cfg.Cluster.MinSamples != 3 {
		t.Errorf("expected default min samples 3, got %d", cfg.Cluster.MinSamples)
	}
	if cfg.Cluster.Neighbors != NeighborsExact {
		t.Errorf("expected exact neighbors by default, got %q", cfg.Cluster.Neighbors)
	}
	if cfg.Cluster.TopN != 10 {
		t.Errorf("expected top N 10, got %d", cfg.Cluster.TopN)
	}
	if !cfg.Cluster.MergeDuplicateNames {
		t.Error("expected duplicate name merging enabled by default")
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Database)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("CLUSTER_EPSILON", "0.35")
	t.Setenv("MIN_CLUSTER_SIZE", "5")
	t.Setenv("CLUSTER_NEIGHBORS", "hnsw")
	t.Setenv("CLUSTER_MERGE_DUPLICATE_NAMES", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("WEB_CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.Database.URL != "postgres://u:p@localhost/db" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Cluster.Eps != 0.35 {
		t.Errorf("expected eps 0.35, got %v", cfg.Cluster.Eps)
	}
	if cfg.Cluster.MinSamples != 5 {
		t.Errorf("expected min samples 5, got %d", cfg.Cluster.MinSamples)
	}
	if cfg.Cluster.Neighbors != NeighborsHNSW {
		t.Errorf("expected hnsw, got %q", cfg.Cluster.Neighbors)
	}
	if cfg.Cluster.MergeDuplicateNames {
		t.Error("expected merging disabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected lowercased level, got %q", cfg.Log.Level)
	}
	if len(cfg.Web.CORSOrigins) != 2 || cfg.Web.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %v", cfg.Web.CORSOrigins)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "abc")
	if got := envInt("TEST_ENV_INT", 7); got != 7 {
		t.Errorf("expected default for invalid value, got %d", got)
	}
	t.Setenv("TEST_ENV_INT", "-3")
	if got := envInt("TEST_ENV_INT", 7); got != 7 {
		t.Errorf("expected default for negative value, got %d", got)
	}
}

func TestEnvFloat_Invalid(t *testing.T) {
	t.Setenv("TEST_ENV_FLOAT", "0")
	if got := envFloat("TEST_ENV_FLOAT", 0.5); got != 0.5 {
		t.Errorf("expected default for zero, got %v", got)
	}
}

func TestValidate_Invalid(t *testing.T) {
	cfg := Load()
	cfg.Cluster.Neighbors = "kdtree"
	cfg.Cluster.Eps = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Neighbors") || !strings.Contains(err.Error(), "Eps") {
		t.Errorf("expected both fields reported, got %v", err)
	}
}
