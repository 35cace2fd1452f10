package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Neighbor finder names
const (
	NeighborsExact = "exact"
	NeighborsHNSW  = "hnsw"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

// ClusterConfig holds the clustering run tunables
type ClusterConfig struct {
	Eps                 float64 `yaml:"eps" validate:"gt=0"`
	MinSamples          int     `yaml:"min_samples" validate:"gte=1"`
	Workers             int     `yaml:"workers" validate:"gte=1"`
	Neighbors           string  `yaml:"neighbors" validate:"oneof=exact hnsw"`
	HNSWCandidates      int     `yaml:"hnsw_candidates" validate:"gte=1"`
	TopN                int     `yaml:"top_n" validate:"gte=0"`
	MergeDuplicateNames bool    `yaml:"merge_duplicate_names"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=pretty json"`
}

type WebConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port" validate:"gte=1,lte=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
// Returns the default value if the env var is unset or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the env var or the default when unset
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma separated list; blank entries are dropped
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := defaults()

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Cluster: ClusterConfig{
			Eps:                 envFloat("CLUSTER_EPSILON", d.Cluster.Eps),
			MinSamples:          envInt("MIN_CLUSTER_SIZE", d.Cluster.MinSamples),
			Workers:             envInt("CLUSTER_WORKERS", d.Cluster.Workers),
			Neighbors:           envString("CLUSTER_NEIGHBORS", d.Cluster.Neighbors),
			HNSWCandidates:      envInt("CLUSTER_HNSW_CANDIDATES", d.Cluster.HNSWCandidates),
			TopN:                envInt("CLUSTER_TOP_N", d.Cluster.TopN),
			MergeDuplicateNames: envBool("CLUSTER_MERGE_DUPLICATE_NAMES", d.Cluster.MergeDuplicateNames),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", d.Log.Level)),
			Format: strings.ToLower(envString("LOG_FORMAT", d.Log.Format)),
		},
		Web: WebConfig{
			Host:        envString("WEB_HOST", d.Web.Host),
			Port:        envInt("WEB_PORT", d.Web.Port),
			CORSOrigins: envList("WEB_CORS_ORIGINS", d.Web.CORSOrigins),
		},
	}
}

// Validate checks the configuration values and reports every invalid field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
