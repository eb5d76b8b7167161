package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/unalkalkan/podcaster/pkg/types"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PODCASTER_"

// Load reads and parses the configuration file on top of the defaults.
// It also supports environment variable overrides with the PODCASTER_ prefix.
// An empty path yields the defaults plus overrides.
func Load(configPath string) (*types.Config, error) {
	cfg := GetDefault()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid and normalizes paths
func Validate(cfg *types.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadSize < 0 {
		return fmt.Errorf("invalid max upload size: %d", cfg.Server.MaxUploadSize)
	}
	if cfg.Server.MaxRuns < 0 {
		return fmt.Errorf("invalid max concurrent runs: %d", cfg.Server.MaxRuns)
	}

	switch cfg.Storage.Adapter {
	case "none":
	case "local":
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		abs, err := filepath.Abs(cfg.Storage.Local.BasePath)
		if err != nil {
			return fmt.Errorf("invalid local storage base_path: %w", err)
		}
		cfg.Storage.Local.BasePath = abs
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	default:
		return fmt.Errorf("invalid storage adapter: %s (must be 'local', 's3' or 'none')", cfg.Storage.Adapter)
	}

	if cfg.Pipeline.RunTimeout < 0 {
		return fmt.Errorf("invalid run timeout: %d", cfg.Pipeline.RunTimeout)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "pretty", "json":
	default:
		return fmt.Errorf("invalid logging format: %s (must be 'pretty' or 'json')", cfg.Logging.Format)
	}

	seen := make(map[string]bool, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile: %s", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *types.Config) error {
	strs := map[string]*string{
		"SERVER_HOST":                  &cfg.Server.Host,
		"STORAGE_ADAPTER":              &cfg.Storage.Adapter,
		"STORAGE_LOCAL_BASE_PATH":      &cfg.Storage.Local.BasePath,
		"STORAGE_S3_BUCKET":            &cfg.Storage.S3.Bucket,
		"STORAGE_S3_REGION":            &cfg.Storage.S3.Region,
		"STORAGE_S3_ENDPOINT":          &cfg.Storage.S3.Endpoint,
		"STORAGE_S3_ACCESS_KEY_ID":     &cfg.Storage.S3.AccessKeyID,
		"STORAGE_S3_SECRET_ACCESS_KEY": &cfg.Storage.S3.SecretAccessKey,
		"PIPELINE_DEFAULT_PROFILE":     &cfg.Pipeline.DefaultProfile,
		"LOGGING_LEVEL":                &cfg.Logging.Level,
		"LOGGING_FORMAT":               &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if val := os.Getenv(EnvPrefix + key); val != "" {
			*dst = val
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":                &cfg.Server.Port,
		"SERVER_MAX_CONCURRENT_RUNS": &cfg.Server.MaxRuns,
		"PIPELINE_RUN_TIMEOUT":       &cfg.Pipeline.RunTimeout,
	}
	for key, dst := range ints {
		if val := os.Getenv(EnvPrefix + key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"STORAGE_S3_USE_SSL":         &cfg.Storage.S3.UseSSL,
		"PIPELINE_PUBLISH_ARTIFACTS": &cfg.Pipeline.PublishArtifacts,
	}
	for key, dst := range bools {
		if val := os.Getenv(EnvPrefix + key); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   60,
			WriteTimeout:  900,
			MaxUploadSize: 50,
			MaxRuns:       4,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "./data",
			},
		},
		Pipeline: types.PipelineConfig{
			DefaultProfile:   "azure",
			RunTimeout:       1800,
			PublishArtifacts: true,
		},
		Logging: types.LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}
