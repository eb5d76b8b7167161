package types

// Config represents the overall application configuration
type Config struct {
	Server   ServerConfig    `yaml:"server" json:"server"`
	Storage  StorageConfig   `yaml:"storage" json:"storage"`
	Pipeline PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Logging  LoggingConfig   `yaml:"logging" json:"logging"`
	Profiles []ProfileConfig `yaml:"profiles" json:"profiles"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	ReadTimeout   int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout  int    `yaml:"write_timeout" json:"write_timeout"` // seconds
	MaxUploadSize int64  `yaml:"max_upload_mb" json:"max_upload_mb"` // megabytes
	MaxRuns       int    `yaml:"max_concurrent_runs" json:"max_concurrent_runs"`
}

// StorageConfig defines the artifact storage adapter
type StorageConfig struct {
	Adapter string           `yaml:"adapter" json:"adapter"` // "local", "s3" or "none"
	Local   LocalStorageOpts `yaml:"local" json:"local"`
	S3      S3StorageOpts    `yaml:"s3" json:"s3"`
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// PipelineConfig holds pipeline-level settings
type PipelineConfig struct {
	DefaultProfile   string `yaml:"default_profile" json:"default_profile"`
	RunTimeout       int    `yaml:"run_timeout" json:"run_timeout"` // seconds
	PublishArtifacts bool   `yaml:"publish_artifacts" json:"publish_artifacts"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // pretty or json
}

// ProfileConfig binds one provider per kind plus their options
type ProfileConfig struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Document    ProviderBinding `yaml:"document" json:"document"`
	LLM         ProviderBinding `yaml:"llm" json:"llm"`
	Speech      ProviderBinding `yaml:"speech" json:"speech"`
}

// ProviderBinding selects a registered provider and its profile-level options
type ProviderBinding struct {
	Provider string         `yaml:"provider" json:"provider"`
	Options  map[string]any `yaml:"options" json:"options"`
}
