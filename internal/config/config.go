// Package config provides unified configuration for the rAPId service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	// Service holds the HTTP server settings.
	Service ServiceConfig `json:"service" yaml:"service"`

	// AWS holds settings shared by every AWS client.
	AWS AWSConfig `json:"aws" yaml:"aws"`

	// Storage selects and configures the object store.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// DynamoDB names the tables backing schemas, permissions and jobs.
	DynamoDB DynamoDBConfig `json:"dynamodb" yaml:"dynamodb"`

	// Glue configures the table catalogue and crawlers.
	Glue GlueConfig `json:"glue" yaml:"glue"`

	// Athena configures query execution.
	Athena AthenaConfig `json:"athena" yaml:"athena"`

	// Upload bounds the upload pipeline.
	Upload UploadConfig `json:"upload" yaml:"upload"`

	// Job configures job record retention.
	Job JobConfig `json:"job" yaml:"job"`
}

// ServiceConfig holds HTTP server configuration.
type ServiceConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// UploadDir is where in-flight uploads are spooled.
	UploadDir string `json:"upload_dir" yaml:"upload_dir"`

	// MaxUploadBytes caps the accepted upload body size.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// AWSConfig holds settings shared by every AWS client.
type AWSConfig struct {
	// Region is the AWS region.
	Region string `json:"region" yaml:"region"`

	// Endpoint is an optional custom endpoint (for LocalStack, MinIO, etc.).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style S3 addressing.
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// AccessKeyID and SecretAccessKey override the default credential chain.
	// Both must be set together; used with custom endpoints.
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// StorageConfig selects the object store backend.
type StorageConfig struct {
	// Type is the storage type: local, s3.
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type).
	Path string `json:"path" yaml:"path"`

	// Bucket is the S3 bucket (for s3 type).
	Bucket string `json:"bucket" yaml:"bucket"`
}

// DynamoDBConfig names the service's tables.
type DynamoDBConfig struct {
	// SchemaTable holds the schema catalogue.
	SchemaTable string `json:"schema_table" yaml:"schema_table"`

	// PermissionTable holds permissions and subject assignments.
	PermissionTable string `json:"permission_table" yaml:"permission_table"`

	// JobTable holds async job records.
	JobTable string `json:"job_table" yaml:"job_table"`
}

// GlueConfig configures the table catalogue.
type GlueConfig struct {
	// Database is the Glue database holding dataset tables.
	Database string `json:"database" yaml:"database"`

	// CrawlerPrefix namespaces the per-dataset crawlers.
	CrawlerPrefix string `json:"crawler_prefix" yaml:"crawler_prefix"`

	// CrawlerTimeout bounds how long to wait for a crawler run.
	CrawlerTimeout time.Duration `json:"crawler_timeout" yaml:"crawler_timeout"`
}

// AthenaConfig configures query execution.
type AthenaConfig struct {
	// Workgroup is the Athena workgroup.
	Workgroup string `json:"workgroup" yaml:"workgroup"`

	// OutputLocation is the s3:// URI Athena writes result files to.
	OutputLocation string `json:"output_location" yaml:"output_location"`

	// QueryTimeout bounds how long to wait for an execution.
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
}

// UploadConfig bounds the upload pipeline.
type UploadConfig struct {
	// MaxConcurrent caps how many uploads process at once.
	MaxConcurrent int64 `json:"max_concurrent" yaml:"max_concurrent"`

	// ChunkRows is how many rows each validation chunk holds.
	ChunkRows int `json:"chunk_rows" yaml:"chunk_rows"`
}

// JobConfig configures job record retention.
type JobConfig struct {
	// TTL is how long finished job records are retained.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Addr:           ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    120 * time.Second,
			UploadDir:      "",
			MaxUploadBytes: 5 * 1024 * 1024 * 1024,
		},
		AWS: AWSConfig{
			Region: "eu-west-2",
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "./data/rapid",
		},
		DynamoDB: DynamoDBConfig{
			SchemaTable:     "rapid_schemas",
			PermissionTable: "rapid_permissions",
			JobTable:        "rapid_jobs",
		},
		Glue: GlueConfig{
			Database:       "rapid",
			CrawlerPrefix:  "rapid_crawler",
			CrawlerTimeout: 10 * time.Minute,
		},
		Athena: AthenaConfig{
			Workgroup:    "rapid",
			QueryTimeout: 5 * time.Minute,
		},
		Upload: UploadConfig{
			MaxConcurrent: 4,
			ChunkRows:     50_000,
		},
		Job: JobConfig{
			TTL: 7 * 24 * time.Hour,
		},
	}
}

// Resolve sets path defaults that depend on other settings.
func (c *Config) Resolve() {
	if c.Service.UploadDir == "" {
		c.Service.UploadDir = filepath.Join(os.TempDir(), "rapid-uploads")
	}
	if c.Athena.OutputLocation == "" && c.Storage.Bucket != "" {
		c.Athena.OutputLocation = fmt.Sprintf("s3://%s/query-results", c.Storage.Bucket)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Addr == "" {
		return fmt.Errorf("service.addr is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage type is s3")
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage type is local")
	}

	if c.Storage.Type == "s3" {
		for name, value := range map[string]string{
			"dynamodb.schema_table":     c.DynamoDB.SchemaTable,
			"dynamodb.permission_table": c.DynamoDB.PermissionTable,
			"dynamodb.job_table":        c.DynamoDB.JobTable,
			"glue.database":             c.Glue.Database,
		} {
			if value == "" {
				return fmt.Errorf("%s is required", name)
			}
		}
	}

	if c.Upload.MaxConcurrent <= 0 {
		return fmt.Errorf("upload.max_concurrent must be positive, got %d", c.Upload.MaxConcurrent)
	}
	if c.Upload.ChunkRows <= 0 {
		return fmt.Errorf("upload.chunk_rows must be positive, got %d", c.Upload.ChunkRows)
	}
	if c.Job.TTL <= 0 {
		return fmt.Errorf("job.ttl must be positive, got %s", c.Job.TTL)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file over the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays configuration from RAPID_-prefixed environment
// variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RAPID_SERVICE_ADDR"); v != "" {
		cfg.Service.Addr = v
	}
	if v := os.Getenv("RAPID_SERVICE_UPLOAD_DIR"); v != "" {
		cfg.Service.UploadDir = v
	}

	if v := os.Getenv("RAPID_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("RAPID_AWS_ENDPOINT"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("RAPID_AWS_USE_PATH_STYLE"); v != "" {
		cfg.AWS.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("RAPID_AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AWS.AccessKeyID = v
	}
	if v := os.Getenv("RAPID_AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AWS.SecretAccessKey = v
	}

	if v := os.Getenv("RAPID_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("RAPID_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RAPID_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}

	if v := os.Getenv("RAPID_DYNAMODB_SCHEMA_TABLE"); v != "" {
		cfg.DynamoDB.SchemaTable = v
	}
	if v := os.Getenv("RAPID_DYNAMODB_PERMISSION_TABLE"); v != "" {
		cfg.DynamoDB.PermissionTable = v
	}
	if v := os.Getenv("RAPID_DYNAMODB_JOB_TABLE"); v != "" {
		cfg.DynamoDB.JobTable = v
	}

	if v := os.Getenv("RAPID_GLUE_DATABASE"); v != "" {
		cfg.Glue.Database = v
	}
	if v := os.Getenv("RAPID_GLUE_CRAWLER_PREFIX"); v != "" {
		cfg.Glue.CrawlerPrefix = v
	}

	if v := os.Getenv("RAPID_ATHENA_WORKGROUP"); v != "" {
		cfg.Athena.Workgroup = v
	}
	if v := os.Getenv("RAPID_ATHENA_OUTPUT_LOCATION"); v != "" {
		cfg.Athena.OutputLocation = v
	}

	if v := os.Getenv("RAPID_UPLOAD_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxConcurrent = n
		}
	}
	if v := os.Getenv("RAPID_UPLOAD_CHUNK_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.ChunkRows = n
		}
	}

	if v := os.Getenv("RAPID_JOB_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Job.TTL = d
		}
	}
}

// Load builds the effective configuration: defaults, then the optional file,
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
