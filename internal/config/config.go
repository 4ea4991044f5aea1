package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Email    EmailConfig    `mapstructure:"email"    validate:"required"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	// ClientURL is the frontend origin used in emails and CORS.
	ClientURL string `mapstructure:"client_url" validate:"omitempty,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"required,gte=4,lte=31"`
}

// StorageConfig selects where uploaded project files and deliverable
// archives are kept.
type StorageConfig struct {
	Backend            string `mapstructure:"backend"              validate:"required,oneof=local gcs"`
	LocalDir           string `mapstructure:"local_dir"            validate:"required_if=Backend local"`
	PublicBaseURL      string `mapstructure:"public_base_url"      validate:"omitempty,url"`
	GCSBucket          string `mapstructure:"gcs_bucket"           validate:"required_if=Backend gcs"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
}

// EmailConfig contains outgoing mail settings.
type EmailConfig struct {
	Provider       string `mapstructure:"provider"         validate:"required,oneof=log sendgrid"`
	SendGridAPIKey string `mapstructure:"sendgrid_api_key" validate:"required_if=Provider sendgrid"`
	FromAddress    string `mapstructure:"from_address"     validate:"omitempty,email"`
	FromName       string `mapstructure:"from_name"`
}

// AnalyzerConfig configures the archive similarity analyzer and the pool of
// comparison subprocesses that drives it.
type AnalyzerConfig struct {
	Command               string        `mapstructure:"command"                  validate:"required"`
	Script                string        `mapstructure:"script"`
	WorkerCount           int           `mapstructure:"worker_count"             validate:"required,gt=0,lte=64"`
	Timeout               time.Duration `mapstructure:"timeout"                  validate:"required,gt=0"`
	PerFileTimeoutSeconds int           `mapstructure:"per_file_timeout_seconds" validate:"gt=0"`
	ScriptWorkers         int           `mapstructure:"script_workers"           validate:"gt=0"`
	SuspiciousThreshold   float64       `mapstructure:"suspicious_threshold"     validate:"gt=0,lte=1"`
	MaxAttempts           int           `mapstructure:"max_attempts"             validate:"required,gt=0,lte=10"`
	MaxOutputBytes        int64         `mapstructure:"max_output_bytes"         validate:"required,gt=0"`
}

// TasksConfig configures the background task runner.
type TasksConfig struct {
	WorkerCount  int           `mapstructure:"worker_count"   validate:"required,gt=0"`
	QueueSize    int           `mapstructure:"queue_size"     validate:"required,gt=0"`
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"required,gt=0"`
}
