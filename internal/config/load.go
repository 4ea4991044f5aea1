package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "MYGES"

// envFileVar names the variable that points at an optional dotenv file.
const envFileVar = EnvPrefix + "_ENV_FILE"

const scriptEnvVar = EnvPrefix + "_ANALYZER_SCRIPT"

var defaults = map[string]any{
	"server.port":                         8080,
	"server.log_level":                    "info",
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,
	"storage.backend":                     "local",
	"storage.local_dir":                   "./uploads",
	"email.provider":                      "log",
	"email.from_name":                     "MyGES Like",
	"analyzer.command":                    "python3",
	"analyzer.script":                     "analyzer/nodejs_bridge.py",
	"analyzer.worker_count":               4,
	"analyzer.timeout":                    2 * time.Minute,
	"analyzer.per_file_timeout_seconds":   30,
	"analyzer.script_workers":             4,
	"analyzer.suspicious_threshold":       0.7,
	"analyzer.max_attempts":               2,
	"analyzer.max_output_bytes":           int64(1 << 20),
	"tasks.worker_count":                  2,
	"tasks.queue_size":                    100,
	"tasks.stuck_task_age":                30 * time.Minute,
}

// Keys without a default still have to be bound so that Unmarshal sees
// values that only exist in the environment.
var boundKeys = []string{
	"server.client_url",
	"database.url",
	"auth.jwt_secret",
	"storage.public_base_url",
	"storage.gcs_bucket",
	"storage.gcs_credentials_file",
	"email.sendgrid_api_key",
	"email.from_address",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Empty variables count as unset, except the analyzer script: clearing
	// it runs analyzer.command directly, as archive-compare expects.
	if value, ok := os.LookupEnv(scriptEnvVar); ok && strings.TrimSpace(value) == "" {
		cfg.Analyzer.Script = ""
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags on cfg and reports every failing field.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(fields, ", "))
}

// loadDotEnv populates the process environment from an optional dotenv file.
// Variables that are already set win over the file.
func loadDotEnv() error {
	path := os.Getenv(envFileVar)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
