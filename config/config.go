package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the service. Values come from a clipgen.yaml
// file when present, overridden by CLIPGEN_* environment variables.
type Config struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	UploadsDir string `mapstructure:"uploads_dir"`
	TempDir    string `mapstructure:"temp_dir"`
	ClipsDir   string `mapstructure:"clips_dir"`

	// JobsFile enables JSON snapshot persistence of the job registry when
	// non-empty. Empty means in-memory only.
	JobsFile string `mapstructure:"jobs_file"`

	Workers         int           `mapstructure:"workers"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`

	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TempMaxAge    time.Duration `mapstructure:"temp_max_age"`
	ClipRetention time.Duration `mapstructure:"clip_retention"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("temp_dir", "temp")
	v.SetDefault("clips_dir", "clips")
	v.SetDefault("jobs_file", "jobs.json")
	v.SetDefault("workers", 2)
	v.SetDefault("download_timeout", 30*time.Minute)
	v.SetDefault("render_timeout", 5*time.Minute)
	v.SetDefault("sweep_interval", 30*time.Minute)
	v.SetDefault("temp_max_age", 2*time.Hour)
	v.SetDefault("clip_retention", 7*24*time.Hour)
	v.SetDefault("max_upload_bytes", int64(5*1024*1024*1024)) // 5GB
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("clipgen")
	v.AutomaticEnv()

	v.SetConfigName("clipgen")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/clipgen")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	return &cfg, nil
}

// EnsureDirs creates the working directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadsDir, c.TempDir, c.ClipsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
