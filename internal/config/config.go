// Package config loads the service configuration from defaults, an optional
// YAML file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the immutable service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	FFmpeg      FFmpegConfig      `mapstructure:"ffmpeg"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig configures upload acceptance and retention
type UploadConfig struct {
	Dir               string        `mapstructure:"dir" validate:"required"`
	MaxBytes          int64         `mapstructure:"max_bytes" validate:"gt=0"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions" validate:"min=1,dive,alphanum"`
	MaxAge            time.Duration `mapstructure:"max_age" validate:"gt=0"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

// RecognitionConfig selects and configures the speech recognition provider
type RecognitionConfig struct {
	Provider              string `mapstructure:"provider" validate:"oneof=mock google gemini"`
	Language              string `mapstructure:"language" validate:"required"`
	GoogleCredentialsFile string `mapstructure:"google_credentials_file"`
	GeminiAPIKey          string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel           string `mapstructure:"gemini_model"`
}

// PipelineConfig holds the segmentation and pacing parameters
type PipelineConfig struct {
	MinSilence         time.Duration `mapstructure:"min_silence" validate:"gt=0"`
	SilenceOffsetDB    float64       `mapstructure:"silence_offset_db" validate:"gte=0"`
	KeepSilence        time.Duration `mapstructure:"keep_silence" validate:"gte=0"`
	MinSilenceSegments int           `mapstructure:"min_silence_segments" validate:"min=1"`
	Window             time.Duration `mapstructure:"window" validate:"gt=0"`
	SegmentPause       time.Duration `mapstructure:"segment_pause" validate:"gte=0"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
	TempDir            string        `mapstructure:"temp_dir"`
}

// FFmpegConfig locates the ffmpeg binary
type FFmpegConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelemetryConfig configures OTLP export
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Insecure    bool   `mapstructure:"insecure"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type loaderOptions struct {
	configFile string
	envFile    string
}

// Option customizes Load
type Option func(*loaderOptions)

// WithConfigFile sets an explicit YAML config file
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets the .env file to load. Defaults to ./.env.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load builds and validates the configuration
func Load(opts ...Option) (*Config, error) {
	o := loaderOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.configFile == "" {
		o.configFile = os.Getenv("CONFIG_FILE")
	}
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", o.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", int64(100*1024*1024))
	v.SetDefault("upload.allowed_extensions", []string{"wav", "mp3", "ogg", "flac", "m4a"})
	v.SetDefault("upload.max_age", 24*time.Hour)
	v.SetDefault("upload.cleanup_interval", 30*time.Minute)

	v.SetDefault("recognition.provider", "mock")
	v.SetDefault("recognition.language", "es-ES")
	v.SetDefault("recognition.google_credentials_file", "")
	v.SetDefault("recognition.gemini_api_key", "")
	v.SetDefault("recognition.gemini_model", "gemini-2.0-flash")

	v.SetDefault("pipeline.min_silence", 500*time.Millisecond)
	v.SetDefault("pipeline.silence_offset_db", 14.0)
	v.SetDefault("pipeline.keep_silence", 500*time.Millisecond)
	v.SetDefault("pipeline.min_silence_segments", 5)
	v.SetDefault("pipeline.window", 30*time.Second)
	v.SetDefault("pipeline.segment_pause", 500*time.Millisecond)
	v.SetDefault("pipeline.retry_backoff", 2*time.Second)
	v.SetDefault("pipeline.temp_dir", "")

	v.SetDefault("ffmpeg.path", "ffmpeg")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "kari-transcriptor")
	v.SetDefault("telemetry.insecure", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// IsAllowedExtension reports whether ext may be uploaded
func (c *UploadConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// LogSummary writes the effective settings, without secrets
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.Int("port", c.Server.Port),
		zap.String("uploadDir", c.Upload.Dir),
		zap.Int64("maxUploadBytes", c.Upload.MaxBytes),
		zap.Strings("allowedExtensions", c.Upload.AllowedExtensions),
		zap.String("provider", c.Recognition.Provider),
		zap.String("language", c.Recognition.Language),
		zap.String("ffmpeg", c.FFmpeg.Path),
		zap.Bool("telemetry", c.Telemetry.Endpoint != ""))

	if c.Recognition.Provider == "google" && c.Recognition.GoogleCredentialsFile == "" {
		logger.Info("Using application default credentials for Google Speech")
	}
	if c.Server.StaticDir == "" {
		logger.Info("No static directory configured, upload page disabled")
	}
}
