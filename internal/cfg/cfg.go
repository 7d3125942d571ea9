package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"smartscholar/internal/common"
)

type Settings struct {
	ServerPort      int
	MetricsPort     int
	ArtifactDir     string
	StorageBackend  string
	DataPath        string
	MaxTextChars    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SentimentURL     string
	SentimentToken   string
	SentimentTimeout time.Duration

	LogLevel  string
	LogFormat string
}

const (
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultSentimentTimeout = 5 * time.Second
)

type ConfigFile struct {
	Server struct {
		Port            int    `yaml:"port"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		IdleTimeout     string `yaml:"idleTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
		MaxTextChars    int    `yaml:"maxTextChars"`
	} `yaml:"server"`

	Storage struct {
		Backend     string `yaml:"backend"`
		ArtifactDir string `yaml:"artifactDir"`
		DataPath    string `yaml:"dataPath"`
	} `yaml:"storage"`

	Sentiment struct {
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"sentiment"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
		LogFormat   string `yaml:"logFormat"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		ServerPort:      getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		ArtifactDir:     getStringFromEnvOrConfig(common.EnvArtifactDir, config.Storage.ArtifactDir, common.DefaultArtifactDir),
		StorageBackend:  getStringFromEnvOrConfig(common.EnvStorageBackend, config.Storage.Backend, common.DefaultStorageBackend),
		DataPath:        getStringFromEnvOrConfig(common.EnvDataPath, config.Storage.DataPath, common.DefaultDataPath),
		MaxTextChars:    getIntFromEnvOrConfig(common.EnvMaxTextChars, config.Server.MaxTextChars, common.DefaultMaxTextChars),
		ReadTimeout:     getDurationFromEnvOrConfig(common.EnvReadTimeout, config.Server.ReadTimeout, defaultReadTimeout),
		WriteTimeout:    getDurationFromEnvOrConfig(common.EnvWriteTimeout, config.Server.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:     getDurationFromEnvOrConfig(common.EnvIdleTimeout, config.Server.IdleTimeout, defaultIdleTimeout),
		ShutdownTimeout: getDurationFromEnvOrConfig(common.EnvShutdownTimeout, config.Server.ShutdownTimeout, defaultShutdownTimeout),

		SentimentURL:     getStringFromEnvOrConfig(common.EnvSentimentURL, config.Sentiment.URL, ""),
		SentimentToken:   getStringFromEnvOrConfig(common.EnvSentimentToken, config.Sentiment.Token, ""),
		SentimentTimeout: getDurationFromEnvOrConfig(common.EnvSentimentTimeout, config.Sentiment.Timeout, defaultSentimentTimeout),

		LogLevel:  getStringFromEnvOrConfig(common.EnvLogLevel, config.System.LogLevel, common.DefaultLogLevel),
		LogFormat: getStringFromEnvOrConfig(common.EnvLogFormat, config.System.LogFormat, common.DefaultLogFormat),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ServerPort:      getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		ArtifactDir:     getEnvOrDefault(common.EnvArtifactDir, common.DefaultArtifactDir),
		StorageBackend:  getEnvOrDefault(common.EnvStorageBackend, common.DefaultStorageBackend),
		DataPath:        getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		MaxTextChars:    getIntOrDefault(common.EnvMaxTextChars, common.DefaultMaxTextChars),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, defaultReadTimeout),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, defaultWriteTimeout),
		IdleTimeout:     getDurationOrDefault(common.EnvIdleTimeout, defaultIdleTimeout),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, defaultShutdownTimeout),

		SentimentURL:     os.Getenv(common.EnvSentimentURL), // optional
		SentimentToken:   os.Getenv(common.EnvSentimentToken),
		SentimentTimeout: getDurationOrDefault(common.EnvSentimentTimeout, defaultSentimentTimeout),

		LogLevel:  getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat: getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// SentimentEnabled reports whether a sentiment endpoint is configured.
func (s *Settings) SentimentEnabled() bool {
	return s.SentimentURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getStringFromEnvOrConfig(key, configValue, defaultValue string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getDurationFromEnvOrConfig(key, configValue string, defaultValue time.Duration) time.Duration {
	if env := os.Getenv(key); env != "" {
		if d, err := time.ParseDuration(env); err == nil {
			return d
		}
	}
	if d, err := time.ParseDuration(configValue); err == nil {
		return d
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate ports
	if settings.ServerPort < 1024 || settings.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1024 and 65535, got %d", settings.ServerPort)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return fmt.Errorf("server and metrics ports must differ, both are %d", settings.ServerPort)
	}

	// Validate storage
	switch settings.StorageBackend {
	case common.StorageBackendFile, common.StorageBackendBolt:
	default:
		return fmt.Errorf("storage backend must be %q or %q, got %q",
			common.StorageBackendFile, common.StorageBackendBolt, settings.StorageBackend)
	}
	if settings.ArtifactDir == "" {
		return fmt.Errorf("artifact directory cannot be empty")
	}

	// Validate time durations
	for _, d := range []struct {
		name     string
		value    time.Duration
		min, max time.Duration
	}{
		{"read timeout", settings.ReadTimeout, time.Second, 5 * time.Minute},
		{"write timeout", settings.WriteTimeout, time.Second, 5 * time.Minute},
		{"idle timeout", settings.IdleTimeout, time.Second, 10 * time.Minute},
		{"shutdown timeout", settings.ShutdownTimeout, time.Second, time.Minute},
		{"sentiment timeout", settings.SentimentTimeout, 100 * time.Millisecond, time.Minute},
	} {
		if d.value < d.min || d.value > d.max {
			return fmt.Errorf("%s must be between %v and %v, got %v", d.name, d.min, d.max, d.value)
		}
	}

	// Validate request limits
	if settings.MaxTextChars < 1024 || settings.MaxTextChars > 10<<20 {
		return fmt.Errorf("max text chars must be between 1024 and 10485760, got %d", settings.MaxTextChars)
	}

	// Validate sentiment endpoint
	if settings.SentimentURL != "" &&
		!strings.HasPrefix(settings.SentimentURL, "http://") && !strings.HasPrefix(settings.SentimentURL, "https://") {
		return fmt.Errorf("sentiment URL must be http(s), got %q", settings.SentimentURL)
	}

	// Validate logging
	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}
	switch settings.LogFormat {
	case common.LogFormatJSON, common.LogFormatConsole:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q",
			common.LogFormatJSON, common.LogFormatConsole, settings.LogFormat)
	}

	return nil
}
