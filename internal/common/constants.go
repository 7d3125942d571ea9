package common

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvServerPort       = "SERVER_PORT"
	EnvMetricsPort      = "METRICS_PORT"
	EnvArtifactDir      = "ARTIFACT_DIR"
	EnvStorageBackend   = "STORAGE_BACKEND"
	EnvDataPath         = "DATA_PATH"
	EnvMaxTextChars     = "MAX_TEXT_CHARS"
	EnvSentimentURL     = "SENTIMENT_URL"
	EnvSentimentToken   = "SENTIMENT_TOKEN"
	EnvSentimentTimeout = "SENTIMENT_TIMEOUT"
	EnvReadTimeout      = "READ_TIMEOUT"
	EnvWriteTimeout     = "WRITE_TIMEOUT"
	EnvIdleTimeout      = "IDLE_TIMEOUT"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Storage backends
const (
	StorageBackendFile = "file"
	StorageBackendBolt = "bolt"
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Configuration defaults
const (
	DefaultServerPort     = 8000
	DefaultMetricsPort    = 8080
	DefaultArtifactDir    = "models"
	DefaultStorageBackend = StorageBackendFile
	DefaultDataPath       = "data"
	DefaultMaxTextChars   = 64 << 10
	DefaultLogLevel       = "info"
	DefaultLogFormat      = LogFormatJSON
)
