package observability

import (
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultServiceName = "adbroker"

// InitLogger constructs a production zap.Logger for the default service name.
func InitLogger() (*zap.Logger, error) {
	return InitLoggerWithLevel(getLogLevel(), defaultServiceName)
}

// InitLoggerWithService constructs a production zap.Logger configured for the service.
// The returned logger should be passed to other components for structured logging.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	return InitLoggerWithLevel(getLogLevel(), serviceName)
}

// InitLoggerWithLevel constructs a zap.Logger at the provided level.
// The returned logger is named with the service name and installed as the global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	return buildLogger(zap.NewProductionConfig(), level, serviceName)
}

// InitStderrLogger is InitLoggerWithService for processes whose stdout is a
// protocol channel (the MCP stdio server).
func InitStderrLogger(serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return buildLogger(cfg, getLogLevel(), serviceName)
}

func buildLogger(cfg zap.Config, level zapcore.Level, serviceName string) (*zap.Logger, error) {
	cfg.Level = zap.NewAtomicLevelAt(level)

	// Field names match what the log shipper expects
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// getLogLevel determines the log level from LOG_LEVEL, falling back to an
// ENV-based default.
func getLogLevel() zapcore.Level {
	env := strings.ToLower(os.Getenv("ENV"))
	logLevel := strings.ToUpper(os.Getenv("LOG_LEVEL"))

	if logLevel == "" {
		if env == "development" || env == "dev" {
			return zap.DebugLevel
		}
		return zap.InfoLevel
	}

	switch logLevel {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// ShouldSample returns true if a log line should be emitted given the rate
// (0.0 to 1.0). Used for per-request info logs on the auction hot path.
func ShouldSample(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return rand.Float64() < rate
}

// GetSamplingRate returns the per-request log sampling rate for the current ENV.
func GetSamplingRate() float64 {
	switch strings.ToLower(os.Getenv("ENV")) {
	case "development", "dev", "test":
		return 1.0
	case "staging":
		return 0.5
	default: // production
		return 0.1
	}
}
