package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	loggerBuildErrorTemplateConstant     = "unable to build %s logger: %w"
	structuredLoggerNameConstant         = "structured"
	consoleLoggerNameConstant            = "console"
	timestampKeyConstant                 = "timestamp"
)

// LogLevel enumerates supported diagnostic verbosity levels.
type LogLevel string

// LogFormat enumerates supported diagnostic output encodings.
type LogFormat string

const (
	// LogLevelDebug emits every event including individual git invocations.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo emits lifecycle events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn emits recoverable failures.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError emits only failures.
	LogLevelError LogLevel = "error"

	// LogFormatStructured writes JSON lines.
	LogFormatStructured LogFormat = "structured"
	// LogFormatConsole writes human-readable lines.
	LogFormatConsole LogFormat = "console"
)

// LoggerOutputs groups the diagnostic logger with the console logger used for human-readable
// messages. ConsoleLogger is a no-op in structured mode.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers writing to standard error.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() LoggerFactory {
	return LoggerFactory{}
}

// CreateLoggerOutputs builds loggers for the requested level and format.
func (factory LoggerFactory) CreateLoggerOutputs(requestedLevel LogLevel, requestedFormat LogFormat) (LoggerOutputs, error) {
	level, levelError := parseLogLevel(requestedLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	switch LogFormat(strings.ToLower(strings.TrimSpace(string(requestedFormat)))) {
	case LogFormatStructured:
		diagnosticLogger := zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(structuredEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger.Named(structuredLoggerNameConstant), ConsoleLogger: zap.NewNop()}, nil
	case LogFormatConsole:
		consoleConfiguration := zap.NewDevelopmentConfig()
		consoleConfiguration.Level = zap.NewAtomicLevelAt(level)
		consoleConfiguration.OutputPaths = []string{"stderr"}
		consoleConfiguration.ErrorOutputPaths = []string{"stderr"}
		consoleConfiguration.DisableStacktrace = true
		consoleConfiguration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		diagnosticLogger, buildError := consoleConfiguration.Build()
		if buildError != nil {
			return LoggerOutputs{}, fmt.Errorf(loggerBuildErrorTemplateConstant, consoleLoggerNameConstant, buildError)
		}
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: diagnosticLogger.Named(consoleLoggerNameConstant)}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedFormat)
	}
}

func parseLogLevel(requestedLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLevel)
	}
}

func structuredEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = timestampKeyConstant
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}
