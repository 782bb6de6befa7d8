package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"neuralnexus-pipeline/internal/config"
)

type Fields map[string]interface{}

type Logger struct {
	entry *logrus.Entry
}

func New(cfg config.LogConfig) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	switch cfg.Format {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	base.SetOutput(resolveOutput(cfg))

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

func resolveOutput(cfg config.LogConfig) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.withKV(kv).Debug(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.withKV(kv).Info(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.withKV(kv).Warn(msg) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.withKV(kv).Error(msg) }

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// withKV folds alternating key/value arguments into logrus fields. An odd
// trailing argument is kept under "extra" instead of being dropped.
func (l *Logger) withKV(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return l.entry
	}

	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	if len(kv)%2 != 0 {
		fields["extra"] = kv[len(kv)-1]
	}

	return l.entry.WithFields(fields)
}

// LogService records one outbound service operation with its duration.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}

	if err != nil {
		entry.WithError(err).Error("service operation failed")
		return
	}
	entry.Info("service operation completed")
}

// LogStage records a pipeline stage transition for one request.
func (l *Logger) LogStage(requestID, stage, message string, duration time.Duration, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"request_id":  requestID,
		"stage":       stage,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error(message)
		return
	}
	entry.Info(message)
}

// LogRequest records request-level lifecycle events.
func (l *Logger) LogRequest(requestID, role, event string, duration time.Duration, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"request_id":  requestID,
		"role":        role,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("request event")
		return
	}
	entry.Info("request event")
}
