// Package logging builds the zap logger shared by the service.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Option func(*options)

type options struct {
	writers []io.Writer
	file    string
}

// WithWriter replaces stdout as the primary sink.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writers = append(o.writers, w)
	}
}

// WithFile additionally appends log lines to path.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// New returns a JSON logger writing at the given level.
func New(level string, opts ...Option) (*zap.Logger, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	var syncers []zapcore.WriteSyncer
	for _, w := range cfg.writers {
		syncers = append(syncers, zapcore.AddSync(w))
	}
	if len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}
	if cfg.file != "" {
		f, err := os.OpenFile(cfg.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, zapcore.Lock(f))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), parseLevel(level))
	return zap.New(core), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
