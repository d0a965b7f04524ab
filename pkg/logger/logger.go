// Package logger provides opinionated logging capabilities for the eventsource system
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger from options. Without options it logs at info level
// through the console encoder to stdout.
func New(opts ...Option) *zap.Logger {
	cfg := &config{level: zap.InfoLevel}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.writers) == 0 {
		cfg.writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(cfg.writers))
	for _, writer := range cfg.writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(
		newEncoder(cfg.json),
		zapcore.NewMultiWriteSyncer(syncers...),
		cfg.level,
	)

	var zopts []zap.Option
	if cfg.caller {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func newEncoder(json bool) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if json {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}
