// Package logging builds the process-wide slog.Logger on top of zap.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/IshaanNene/pricetracker/internal/config"
)

// New creates a logger from config. The returned func flushes buffered output.
func New(cfg config.LoggingConfig, verbose bool) (*slog.Logger, func(), error) {
	level, err := zapLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	sink, closeSink, err := openSink(cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	logger := slog.New(zapslog.NewHandler(core, zapslog.WithName("pricetracker")))

	flush := func() {
		_ = core.Sync()
		closeSink()
	}
	return logger, flush, nil
}

func zapLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func openSink(output string) (zapcore.WriteSyncer, func(), error) {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), func() {}, nil
	case "stdout":
		return zapcore.Lock(os.Stdout), func() {}, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", output, err)
		}
		return zapcore.Lock(f), func() { _ = f.Close() }, nil
	}
}
