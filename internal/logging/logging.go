// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used across convo. Log lines go to a
// size-rotated file and, optionally, to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/convo/internal/config"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error (default info)
	Format string // json or console (default json)

	// File is the log file. Empty disables file output.
	File       string
	MaxSizeMB  int // default 10
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console tees log lines to Stderr.
	Console bool
	Stderr  io.Writer
}

// OptionsFromConfig maps the [logging] config section onto Options.
func OptionsFromConfig(cfg config.LoggingConfig) (Options, error) {
	file, err := cfg.ResolvedFile()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       file,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		Console:    cfg.Console,
	}, nil
}

// Logger is a zap logger that owns its rotating file.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New builds a logger. With neither a file nor console output it returns a
// no-op logger.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encoder := newEncoder(opts.Format)
	var cores []zapcore.Core
	l := &Logger{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		l.rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(l.rotator), level))
	}

	if opts.Console {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		// console lines are always human readable
		cores = append(cores, zapcore.NewCore(newEncoder("console"), zapcore.Lock(zapcore.AddSync(w)), level))
	}

	if len(cores) == 0 {
		l.Logger = zap.NewNop()
		return l, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if level == zapcore.DebugLevel {
		logger = logger.WithOptions(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	l.Logger = logger
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if strings.EqualFold(format, "console") {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Since is a helper for logging elapsed time.
func Since(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
