// Copyright 2021 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is a thin wrapper around zap that logs messages with key value
// context pairs:
//
//	log.Info("Switch connected", "switch", id, "ports", len(ports))
//
// The root logger discards everything until Setup is called.
package log

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scionproto/sdnctrl/pkg/private/serrors"
)

// Level is the log level.
type Level zapcore.Level

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

var (
	root   atomic.Pointer[logger]
	zlevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	root.Store(&logger{logger: zap.NewNop()})
}

// Setup configures the root logger according to cfg. It is safe to call
// Setup multiple times, the last call wins.
func Setup(cfg Config, opts ...Option) error {
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, err := ParseLevel(cfg.Console.Level)
	if err != nil {
		return err
	}
	zlevel.SetLevel(zapcore.Level(lvl))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.Console.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zlevel)

	o := applyOptions(opts)
	zopts := append([]zap.Option{zap.AddCallerSkip(1)}, o.zapOptions()...)
	if !cfg.Console.DisableCaller {
		zopts = append(zopts, zap.AddCaller())
	}
	root.Store(&logger{logger: zap.New(core, zopts...)})
	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, serrors.New("unknown log level", "level", lvl)
	}
}

// SetLevel changes the level of the root logger at runtime.
func SetLevel(lvl Level) {
	zlevel.SetLevel(zapcore.Level(lvl))
}

// CurrentLevel returns the level of the root logger.
func CurrentLevel() Level {
	return Level(zlevel.Level())
}

func (l Level) String() string {
	return zapcore.Level(l).String()
}

// Flush writes the logs to the underlying buffer.
func Flush() {
	_ = root.Load().logger.Sync()
}

// HandlePanic catches panics and logs them. The process exits after logging.
// It must be deferred at the top of every goroutine.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.Load().logger.Error("Panic", zap.Any("msg", msg),
			zap.String("stack", string(debug.Stack())))
		Flush()
		fmt.Fprintf(os.Stderr, "panic: %v\n", msg)
		os.Exit(255)
	}
}

// Root returns the root logger. It's a logger without any context.
func Root() Logger {
	return root.Load()
}

// New creates a logger with the given context.
func New(ctx ...any) Logger {
	return root.Load().New(ctx...)
}

// Debug logs at debug level.
func Debug(msg string, ctx ...any) {
	root.Load().Debug(msg, ctx...)
}

// Info logs at info level.
func Info(msg string, ctx ...any) {
	root.Load().Info(msg, ctx...)
}

// Error logs at error level.
func Error(msg string, ctx ...any) {
	root.Load().Error(msg, ctx...)
}

// FromZap wraps a zap logger. It is meant for tests and embedding; services
// use Setup and the package level logger.
func FromZap(z *zap.Logger) Logger {
	return &logger{logger: z}
}

type logger struct {
	logger *zap.Logger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(zapcore.Level(lvl))
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	return fields
}
