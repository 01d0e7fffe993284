// Package qqplog builds the structured loggers used by the pipeline binaries.
package qqplog

import (
	"io"
	"os"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger with datetime and caller information that writes
// error and above to stderr and everything else to stdout.
func New(level string) (*zap.Logger, error) {
	return NewWithWriters(os.Stdout, os.Stderr, level)
}

// NewWithWriters is New with explicit destinations.
func NewWithWriters(out, errOut io.Writer, level string) (*zap.Logger, error) {
	var threshold zapcore.Level
	if level != "" {
		if err := threshold.UnmarshalText([]byte(level)); err != nil {
			return nil, errors.Kindf(errors.Configuration, "unknown log level %q", level)
		}
	}

	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= threshold
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= threshold
	})

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewJSONEncoder(config)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(errOut)), isErrorLevel),
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), isInfoLevel),
	)
	return zap.New(core, zap.AddCaller()), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
