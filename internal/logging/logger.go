// Package logging builds the process zap logger and adapts it to the
// core.Logger hook.
package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rentcore/internal/core"
)

// New builds a logger: structured JSON with ISO8601 timestamps in
// production, colourised console output otherwise. Unknown levels fall back
// to info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(lvl)

	return cfg.Build()
}

// Init builds the logger, installs it as the zap global and returns it.
func Init(env, level string) (*zap.Logger, error) {
	log, err := New(env, level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	log.Debug("logger initialized", zap.String("level", log.Level().String()))
	return log, nil
}

// Adapter exposes a zap logger through core.Logger.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = Adapter{}

// NewAdapter wraps log. A nil logger uses the zap global.
func NewAdapter(log *zap.Logger) Adapter {
	if log == nil {
		log = zap.L()
	}
	return Adapter{sugar: log.Sugar()}
}

func (a Adapter) Debug(msg string, keyvals ...any) { a.sugar.Debugw(msg, keyvals...) }
func (a Adapter) Info(msg string, keyvals ...any)  { a.sugar.Infow(msg, keyvals...) }
func (a Adapter) Warn(msg string, keyvals ...any)  { a.sugar.Warnw(msg, keyvals...) }
func (a Adapter) Error(msg string, keyvals ...any) { a.sugar.Errorw(msg, keyvals...) }

type ctxKey struct{}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or the zap global.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && log != nil {
			return log
		}
	}
	return zap.L()
}
