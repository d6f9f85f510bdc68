package xzap

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	once   sync.Once
	global *zap.Logger
)

// SetUp builds the process-wide logger. Safe to call more than once; only the
// first call wins.
func SetUp(level string, development bool) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
		} else {
			cfg = zap.NewProductionConfig()
		}
		lv := zapcore.InfoLevel
		if level != "" {
			if e := lv.Set(level); e != nil {
				err = e
				return
			}
		}
		cfg.Level = zap.NewAtomicLevelAt(lv)
		global, err = cfg.Build(zap.AddCallerSkip(1))
	})
	if err != nil {
		return nil, err
	}
	return global, nil
}

func logger() *zap.Logger {
	if global == nil {
		global, _ = zap.NewProduction(zap.AddCallerSkip(1))
	}
	return global
}

// NewContext stashes extra fields in ctx so downstream log calls carry them.
func NewContext(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, fields)
}

type CtxLogger struct {
	l *zap.Logger
}

// WithContext returns a logger enriched with any fields stashed in ctx.
func WithContext(ctx context.Context) *CtxLogger {
	l := logger()
	if ctx != nil {
		if fields, ok := ctx.Value(ctxKey{}).([]zap.Field); ok {
			l = l.With(fields...)
		}
	}
	return &CtxLogger{l: l}
}

func (c *CtxLogger) Debug(msg string, fields ...zap.Field) { c.l.Debug(msg, fields...) }
func (c *CtxLogger) Info(msg string, fields ...zap.Field)  { c.l.Info(msg, fields...) }
func (c *CtxLogger) Warn(msg string, fields ...zap.Field)  { c.l.Warn(msg, fields...) }
func (c *CtxLogger) Error(msg string, fields ...zap.Field) { c.l.Error(msg, fields...) }
