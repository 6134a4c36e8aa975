package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/pos-backend/pkg/logger"
)

// gormLogger routes gorm's trace hook into the service logger. Only slow
// statements and real failures are written; record-not-found is expected
// traffic for lookups and stays quiet.
type gormLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newGormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &gormLogger{logg: logg, slow: slow}
}

func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *gormLogger) Info(ctx context.Context, msg string, _ ...any) { g.logg.Debug(ctx, msg) }

func (g *gormLogger) Warn(ctx context.Context, msg string, _ ...any) { g.logg.Warn(ctx, msg) }

func (g *gormLogger) Error(ctx context.Context, msg string, _ ...any) {
	g.logg.Error(ctx, msg, nil)
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	took := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	isSlow := g.slow > 0 && took >= g.slow
	if !failed && !isSlow {
		return
	}
	sql, rows := fc()
	fields := g.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": took.Milliseconds(),
	})
	if failed {
		g.logg.Warn(g.logg.WithField(fields, "db_error", err.Error()), "db.query.failed")
		return
	}
	g.logg.Warn(fields, "db.query.slow")
}
