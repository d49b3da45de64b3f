package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL includes query variables in spans (development only)
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
	// TracerProvider overrides the global provider; used by tests
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns default configuration
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "stocksync",
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// RegisterDBTracing installs the otelgorm plugin plus callbacks that flag
// slow statements on the statement span. The slow-query check must run
// before otelgorm ends the span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}
	after := func(db *gorm.DB) {
		annotateSlowQuery(db, cfg.SlowQueryThresh)
	}

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"create", errors.Join(
			cb.Create().Before("gorm:create").Register("otel_timing:before_create", before),
			cb.Create().After("gorm:create").Before("otel:after:create").Register("otel_slow_query:create", after))},
		{"query", errors.Join(
			cb.Query().Before("gorm:query").Register("otel_timing:before_query", before),
			cb.Query().After("gorm:query").Before("otel:after:query").Register("otel_slow_query:query", after))},
		{"update", errors.Join(
			cb.Update().Before("gorm:update").Register("otel_timing:before_update", before),
			cb.Update().After("gorm:update").Before("otel:after:update").Register("otel_slow_query:update", after))},
		{"delete", errors.Join(
			cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", before),
			cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("otel_slow_query:delete", after))},
		{"raw", errors.Join(
			cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", before),
			cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("otel_slow_query:raw", after))},
	}
	for _, r := range registrations {
		if r.err != nil {
			return r.err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func annotateSlowQuery(db *gorm.DB, threshold time.Duration) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if elapsed := time.Since(startTime); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
		))
	}
}
