package telemetry

import (
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include full SQL in spans; security risk outside development
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wires otelgorm into a GORM instance and annotates spans
// with row counts, table names, errors and slow-query events.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the otelgorm plugin and the span-annotation callbacks.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		db.Set(queryStartTimeKey, time.Now())
	}

	type hook struct {
		register func(string, func(*gorm.DB)) error
		name     string
		fn       func(*gorm.DB)
	}
	hooks := []hook{
		{db.Callback().Create().Before("gorm:create").Register, "otel_timing:before_create", before},
		{db.Callback().Query().Before("gorm:query").Register, "otel_timing:before_query", before},
		{db.Callback().Update().Before("gorm:update").Register, "otel_timing:before_update", before},
		{db.Callback().Delete().Before("gorm:delete").Register, "otel_timing:before_delete", before},
		{db.Callback().Raw().Before("gorm:raw").Register, "otel_timing:before_raw", before},
		{db.Callback().Create().After("gorm:create").Register, "otel_annotate:after_create", p.annotateSpan},
		{db.Callback().Query().After("gorm:query").Register, "otel_annotate:after_query", p.annotateSpan},
		{db.Callback().Update().After("gorm:update").Register, "otel_annotate:after_update", p.annotateSpan},
		{db.Callback().Delete().After("gorm:delete").Register, "otel_annotate:after_delete", p.annotateSpan},
		{db.Callback().Raw().After("gorm:raw").Register, "otel_annotate:after_raw", p.annotateSpan},
	}
	for _, h := range hooks {
		if err := h.register(h.name, h.fn); err != nil {
			return err
		}
	}
	return nil
}

// annotateSpan runs after each operation, enriching the otelgorm span.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if v, ok := db.Get(queryStartTimeKey); ok {
		if startTime, ok := v.(time.Time); ok {
			elapsed := time.Since(startTime)
			if elapsed > p.config.SlowQueryThresh {
				span.AddEvent("slow_query_warning", trace.WithAttributes(
					attribute.Int64("duration_ms", elapsed.Milliseconds()),
					attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
				))
			}
		}
	}
}

const queryStartTimeKey = "otel_query_start_time"
