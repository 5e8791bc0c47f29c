package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func newTracedDB(t *testing.T, cfg DBTracingConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Use(NewDBTracingPlugin(cfg, nil)))
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDBTracingPlugin_Defaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{}, nil)
	assert.Equal(t, "ledger:db_tracing", p.Name())
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := newTracedDB(t, DBTracingConfig{})
	assert.Nil(t, db.Callback().Query().Get("ledger_trace:after_query"))
}

func TestDBTracingPlugin_RecordsQuerySpans(t *testing.T) {
	recorder := installRecorder(t)
	db := newTracedDB(t, DBTracingConfig{Enabled: true, DBSystem: "sqlite"})
	assert.NotNil(t, db.Callback().Query().Get("ledger_trace:after_query"))

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{ID: "a", Name: "cash"}).Error)
	span.End()

	assert.Greater(t, len(recorder.Ended()), 1, "otelgorm emits a child span per statement")
}

func TestDBTracingPlugin_AfterMarksSlowAndFailed(t *testing.T) {
	recorder := installRecorder(t)
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, nil)

	ctx, span := otel.Tracer("test").Start(context.Background(), "gorm.Query")
	ctx = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-time.Second))

	db := &gorm.DB{Config: &gorm.Config{}, RowsAffected: 3}
	db.Statement = &gorm.Statement{DB: db, Context: ctx, Table: "ledger_entries"}
	db.Error = errors.New("relation does not exist")
	p.after(db)
	span.End()

	got := recorder.Ended()[0]
	attrs := attrMap(got.Attributes())
	assert.Equal(t, "ledger_entries", attrs["db.sql.table"].AsString())
	assert.Equal(t, int64(3), attrs["db.rows_affected"].AsInt64())
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.Equal(t, codes.Error, got.Status().Code)
}

func TestDBTracingPlugin_AfterIgnoresNotFound(t *testing.T) {
	recorder := installRecorder(t)
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)

	ctx, span := otel.Tracer("test").Start(context.Background(), "gorm.Query")
	db := &gorm.DB{Config: &gorm.Config{}}
	db.Statement = &gorm.Statement{DB: db, Context: ctx}
	db.Error = gorm.ErrRecordNotFound
	p.after(db)
	span.End()

	got := recorder.Ended()[0]
	assert.NotEqual(t, codes.Error, got.Status().Code)
	_, slow := attrMap(got.Attributes())["db.slow_query"]
	assert.False(t, slow)
}
