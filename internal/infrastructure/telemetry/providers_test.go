package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_NothingExported(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, Settings{ServiceName: "test", SamplingRatio: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())

	p.EnableSpanProfiles()
	assert.False(t, p.SpanProfilesEnabled())

	m, err := NewIntegrityMetrics(p.Meter(MeterName), nil)
	require.NoError(t, err)
	m.RecordCacheLookup(ctx, true)

	base := zap.NewNop()
	assert.Same(t, base, p.Bridge(base, zapcore.InfoLevel))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestSetup_ExportersAreLazy(t *testing.T) {
	// gRPC exporters connect on first export, so an unreachable collector
	// still yields working providers
	ctx := context.Background()
	p, err := Setup(ctx, Settings{
		ServiceName:   "ledger-test",
		Collector:     "127.0.0.1:1",
		Insecure:      true,
		Traces:        true,
		SamplingRatio: 0.5,
		Metrics:       true,
		Logs:          true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})

	assert.True(t, p.TracingEnabled())
	assert.True(t, p.MetricsEnabled())
	assert.True(t, p.LogsEnabled())
	base := zap.NewNop()
	assert.NotSame(t, base, p.Bridge(base, zapcore.WarnLevel))

	p.EnableSpanProfiles()
	p.EnableSpanProfiles()
	assert.True(t, p.SpanProfilesEnabled())

	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{ServerAddress: "http://localhost:4040"}, nil)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "ledger"}, nil)
	assert.Error(t, err)

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, nil)
	assert.Error(t, err)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestMinLevelCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: inner, min: zapcore.WarnLevel}
	logger := zap.New(core).With(zap.String("owner_id", "owner-a"))

	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "owner-a", entry.ContextMap()["owner_id"])
}

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Validator":  "balances",
		"owner_id":   "owner-a",
		"request-id": "r-1",
		"route":      "",
		"Op Name":    string(make([]byte, MaxLabelValueLength+10)),
	})
	require.Len(t, pairs, 4)
	assert.Equal(t, "op_name", pairs[0])
	assert.Len(t, pairs[1], MaxLabelValueLength)
	assert.Equal(t, []string{"validator", "balances"}, pairs[2:])
}

func TestProfileValidator(t *testing.T) {
	ran := false
	ProfileValidator(context.Background(), "fields", func(context.Context) { ran = true })
	assert.True(t, ran)

	ran = false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { ran = true })
	assert.True(t, ran)
}
