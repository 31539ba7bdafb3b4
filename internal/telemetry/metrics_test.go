package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectedNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestMetricsRecordAllInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m, err := InitMetrics()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RecordRequest(ctx, "POST", "/api/documents", 200)
	m.RecordRequest(ctx, "GET", "/api/documents/:id", 404)
	m.RecordIngest(ctx, 1.5, "completed")
	m.RecordTokens(ctx, 321)
	m.RecordBreakerChange(ctx, "GeminiAPI", "closed", "open")

	byName := collectedNames(t, reader)
	for _, name := range []string{
		"http.requests.total",
		"document.ingest.duration",
		"gemini.tokens.used",
		"circuit_breaker.state_changes",
	} {
		if _, ok := byName[name]; !ok {
			t.Errorf("instrument %q recorded nothing", name)
		}
	}

	tokens, ok := byName["gemini.tokens.used"].Data.(metricdata.Sum[int64])
	if !ok || len(tokens.DataPoints) == 0 {
		t.Fatalf("token counter has no data points: %#v", byName["gemini.tokens.used"].Data)
	}
	if got := tokens.DataPoints[0].Value; got != 321 {
		t.Fatalf("token counter = %d, want 321", got)
	}

	requests, ok := byName["http.requests.total"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("request counter has unexpected data type")
	}
	var total int64
	for _, dp := range requests.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("request counter = %d, want 2", total)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRequest(ctx, "GET", "/health", 200)
	m.RecordIngest(ctx, 0.1, "failed")
	m.RecordTokens(ctx, 10)
	m.RecordBreakerChange(ctx, "GeminiAPI", "open", "half-open")
}
