package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/TravBots/hammer-tracker/config"
)

type stubExporter struct {
	shutdowns int
}

func (e *stubExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (e *stubExporter) Shutdown(context.Context) error {
	e.shutdowns++
	return nil
}

func stubTracing(t *testing.T, exp *stubExporter, resErr error) {
	t.Helper()

	prevExporter, prevResource := newExporter, newResource
	t.Cleanup(func() { newExporter, newResource = prevExporter, prevResource })

	newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return exp, nil
	}

	if resErr != nil {
		newResource = func(context.Context, string) (*resource.Resource, error) {
			return nil, resErr
		}
	}
}

func TestInitTracingReleasesExporterWhenResourceFails(t *testing.T) {
	exp := &stubExporter{}
	stubTracing(t, exp, errors.New("conflicting schema url"))

	_, err := InitTracing(context.Background(), config.TracingConfig{OTLPEndpoint: "localhost:4317", Insecure: true}, "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build otel resource")
	assert.Equal(t, 1, exp.shutdowns)
}

func TestInitTracingShutdownFlushesExporter(t *testing.T) {
	exp := &stubExporter{}
	stubTracing(t, exp, nil)

	shutdown, err := InitTracing(context.Background(), config.TracingConfig{OTLPEndpoint: "localhost:4317", SampleRatio: 1}, "test")
	require.NoError(t, err)

	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, 1, exp.shutdowns)
}
