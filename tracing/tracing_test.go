package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/conf"
)

func TestDisabled(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(context.Background(), conf.Trace{}, "subscribe")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestUnknownExporter(t *testing.T) {
	_, shutdown, err := NewTracerProvider(context.Background(), conf.Trace{Exporter: "jaeger"}, "subscribe")
	assert.ErrorIs(t, err, ErrUnknownExporter)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := NewTracerProvider(context.Background(),
		conf.Trace{Exporter: ExporterStdout, SampleRatio: 1}, "subscribe", WithStdoutWriter(&buf))
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "supervisor.restart")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "supervisor.restart")
	assert.Contains(t, buf.String(), "subscribe")
}
