package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer("parallelproof-test", &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "agent.optimize")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "agent.optimize")
}

func TestInitTracer_NilWriterIsNoop(t *testing.T) {
	shutdown, err := InitTracer("parallelproof-test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
