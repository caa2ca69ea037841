package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTracer(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "true")

	tracer, err := GetTracer("odo-test")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	again, err := GetTracer("odo-test")
	require.NoError(t, err)
	require.Equal(t, tracer, again)

	require.NoError(t, CloseAll())
	require.Len(t, tracers.tracers, 0)

	t.Setenv("JAEGER_SAMPLER_PARAM", "abc")

	_, err = GetTracer("odo-bad")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse jaeger configuration: ")
}
