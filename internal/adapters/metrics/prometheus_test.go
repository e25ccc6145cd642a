package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}

func TestCollectors(t *testing.T) {
	counter := TasksTotal.WithLabelValues("completed")
	before := value(t, counter)
	counter.Inc()
	assert.Equal(t, before+1, value(t, counter))

	ForksActive.Set(3)
	assert.Equal(t, 3.0, value(t, ForksActive))
	ForksActive.Set(0)
}
