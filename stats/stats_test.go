package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "counter", Counter.String())
	assert.Equal(t, "gauge", Gauge.String())
	assert.Equal(t, "timer", Timer.String())
	assert.Equal(t, "unknown", MetricType(42).String())
}

func TestRegistryGetOrNew(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := r.GetOrNew("typecheck.slow_path.started", Counter)
	assert.Equal(t, "typecheck.slow_path.started", a.Name)
	assert.Equal(t, Counter, a.Type)

	// Same name returns the same series, even with a different type.
	assert.Same(t, a, r.GetOrNew("typecheck.slow_path.started", Counter))
	assert.Same(t, a, r.GetOrNew("typecheck.slow_path.started", Gauge))

	b := r.GetOrNew("typecheck.fast_path.count", Counter)
	assert.NotSame(t, a, b)
}
