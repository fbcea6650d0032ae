package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistryIsSingleton(t *testing.T) {
	a := Registry("hooka")
	b := Registry("ignored")
	assert.Same(t, a, b)
}

func TestObserveTask(t *testing.T) {
	m := Registry("hooka")
	m.ObserveTask("cost-log", nil)
	m.ObserveTask("cost-log", errors.New("db down"))
	m.ObserveTask("cost-log", errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues("cost-log", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues("cost-log", "error")))
}
