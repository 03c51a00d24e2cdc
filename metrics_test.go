package seoconsole

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/eringen/seoconsole/validate"
)

func TestObserveValidation(t *testing.T) {
	m := NewMetrics()
	m.ObserveValidation("html", time.Now(), false, []validate.Issue{
		{Severity: validate.SeverityCritical},
		{Severity: validate.SeverityWarning},
		{Severity: validate.SeverityWarning},
	})
	m.ObserveValidation("html", time.Now(), true, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("html", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("html", "valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.issues.WithLabelValues("html", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issues.WithLabelValues("html", "critical")))
}

func TestObserveImport(t *testing.T) {
	m := NewMetrics()
	m.ObserveImport("file", nil)
	m.ObserveImport("file", errors.New("boom"))
	m.ObserveImport("file", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.imports.WithLabelValues("file", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imports.WithLabelValues("file", "failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveValidation("image", time.Now(), true, nil)
		m.ObserveImport("bulk", nil)
	})
}
