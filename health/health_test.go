package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorStartsHealthy(t *testing.T) {
	assert.True(t, NewMonitor().IsHealthy())
}

func TestReportFatalMarksUnhealthy(t *testing.T) {
	m := NewMonitor()
	m.ReportFatal(errors.New("storage pool exhausted"))
	assert.False(t, m.IsHealthy())
}

func TestReportFatalNilIsNoop(t *testing.T) {
	m := NewMonitor()
	m.ReportFatal(nil)
	assert.True(t, m.IsHealthy())
}

func TestReportFatalDedupesRepeatedMessage(t *testing.T) {
	m := NewMonitor()
	m.ReportFatal(errors.New("device read timeout"))
	m.ReportFatal(errors.New("device read timeout"))
	assert.False(t, m.IsHealthy())
	assert.Len(t, m.seen, 1)
}
