package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherMetricsConnectionLifecycle(t *testing.T) {
	m := NewDispatcherMetrics()
	m.AddConnection()
	m.AddConnection()
	m.RemoveConnection()

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalConnections)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Equal(t, int64(2), snap.PeakConnections)
}

func TestDispatcherMetricsCounters(t *testing.T) {
	m := NewDispatcherMetrics()
	m.AddBytesSent(100)
	m.AddBytesReceived(50)
	m.AddSegmentSent()
	m.AddRetransmission()
	m.AddFastRetransmission()

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(100), snap.TotalBytesSent)
	assert.Equal(t, uint64(50), snap.TotalBytesReceived)
	assert.Equal(t, uint64(1), snap.TotalSegmentsSent)
	assert.Equal(t, uint64(1), snap.TotalRetransmissions)
	assert.Equal(t, uint64(1), snap.TotalFastRetransmissions)
}

func TestTransferMetricsEfficiency(t *testing.T) {
	tm := NewTransferMetrics(1000, 10)
	tm.RecordProgress(1000, 10)
	assert.Equal(t, 1.0, tm.Efficiency())

	tm.AddRetransmission()
	assert.Less(t, tm.Efficiency(), 1.0)
}
