// Package metrics tracks dispatcher-wide and per-transfer counters for the
// monitor GUI and for diagnostics. Adapted from the teacher's
// ServerMetrics/TransferMetrics, generalized from a single-server-process
// model to a per-dispatcher one and extended with a FastRetransmissions
// counter the protocol's ack-gap-triggered retransmission needs that the
// teacher's NACK-only model had no equivalent of.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionPoint is one sample in the active-connection-count history.
type ConnectionPoint struct {
	Timestamp time.Time
	Count     int64
}

// DispatcherMetrics aggregates counters across every connection a single
// dispatcher manages.
type DispatcherMetrics struct {
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64

	TotalBytesSent     atomic.Uint64
	TotalBytesReceived atomic.Uint64

	TotalSegmentsSent     atomic.Uint64
	TotalSegmentsReceived atomic.Uint64

	TotalErrors              atomic.Uint64
	TotalTimeouts            atomic.Uint64
	TotalRetransmissions     atomic.Uint64
	TotalFastRetransmissions atomic.Uint64

	StartTime time.Time

	historyMu sync.Mutex
	history   []ConnectionPoint

	peakMu          sync.Mutex
	peakConnections int64
}

// NewDispatcherMetrics returns a zeroed metrics set with StartTime set now.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{StartTime: time.Now()}
}

// AddConnection records a new connection starting, updating the active
// gauge, the running total, the history ring, and the peak tracker.
func (m *DispatcherMetrics) AddConnection() {
	m.TotalConnections.Add(1)
	active := m.ActiveConnections.Add(1)
	m.recordConnectionCount(active)

	m.peakMu.Lock()
	if active > m.peakConnections {
		m.peakConnections = active
	}
	m.peakMu.Unlock()
}

// RemoveConnection records a connection finishing.
func (m *DispatcherMetrics) RemoveConnection() {
	active := m.ActiveConnections.Add(-1)
	m.recordConnectionCount(active)
}

func (m *DispatcherMetrics) recordConnectionCount(count int64) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = append(m.history, ConnectionPoint{Timestamp: time.Now(), Count: count})
	if len(m.history) > 1000 {
		m.history = m.history[len(m.history)-500:]
	}
}

func (m *DispatcherMetrics) AddBytesSent(n uint64)     { m.TotalBytesSent.Add(n) }
func (m *DispatcherMetrics) AddBytesReceived(n uint64) { m.TotalBytesReceived.Add(n) }
func (m *DispatcherMetrics) AddSegmentSent()           { m.TotalSegmentsSent.Add(1) }
func (m *DispatcherMetrics) AddSegmentReceived()       { m.TotalSegmentsReceived.Add(1) }
func (m *DispatcherMetrics) AddError()                 { m.TotalErrors.Add(1) }
func (m *DispatcherMetrics) AddTimeout()               { m.TotalTimeouts.Add(1) }
func (m *DispatcherMetrics) AddRetransmission()        { m.TotalRetransmissions.Add(1) }
func (m *DispatcherMetrics) AddFastRetransmission()    { m.TotalFastRetransmissions.Add(1) }

// Snapshot is an immutable copy of DispatcherMetrics suitable for display.
type Snapshot struct {
	TotalConnections         int64
	ActiveConnections        int64
	PeakConnections          int64
	TotalBytesSent           uint64
	TotalBytesReceived       uint64
	TotalSegmentsSent        uint64
	TotalSegmentsReceived    uint64
	TotalErrors              uint64
	TotalTimeouts            uint64
	TotalRetransmissions     uint64
	TotalFastRetransmissions uint64
	Uptime                   time.Duration
	History                  []ConnectionPoint
}

// GetSnapshot returns a point-in-time copy of every counter.
func (m *DispatcherMetrics) GetSnapshot() Snapshot {
	m.historyMu.Lock()
	history := make([]ConnectionPoint, len(m.history))
	copy(history, m.history)
	m.historyMu.Unlock()

	m.peakMu.Lock()
	peak := m.peakConnections
	m.peakMu.Unlock()

	return Snapshot{
		TotalConnections:         m.TotalConnections.Load(),
		ActiveConnections:        m.ActiveConnections.Load(),
		PeakConnections:          peak,
		TotalBytesSent:           m.TotalBytesSent.Load(),
		TotalBytesReceived:       m.TotalBytesReceived.Load(),
		TotalSegmentsSent:        m.TotalSegmentsSent.Load(),
		TotalSegmentsReceived:    m.TotalSegmentsReceived.Load(),
		TotalErrors:              m.TotalErrors.Load(),
		TotalTimeouts:            m.TotalTimeouts.Load(),
		TotalRetransmissions:     m.TotalRetransmissions.Load(),
		TotalFastRetransmissions: m.TotalFastRetransmissions.Load(),
		Uptime:                   time.Since(m.StartTime),
		History:                  history,
	}
}

// SpeedPoint is one sample in a TransferMetrics speed history.
type SpeedPoint struct {
	Timestamp time.Time
	Speed     float64 // bytes/sec
}

// TransferMetrics tracks a single file transfer's progress. Kept close to
// the teacher's TransferMetrics shape. No connection or monitor view in
// this repository creates one.
type TransferMetrics struct {
	mu sync.RWMutex

	BytesTotal      uint64
	BytesDone       uint64
	SegmentsTotal   uint64
	SegmentsDone    uint64
	Retransmissions uint64

	StartTime time.Time
	EndTime   time.Time

	PeakSpeed    float64
	SpeedHistory []SpeedPoint

	lastUpdate time.Time
	lastBytes  uint64
}

// NewTransferMetrics starts tracking a transfer of the given total size.
func NewTransferMetrics(bytesTotal uint64, segmentsTotal uint64) *TransferMetrics {
	now := time.Now()
	return &TransferMetrics{
		BytesTotal:    bytesTotal,
		SegmentsTotal: segmentsTotal,
		StartTime:     now,
		lastUpdate:    now,
	}
}

// RecordProgress updates the completed byte/segment counts and appends a
// speed sample if enough time has elapsed since the last one.
func (m *TransferMetrics) RecordProgress(bytesDone, segmentsDone uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BytesDone = bytesDone
	m.SegmentsDone = segmentsDone

	now := time.Now()
	elapsed := now.Sub(m.lastUpdate)
	if elapsed < 100*time.Millisecond {
		return
	}

	speed := float64(bytesDone-m.lastBytes) / elapsed.Seconds()
	m.lastUpdate = now
	m.lastBytes = bytesDone

	if speed > m.PeakSpeed {
		m.PeakSpeed = speed
	}

	m.SpeedHistory = append(m.SpeedHistory, SpeedPoint{Timestamp: now, Speed: speed})
	if len(m.SpeedHistory) > 1000 {
		m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-500:]
	}
}

// AddRetransmission records one retransmitted segment.
func (m *TransferMetrics) AddRetransmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retransmissions++
}

// Finish marks the transfer complete.
func (m *TransferMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Efficiency returns the fraction of segments sent that were not
// retransmissions, 1.0 meaning no loss at all.
func (m *TransferMetrics) Efficiency() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.SegmentsDone == 0 {
		return 0
	}
	sent := m.SegmentsDone + m.Retransmissions
	if sent == 0 {
		return 0
	}
	return float64(m.SegmentsDone) / float64(sent)
}
