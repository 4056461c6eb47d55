// Package quality samples live peer connection statistics and recommends
// video parameters. It runs on the participant's side against the same peer
// connection the signaling relay helped establish; nothing here talks to
// the coordination server.
package quality

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the sampling period between statistics snapshots.
const DefaultInterval = 5 * time.Second

// StatsSource yields a statistics snapshot of the live peer connection.
// *webrtc.PeerConnection is adapted via PeerConnectionSource.
type StatsSource interface {
	GetStats(ctx context.Context) (webrtc.StatsReport, error)
}

type peerConnectionSource struct {
	pc *webrtc.PeerConnection
}

func (s peerConnectionSource) GetStats(ctx context.Context) (webrtc.StatsReport, error) {
	return s.pc.GetStats(), nil
}

// PeerConnectionSource adapts a pion peer connection to StatsSource.
func PeerConnectionSource(pc *webrtc.PeerConnection) StatsSource {
	return peerConnectionSource{pc: pc}
}

// Sample is one point-in-time measurement. It is consumed immediately to
// pick a video profile and never persisted.
type Sample struct {
	BandwidthMbps     float64      `json:"bandwidthMbps"`
	LatencyMs         float64      `json:"latencyMs"`
	PacketLossPercent float64      `json:"packetLossPercent"`
	Grade             Grade        `json:"grade"`
	Profile           VideoProfile `json:"profile"`
	Timestamp         time.Time    `json:"timestamp"`
}

// counters holds the cumulative totals read from one snapshot. Bandwidth
// and loss are derived from the difference between consecutive snapshots,
// not from the lifetime totals, so they reflect current throughput.
type counters struct {
	bytesReceived   uint64
	bytesSent       uint64
	packetsReceived uint32
	packetsLost     int32
	at              time.Time
}

// Monitor periodically samples a StatsSource and reports graded
// measurements through the OnSample callback.
type Monitor struct {
	source   StatsSource
	interval time.Duration
	onSample func(Sample)
	now      func() time.Time

	mu      sync.Mutex
	prev    *counters
	started bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. A non-positive interval falls back to
// DefaultInterval; onSample may be nil.
func NewMonitor(source StatsSource, interval time.Duration, onSample func(Sample)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		source:   source,
		interval: interval,
		onSample: onSample,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins sampling on the monitor's interval. Calling Start twice has
// no effect. The first tick only establishes the delta baseline and emits
// no sample.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.run()
	log.Debug().Dur("interval", m.interval).Msg("network quality monitor started")
}

// Stop cancels sampling. It is idempotent and safe to call concurrently
// with an in-flight tick: that tick completes harmlessly and no further
// callback fires afterwards.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		log.Debug().Msg("network quality monitor stopped")
	})
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.tick(context.Background())
		}
	}
}

// tick reads one snapshot and, when a baseline exists, emits a sample. A
// failed stats read is logged and skipped; it never stops the monitor.
func (m *Monitor) tick(ctx context.Context) {
	report, err := m.source.GetStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("stats read failed, skipping sample")
		return
	}

	cur, rttSeconds := aggregate(report)
	cur.at = m.now()

	m.mu.Lock()
	prev := m.prev
	m.prev = &cur
	m.mu.Unlock()

	if prev == nil {
		return
	}

	sample := measure(prev, &cur, rttSeconds)

	select {
	case <-m.done:
		// Stopped while this tick was in flight; discard.
		return
	default:
	}

	if m.onSample != nil {
		m.onSample(sample)
	}
}

// aggregate sums the video RTP counters and picks the active candidate
// pair's round-trip time out of one stats snapshot.
func aggregate(report webrtc.StatsReport) (counters, float64) {
	var cur counters
	var rttSeconds float64

	for _, entry := range report {
		switch stats := entry.(type) {
		case webrtc.InboundRTPStreamStats:
			if stats.Kind == "video" {
				cur.bytesReceived += stats.BytesReceived
				cur.packetsReceived += stats.PacketsReceived
				cur.packetsLost += stats.PacketsLost
			}
		case webrtc.OutboundRTPStreamStats:
			if stats.Kind == "video" {
				cur.bytesSent += stats.BytesSent
			}
		case webrtc.ICECandidatePairStats:
			if stats.State == webrtc.StatsICECandidatePairStateSucceeded && stats.CurrentRoundTripTime > 0 {
				rttSeconds = stats.CurrentRoundTripTime
			}
		}
	}

	return cur, rttSeconds
}

// measure derives the windowed rates between two consecutive snapshots.
func measure(prev, cur *counters, rttSeconds float64) Sample {
	elapsed := cur.at.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	deltaBytes := float64(0)
	if cur.bytesReceived >= prev.bytesReceived {
		deltaBytes = float64(cur.bytesReceived - prev.bytesReceived)
	}
	bandwidthMbps := deltaBytes * 8 / elapsed / 1e6

	deltaReceived := int64(cur.packetsReceived) - int64(prev.packetsReceived)
	deltaLost := int64(cur.packetsLost) - int64(prev.packetsLost)
	if deltaReceived < 0 {
		deltaReceived = 0
	}
	if deltaLost < 0 {
		deltaLost = 0
	}

	lossPercent := 0.0
	if deltaReceived+deltaLost > 0 {
		lossPercent = float64(deltaLost) / float64(deltaReceived+deltaLost) * 100
	}

	latencyMs := rttSeconds * 1000

	grade := Classify(bandwidthMbps, latencyMs, lossPercent)
	return Sample{
		BandwidthMbps:     bandwidthMbps,
		LatencyMs:         latencyMs,
		PacketLossPercent: lossPercent,
		Grade:             grade,
		Profile:           ProfileFor(grade),
		Timestamp:         cur.at,
	}
}
