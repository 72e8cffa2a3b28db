package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// PoolStats counts connection pool events. All methods are safe for concurrent use.
type PoolStats struct {
	opened      atomic.Int64
	reused      atomic.Int64
	reuseFailed atomic.Int64
	discarded   atomic.Int64
	brokenPipes atomic.Int64
	requests    atomic.Int64
	bytesIn     atomic.Int64
	bytesOut    atomic.Int64
	inFlight    atomic.Int64

	lastBytesIn  int64
	lastBytesOut int64
	lastTime     time.Time
	speedMu      sync.Mutex
	speedIn      int64
	speedOut     int64

	startTime time.Time
}

func NewPoolStats() *PoolStats {
	now := time.Now()
	return &PoolStats{
		startTime: now,
		lastTime:  now,
	}
}

func (s *PoolStats) AddBytesIn(n int64) { s.bytesIn.Add(n) }
func (s *PoolStats) AddBytesOut(n int64) { s.bytesOut.Add(n) }

func (s *PoolStats) ConnOpened() { s.opened.Add(1) }
func (s *PoolStats) ConnReused() { s.reused.Add(1) }
func (s *PoolStats) ReuseFailed() { s.reuseFailed.Add(1) }
func (s *PoolStats) ConnDiscarded() { s.discarded.Add(1) }
func (s *PoolStats) BrokenPipe() { s.brokenPipes.Add(1) }

// RequestStarted counts a dispatched request and marks it in flight until RequestDone.
func (s *PoolStats) RequestStarted() {
	s.requests.Add(1)
	s.inFlight.Add(1)
}

func (s *PoolStats) RequestDone() {
	for {
		old := s.inFlight.Load()
		if old <= 0 {
			return
		}
		if s.inFlight.CompareAndSwap(old, old-1) {
			return
		}
	}
}

// UpdateSpeed recomputes transfer rates from the byte counters. Calls closer
// than 100ms apart are ignored.
func (s *PoolStats) UpdateSpeed() {
	s.speedMu.Lock()
	defer s.speedMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.1 {
		return
	}

	currentIn := s.bytesIn.Load()
	currentOut := s.bytesOut.Load()

	s.speedIn = max(0, int64(float64(currentIn-s.lastBytesIn)/elapsed))
	s.speedOut = max(0, int64(float64(currentOut-s.lastBytesOut)/elapsed))

	s.lastBytesIn = currentIn
	s.lastBytesOut = currentOut
	s.lastTime = now
}

type Snapshot struct {
	Opened      int64         `json:"opened"`
	Reused      int64         `json:"reused"`
	ReuseFailed int64         `json:"reuse_failed"`
	Discarded   int64         `json:"discarded"`
	BrokenPipes int64         `json:"broken_pipes"`
	Requests    int64         `json:"requests"`
	InFlight    int64         `json:"in_flight"`
	BytesIn     int64         `json:"bytes_in"`
	BytesOut    int64         `json:"bytes_out"`
	SpeedIn     int64         `json:"speed_in"`
	SpeedOut    int64         `json:"speed_out"`
	Uptime      time.Duration `json:"uptime"`
}

// ReuseRatio is the share of requests served on a connection that was already open.
func (s Snapshot) ReuseRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Reused) / float64(s.Requests)
}

func (s *PoolStats) Snapshot() Snapshot {
	s.speedMu.Lock()
	speedIn := s.speedIn
	speedOut := s.speedOut
	s.speedMu.Unlock()

	return Snapshot{
		Opened:      s.opened.Load(),
		Reused:      s.reused.Load(),
		ReuseFailed: s.reuseFailed.Load(),
		Discarded:   s.discarded.Load(),
		BrokenPipes: s.brokenPipes.Load(),
		Requests:    s.requests.Load(),
		InFlight:    s.inFlight.Load(),
		BytesIn:     s.bytesIn.Load(),
		BytesOut:    s.bytesOut.Load(),
		SpeedIn:     speedIn,
		SpeedOut:    speedOut,
		Uptime:      time.Since(s.startTime),
	}
}
