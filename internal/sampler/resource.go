package sampler

import "sync"

// resourceRingCapacity is the ring size for RSS snapshots (spec §3/§4.4).
const resourceRingCapacity = 100

// ResourceReader is the platform primitive; Linux reads
// /proc/self/status VmRSS.
type ResourceReader interface {
	// ReadRSSMB returns the current resident set size in megabytes, or
	// ok=false if the read failed (spec §4.4: "reads never fail
	// visibly; on primitive failure, the sample is skipped").
	ReadRSSMB() (rssMB float64, ok bool)
}

// ResourceSampler tracks process RSS snapshots and a monotonic peak
// (spec §4.4, C4).
type ResourceSampler struct {
	mu      sync.Mutex
	reader  ResourceReader
	ring    [resourceRingCapacity]float64
	len     int
	head    int
	peakMB  float64
}

// NewResourceSampler constructs an empty sampler.
func NewResourceSampler(reader ResourceReader) *ResourceSampler {
	return &ResourceSampler{reader: reader}
}

// Sample reads RSS and appends it to the ring, updating the peak. Returns
// the read value and whether the read succeeded.
func (s *ResourceSampler) Sample() (rssMB float64, ok bool) {
	rssMB, ok = s.reader.ReadRSSMB()
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.head] = rssMB
	s.head = (s.head + 1) % resourceRingCapacity
	if s.len < resourceRingCapacity {
		s.len++
	}
	if rssMB > s.peakMB {
		s.peakMB = rssMB
	}
	return rssMB, true
}

// CurrentRSSMB forces a fresh read and returns it (spec §4.4).
func (s *ResourceSampler) CurrentRSSMB() (float64, bool) {
	return s.Sample()
}

// PeakMB returns the maximum RSS observed since the last Reset.
func (s *ResourceSampler) PeakMB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakMB
}

// Reset clears the ring and the peak.
func (s *ResourceSampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.len = 0
	s.head = 0
	s.peakMB = 0
}
