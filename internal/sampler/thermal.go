// Package sampler implements the concurrent signal samplers (C2-C4):
// thermal state, battery drain, and process RSS.
package sampler

import (
	"sync"
)

// ThermalLevel is the tagged enum from spec §3.
type ThermalLevel int8

const (
	ThermalUnavailable ThermalLevel = -1
	ThermalNominal     ThermalLevel = 0
	ThermalFair        ThermalLevel = 1
	ThermalSerious     ThermalLevel = 2
	ThermalCritical    ThermalLevel = 3
)

func (l ThermalLevel) String() string {
	switch l {
	case ThermalUnavailable:
		return "Unavailable"
	case ThermalNominal:
		return "Nominal"
	case ThermalFair:
		return "Fair"
	case ThermalSerious:
		return "Serious"
	case ThermalCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ThermalReader is the platform primitive a ThermalSampler polls or is
// pushed from. Implementations live per-OS; Linux reads
// /sys/class/thermal via golang.org/x/sys/unix.
type ThermalReader interface {
	// ReadLevel returns the current level, or ThermalUnavailable with
	// ok=false when the platform exposes no thermal API.
	ReadLevel() (level ThermalLevel, ok bool)
}

// ListenerID identifies a registered on_change callback for later removal.
type ListenerID uint64

// ThermalSampler caches the last-known thermal level and dispatches
// fire-and-forget change notifications (spec §4.2).
type ThermalSampler struct {
	mu        sync.Mutex
	reader    ThermalReader
	level     ThermalLevel
	supported bool
	listeners map[ListenerID]func(ThermalLevel)
	nextID    ListenerID
}

// NewThermalSampler constructs a sampler around reader and takes an
// initial reading.
func NewThermalSampler(reader ThermalReader) *ThermalSampler {
	s := &ThermalSampler{
		reader:    reader,
		level:     ThermalUnavailable,
		listeners: make(map[ListenerID]func(ThermalLevel)),
	}
	if lvl, ok := reader.ReadLevel(); ok {
		s.level = lvl
		s.supported = true
	}
	return s
}

// CurrentLevel returns the cached level.
func (s *ThermalSampler) CurrentLevel() ThermalLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// ShouldThrottle reports level >= Serious.
func (s *ThermalSampler) ShouldThrottle() bool {
	return s.CurrentLevel() >= ThermalSerious
}

// IsCritical reports level >= Critical.
func (s *ThermalSampler) IsCritical() bool {
	return s.CurrentLevel() >= ThermalCritical
}

// IsSupported reports whether the platform exposed a thermal API at
// construction time.
func (s *ThermalSampler) IsSupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported
}

// OnChange registers cb to be invoked whenever a Refresh observes a level
// change. cb must not block; dispatch is fire-and-forget and synchronous
// on the calling goroutine.
func (s *ThermalSampler) OnChange(cb func(ThermalLevel)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
	return id
}

// Remove unregisters a listener previously returned by OnChange.
func (s *ThermalSampler) Remove(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// Refresh re-polls the reader and dispatches on_change listeners if the
// level moved. Called by the Scheduler's driver loop or an event-driven
// OS callback.
func (s *ThermalSampler) Refresh() {
	lvl, ok := s.reader.ReadLevel()
	s.mu.Lock()
	changed := ok && lvl != s.level
	if ok {
		s.level = lvl
		s.supported = true
	}
	var cbs []func(ThermalLevel)
	if changed {
		cbs = make([]func(ThermalLevel), 0, len(s.listeners))
		for _, cb := range s.listeners {
			cbs = append(cbs, cb)
		}
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(lvl)
	}
}
