package shelfstar

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Statter is the interface that stats collectors must implement to get stats
// out of a pipeline run. Non-fatal anomalies (filtered rows, unmatched books,
// skipped lookups) are only visible through it and the logs.
type Statter interface {
	Count(name string, value int64, rate float64, tags ...string)
	Gauge(name string, value float64, rate float64, tags ...string)
	Timing(name string, value time.Duration, rate float64, tags ...string)
}

// NopStatter does nothing.
type NopStatter struct{}

// Count does nothing.
func (NopStatter) Count(name string, value int64, rate float64, tags ...string) {}

// Gauge does nothing.
func (NopStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Timing does nothing.
func (NopStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// SummaryStatter accumulates counters and timings in memory and writes them to
// a logger in one entry when the run is over. It is safe for concurrent use.
type SummaryStatter struct {
	lock    sync.Mutex
	counts  map[string]int64
	gauges  map[string]float64
	timings map[string]time.Duration
}

// NewSummaryStatter returns an empty SummaryStatter.
func NewSummaryStatter() *SummaryStatter {
	return &SummaryStatter{
		counts:  make(map[string]int64),
		gauges:  make(map[string]float64),
		timings: make(map[string]time.Duration),
	}
}

// Count adds value to the named counter.
func (s *SummaryStatter) Count(name string, value int64, rate float64, tags ...string) {
	s.lock.Lock()
	s.counts[name] += value
	s.lock.Unlock()
}

// Gauge records the latest value of the named gauge.
func (s *SummaryStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	s.lock.Lock()
	s.gauges[name] = value
	s.lock.Unlock()
}

// Timing adds value to the named timing.
func (s *SummaryStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	s.lock.Lock()
	s.timings[name] += value
	s.lock.Unlock()
}

// Counts returns a copy of the counters.
func (s *SummaryStatter) Counts() map[string]int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	ret := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		ret[k] = v
	}
	return ret
}

// Log writes every stat to logger in a single entry, sorted by name.
func (s *SummaryStatter) Log(logger *zap.Logger, msg string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	fields := make([]zap.Field, 0, len(s.counts)+len(s.gauges)+len(s.timings))
	for _, name := range sortedKeys(s.counts) {
		fields = append(fields, zap.Int64(name, s.counts[name]))
	}
	for _, name := range sortedKeys(s.gauges) {
		fields = append(fields, zap.Float64(name, s.gauges[name]))
	}
	for _, name := range sortedKeys(s.timings) {
		fields = append(fields, zap.Duration(name, s.timings[name]))
	}
	logger.Info(msg, fields...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
