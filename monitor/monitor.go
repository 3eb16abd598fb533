/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package monitor implements the sliding-window MTIE/TDEV monitor: a
// fixed-capacity ring of Time Error samples, periodic recomputation of
// summary statistics, and threshold-triggered alerting.
package monitor

import (
	"container/ring"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// minSamplesToPublish is the smallest window Compute will accept before
// declining to publish a snapshot.
const minSamplesToPublish = 100

// ErrNotReady is returned by GetMetrics before the first snapshot has
// been published.
var ErrNotReady = errors.New("monitor: metrics not ready")

// Sample is one Time Error observation.
type Sample struct {
	TimestampNS int64
	TEaNS       int64
}

// Monitor ingests TE samples from the poll task into a fixed-capacity
// ring and periodically recomputes TE stats, MTIE, and TDEV. Its sample
// ring is guarded by its own mutex, distinct from the clock's primary
// readers-writer lock.
type Monitor struct {
	mu             sync.Mutex
	samples        *ring.Ring
	capacity       int
	count          int
	sampleInterval time.Duration

	latest atomic.Pointer[Snapshot]

	thresholds ThresholdSet
}

// New creates a Monitor with the given ring capacity and nominal sample
// interval (used to convert MTIE/TDEV tau arguments into sample counts).
func New(capacity int, sampleInterval time.Duration) *Monitor {
	return &Monitor{
		samples:        ring.New(capacity),
		capacity:       capacity,
		sampleInterval: sampleInterval,
		thresholds:     DefaultThresholds(),
	}
}

// AddSample pushes one TE observation into the ring, overwriting the
// oldest entry once full.
func (m *Monitor) AddSample(timestampNS, teNS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples.Value = Sample{TimestampNS: timestampNS, TEaNS: teNS}
	m.samples = m.samples.Next()
	if m.count < m.capacity {
		m.count++
	}
}

// SetThresholds replaces the active threshold configuration.
func (m *Monitor) SetThresholds(t ThresholdSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// snapshotSamples copies every resident sample, newest-first, under the
// monitor mutex.
func (m *Monitor) snapshotSamples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, 0, m.count)
	r := m.samples.Prev()
	for j := 0; j < m.count; j++ {
		if r.Value == nil {
			continue
		}
		out = append(out, r.Value.(Sample))
		r = r.Prev()
	}
	return out
}

// Compute recomputes TE stats, MTIE, and TDEV from the current window
// and publishes the result. AlertFn, if non-nil, is invoked synchronously
// for each threshold the new snapshot breaches; it must not call back
// into the monitor. Compute returns false if there are not yet enough
// samples to publish.
func (m *Monitor) Compute(now time.Time, alertFn AlertCallback) bool {
	newestFirst := m.snapshotSamples()
	if len(newestFirst) < minSamplesToPublish {
		return false
	}

	// oldest-first makes the MTIE/TDEV and stats math read naturally.
	oldestFirst := make([]Sample, len(newestFirst))
	for i, s := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = s
	}

	te := make([]float64, len(oldestFirst))
	for i, s := range oldestFirst {
		te[i] = float64(s.TEaNS)
	}

	stats := computeTEStats(te)
	sampleIntervalS := m.sampleInterval.Seconds()

	snap := &Snapshot{
		ComputedAt:  now,
		SampleCount: len(te),
		WindowS:     float64(len(te)) * sampleIntervalS,
		TEStats:     stats,
		MTIE: map[float64]float64{
			1:  mtie(te, sampleIntervalS, 1),
			10: mtie(te, sampleIntervalS, 10),
			30: mtie(te, sampleIntervalS, 30),
			60: mtie(te, sampleIntervalS, 60),
		},
		TDEV: map[float64]float64{
			0.1: tdev(te, sampleIntervalS, 0.1),
			1:   tdev(te, sampleIntervalS, 1),
			10:  tdev(te, sampleIntervalS, 10),
		},
	}
	m.latest.Store(snap)

	m.mu.Lock()
	thresholds := m.thresholds
	m.mu.Unlock()
	if alertFn != nil {
		evaluateThresholds(snap, thresholds, alertFn)
	}
	return true
}

// GetMetrics returns the most recently published snapshot.
func (m *Monitor) GetMetrics() (*Snapshot, error) {
	s := m.latest.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}
