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

package swclock

// scaledPPMDivisor converts a freq_scaled_ppm value (ppm * 2^16) into a
// fractional rate: freq_scaled_ppm / (2^16 * 1e6).
const scaledPPMDivisor = float64(1 << 16 * 1_000_000)

// timeBase holds the state in C2: the synthesized REALTIME/MONOTONIC
// bases as of ref_mono_raw, the frequency biases that determine how
// fast they run, and the outstanding PI-servo bookkeeping. All access is
// serialized by the owning Clock's readers-writer lock.
type timeBase struct {
	refMonoRawNS int64
	baseRTNS     int64
	baseMonoNS   int64

	freqScaledPPM int32 // user-commanded bias, ppm * 2^16
	piFreqPPM     float64
	piIntErrorS   float64
	remainingPhaseNS int64

	cachedTotalFactor float64
}

// fBase returns the non-PI rate multiplier derived from freq_scaled_ppm.
func (tb *timeBase) fBase() float64 {
	return 1 + float64(tb.freqScaledPPM)/scaledPPMDivisor
}

// fTotal returns the instantaneous total rate multiplier.
func (tb *timeBase) fTotal() float64 {
	return tb.fBase() + tb.piFreqPPM*1e-6
}

// rebase advances the time base to now, folding in elapsed time at the
// current rate and reducing any outstanding phase slew by the portion
// of the advance attributable to PI action. Callers must hold the
// writer lock.
func (tb *timeBase) rebase(now int64) {
	elapsed := now - tb.refMonoRawNS
	if elapsed < 0 {
		elapsed = 0
	}

	fBase := tb.fBase()
	fTotal := fBase + tb.piFreqPPM*1e-6

	adj := int64(float64(elapsed) * fTotal)
	tb.baseRTNS += adj
	tb.baseMonoNS += adj

	deltaFactor := fTotal - fBase
	applied := int64(float64(elapsed) * deltaFactor)
	if tb.remainingPhaseNS != 0 {
		if abs64(applied) >= abs64(tb.remainingPhaseNS) {
			tb.remainingPhaseNS = 0
		} else {
			tb.remainingPhaseNS -= applied
		}
	}

	tb.refMonoRawNS = now
	tb.cachedTotalFactor = fTotal
}

// snapshot is the consistent triple gettime readers extrapolate from
// outside the lock.
type snapshot struct {
	refMonoRawNS int64
	baseRTNS     int64
	baseMonoNS   int64
	factor       float64
}

func (tb *timeBase) snapshot() snapshot {
	return snapshot{
		refMonoRawNS: tb.refMonoRawNS,
		baseRTNS:     tb.baseRTNS,
		baseMonoNS:   tb.baseMonoNS,
		factor:       tb.cachedTotalFactor,
	}
}

// extrapolate projects a snapshot forward to now for the given clock id.
// It performs no locking and must be called outside the lock.
func (s snapshot) extrapolate(now int64, id ClockID) int64 {
	elapsed := now - s.refMonoRawNS
	if elapsed < 0 {
		elapsed = 0
	}
	adj := int64(float64(elapsed) * s.factor)
	switch id {
	case Realtime:
		return s.baseRTNS + adj
	case Monotonic:
		return s.baseMonoNS + adj
	}
	return 0
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
