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

package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/eclesh/welford"
)

// TEStats summarizes a window of Time Error samples.
type TEStats struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
	P95  float64
	P99  float64
}

// Snapshot is the published result of one recomputation.
// MTIE and TDEV are keyed by tau in seconds.
type Snapshot struct {
	ComputedAt  time.Time
	SampleCount int
	WindowS     float64
	TEStats     TEStats
	MTIE        map[float64]float64
	TDEV        map[float64]float64
}

// computeTEStats computes mean/std via a streaming Welford accumulator
// and min/max/p95/p99 from a sorted copy, per spec 4.7.
func computeTEStats(te []float64) TEStats {
	acc := welford.New()
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range te {
		acc.Add(v)
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	sorted := make([]float64, len(te))
	copy(sorted, te)
	sort.Float64s(sorted)

	return TEStats{
		Mean: acc.Mean(),
		Std:  acc.Stddev(),
		Min:  minV,
		Max:  maxV,
		P95:  percentile(sorted, 0.95),
		P99:  percentile(sorted, 0.99),
	}
}

// percentile expects sorted ascending input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// mtie computes the Maximum Time Interval Error over window tau: the
// largest peak-to-peak excursion of te within any sliding window of
// k+1 = round(tau/sampleIntervalS)+1 samples (GLOSSARY). It runs a
// monotonic-deque sliding window max and min in O(N) rather than the
// O(N*k) naive nested scan.
func mtie(te []float64, sampleIntervalS, tau float64) float64 {
	k := int(math.Round(tau / sampleIntervalS))
	n := len(te)
	if k == 0 || k >= n {
		return 0
	}
	windowLen := k + 1

	maxDeque := make([]int, 0, n)
	minDeque := make([]int, 0, n)
	var result float64

	for i := 0; i < n; i++ {
		for len(maxDeque) > 0 && te[maxDeque[len(maxDeque)-1]] <= te[i] {
			maxDeque = maxDeque[:len(maxDeque)-1]
		}
		maxDeque = append(maxDeque, i)
		for len(minDeque) > 0 && te[minDeque[len(minDeque)-1]] >= te[i] {
			minDeque = minDeque[:len(minDeque)-1]
		}
		minDeque = append(minDeque, i)

		windowStart := i - windowLen + 1
		for maxDeque[0] < windowStart {
			maxDeque = maxDeque[1:]
		}
		for minDeque[0] < windowStart {
			minDeque = minDeque[1:]
		}

		if windowStart >= 0 {
			d := te[maxDeque[0]] - te[minDeque[0]]
			if d > result {
				result = d
			}
		}
	}
	return result
}

// tdev computes the Time Deviation over tau via the second-difference
// estimator.
func tdev(te []float64, sampleIntervalS, tau float64) float64 {
	k := int(math.Round(tau / sampleIntervalS))
	n := len(te)
	if k == 0 || 3*k >= n {
		return 0
	}
	m := n - 2*k
	var sumSq float64
	for i := 0; i < m; i++ {
		d := te[i+2*k] - 2*te[i+k] + te[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / (6 * float64(m)))
}
