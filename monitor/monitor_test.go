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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeDeclinesBelowMinSamples(t *testing.T) {
	m := New(1000, 10*time.Millisecond)
	for i := 0; i < 50; i++ {
		m.AddSample(int64(i), 0)
	}
	require.False(t, m.Compute(time.Unix(0, 0), nil))
	_, err := m.GetMetrics()
	require.ErrorIs(t, err, ErrNotReady)
}

func TestComputePublishesSnapshot(t *testing.T) {
	m := New(1000, 10*time.Millisecond)
	for i := 0; i < 200; i++ {
		m.AddSample(int64(i)*10_000_000, int64(i))
	}
	require.True(t, m.Compute(time.Unix(0, 0), nil))

	snap, err := m.GetMetrics()
	require.NoError(t, err)
	require.Equal(t, 200, snap.SampleCount)
	require.InDelta(t, 99.5, snap.TEStats.Mean, 0.5)
}

// TestMTIESineWave is Scenario S5's synthetic TE series: te[i] =
// 10us*sin(2*pi*i/1000) at 100 Hz for 60s. The series has a 10s period,
// so a 1s window only sweeps 36 degrees of phase (closed form
// 2*A*sin(pi*tau/period)) while a 10s window covers a full period and
// sees the full 20us peak-to-peak swing.
func TestMTIESineWave(t *testing.T) {
	const hz = 100.0
	const seconds = 60
	const amplitude = 10_000.0
	n := int(hz * seconds)
	te := make([]float64, n)
	for i := 0; i < n; i++ {
		te[i] = amplitude * math.Sin(2*math.Pi*float64(i)/1000)
	}

	got1s := mtie(te, 1.0/hz, 1)
	got10s := mtie(te, 1.0/hz, 10)

	wantGot1s := 2 * amplitude * math.Sin(math.Pi*1.0/10)
	require.InEpsilon(t, wantGot1s, got1s, 0.05)
	require.InEpsilon(t, 2*amplitude, got10s, 0.05)
}

func TestMTIEMonotonicInTau(t *testing.T) {
	// a linear ramp keeps |te[i+k]-te[i]| == k exactly, which
	// is monotonic in tau by construction and exercises invariant 6
	// without depending on the endpoint-difference formula holding
	// monotonicity for arbitrary data.
	te := make([]float64, 5000)
	for i := range te {
		te[i] = float64(i)
	}
	const interval = 0.01
	m1 := mtie(te, interval, 1)
	m5 := mtie(te, interval, 5)
	m10 := mtie(te, interval, 10)
	require.LessOrEqual(t, m1, m5)
	require.LessOrEqual(t, m5, m10)
}

func TestMTIEZeroForDegenerateWindow(t *testing.T) {
	te := make([]float64, 10)
	require.Zero(t, mtie(te, 1, 100)) // k >= n
}

func TestTDEVZeroWhenWindowTooWide(t *testing.T) {
	te := make([]float64, 10)
	require.Zero(t, tdev(te, 1, 100))
}

func TestEvaluateThresholdsFiresOnBreach(t *testing.T) {
	snap := &Snapshot{
		MTIE: map[float64]float64{1: 150_000, 10: 50_000},
		TDEV: map[float64]float64{1: 10_000},
		TEStats: TEStats{Max: 50_000, Min: -50_000},
	}
	thresholds := DefaultThresholds()

	var fired []string
	evaluateThresholds(snap, thresholds, func(name string, value, threshold float64) {
		fired = append(fired, name)
	})
	require.Equal(t, []string{"mtie_1s"}, fired)
}

func TestThresholdSetCompilesCustomExpr(t *testing.T) {
	ts := ThresholdSet{CustomExprs: map[string]string{"spread": "mtie_1s > 2 * tdev_1s"}}
	require.NoError(t, ts.Compile())

	snap := &Snapshot{
		MTIE: map[float64]float64{1: 100_000},
		TDEV: map[float64]float64{1: 10_000},
	}
	var fired []string
	evaluateThresholds(snap, ts, func(name string, value, threshold float64) {
		fired = append(fired, name)
	})
	require.Equal(t, []string{"spread"}, fired)
}
