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

package servo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepDisabledHoldsPhase(t *testing.T) {
	cfg := DefaultConfig()
	res := Step(cfg, Input{RemainingPhaseNS: 123456, IntErrorS: 0.5, DtS: 0.01, Enabled: false})
	require.Equal(t, StateDisabled, res.State)
	require.Zero(t, res.FreqPPM)
	require.Zero(t, res.IntErrorS)
	require.Equal(t, int64(123456), res.RemainingPhaseNS)
}

func TestStepDeadbandZeroesEverything(t *testing.T) {
	cfg := DefaultConfig()
	res := Step(cfg, Input{RemainingPhaseNS: 100, IntErrorS: 0.01, DtS: 0.01, Enabled: true})
	require.Equal(t, StateDeadband, res.State)
	require.Zero(t, res.FreqPPM)
	require.Zero(t, res.IntErrorS)
	require.Zero(t, res.RemainingPhaseNS)
}

func TestStepMinSlewBoost(t *testing.T) {
	cfg := DefaultConfig()
	// 50us remaining: small enough for the 0.01s dead-zone check but
	// above PhaseEpsNS (20us), so the boost should kick in.
	res := Step(cfg, Input{RemainingPhaseNS: 50_000, IntErrorS: 0, DtS: 0.01, Enabled: true})
	require.Equal(t, StateSlewing, res.State)
	require.InEpsilon(t, cfg.MinSlewPPM, res.FreqPPM, 1e-9)
}

func TestStepClampsLargeOffset(t *testing.T) {
	cfg := DefaultConfig()
	res := Step(cfg, Input{RemainingPhaseNS: 1_000_000_000, IntErrorS: 0, DtS: 0.01, Enabled: true})
	require.True(t, res.Clamped)
	require.Equal(t, StateClamped, res.State)
	require.InEpsilon(t, cfg.MaxPPM, res.FreqPPM, 1e-9)
	require.Greater(t, res.RequestedPPM, cfg.MaxPPM)
}

func TestStepConvergesTowardZero(t *testing.T) {
	cfg := DefaultConfig()
	remaining := int64(1_000_000) // 1ms
	intErr := 0.0
	dt := 0.01
	var last Result
	for i := 0; i < 100_000 && remaining != 0; i++ {
		last = Step(cfg, Input{RemainingPhaseNS: remaining, IntErrorS: intErr, DtS: dt, Enabled: true})
		// simulate a Rebase applying the full PI-attributable rate for dt.
		appliedNS := int64(last.FreqPPM * 1e-6 * dt * 1e9)
		if abs(appliedNS) >= abs(remaining) {
			remaining = 0
		} else {
			remaining -= appliedNS
		}
		intErr = last.IntErrorS
	}
	require.Zero(t, remaining)
	require.Equal(t, StateDeadband, last.State)
}

func TestErrorEstimatorCapsAtOneSecond(t *testing.T) {
	var e ErrorEstimator
	maxErr, estErr := e.Update(2_000_000_000, 2.0, 0, false)
	require.LessOrEqual(t, maxErr, 1e6)
	require.LessOrEqual(t, estErr, 1e6)
}

func TestErrorEstimatorDecaysOnAntiWindup(t *testing.T) {
	var e ErrorEstimator
	e.Update(500_000_000, 0, 0, false)
	before := e.maxObservedS
	e.Update(0, 0, 0, true)
	require.Less(t, e.maxObservedS, before)
}
