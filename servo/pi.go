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

import "math"

// Defaults for Config, per the clock's default configuration.
const (
	DefaultKp           = 200.0         // ppm/s
	DefaultKi           = 8.0           // ppm/s^2
	DefaultMaxPPM       = 200.0         // ppm
	DefaultMinSlewPPM   = 100.0         // ppm
	DefaultPhaseEpsNS   = int64(20_000) // ns
	errorEstimatorAlpha = 0.1
	errorEstimatorDecay = 0.98
)

// Config holds the PI servo gains and operating limits.
type Config struct {
	Kp         float64 `yaml:"kp"`           // proportional gain, ppm per second of phase error
	Ki         float64 `yaml:"ki"`           // integral gain, ppm per second^2
	MaxPPM     float64 `yaml:"max_ppm"`      // clamp applied to the servo output
	MinSlewPPM float64 `yaml:"min_slew_ppm"` // minimum-slew boost magnitude
	PhaseEpsNS int64   `yaml:"phase_eps_ns"` // anti-windup threshold
}

// DefaultConfig returns the servo's documented default gains.
func DefaultConfig() Config {
	return Config{
		Kp:         DefaultKp,
		Ki:         DefaultKi,
		MaxPPM:     DefaultMaxPPM,
		MinSlewPPM: DefaultMinSlewPPM,
		PhaseEpsNS: DefaultPhaseEpsNS,
	}
}

// Input is the servo state consumed by a single Step.
type Input struct {
	RemainingPhaseNS int64   // outstanding slew, ns
	IntErrorS        float64 // integral accumulator, seconds
	DtS              float64 // elapsed time since previous step, seconds
	Enabled          bool
}

// Result is the servo state produced by a single Step.
type Result struct {
	FreqPPM          float64 // new pi_freq_ppm
	IntErrorS        float64 // new pi_int_error_s
	RemainingPhaseNS int64   // new remaining_phase_ns (zeroed by anti-windup)
	State            State
	Clamped          bool    // true if the output was clamped to MaxPPM
	RequestedPPM     float64 // pre-clamp value; meaningful only when Clamped
}

// Step runs one iteration of the PI phase servo.
//
// When the servo is disabled, the output and integral are forced to
// zero and remaining phase is left untouched so re-enabling resumes the
// slew where it left off.
func Step(cfg Config, in Input) Result {
	if !in.Enabled {
		return Result{
			RemainingPhaseNS: in.RemainingPhaseNS,
			State:            StateDisabled,
		}
	}

	errS := float64(in.RemainingPhaseNS) / 1e9
	intErr := in.IntErrorS + errS*in.DtS
	u := cfg.Kp*errS + cfg.Ki*intErr

	// minimum-slew boost: small offsets otherwise converge pathologically slowly.
	if in.RemainingPhaseNS != 0 && math.Abs(errS) < 0.01 && math.Abs(u) < cfg.MinSlewPPM {
		u = sign(in.RemainingPhaseNS) * cfg.MinSlewPPM
	}

	requested := u
	u, clamped := clamp(u, -cfg.MaxPPM, cfg.MaxPPM)

	state := StateSlewing
	if clamped {
		state = StateClamped
	}

	remaining := in.RemainingPhaseNS
	if abs(remaining) <= cfg.PhaseEpsNS {
		remaining = 0
		intErr = 0
		u = 0
		state = StateDeadband
	}

	return Result{
		FreqPPM:          u,
		IntErrorS:        intErr,
		RemainingPhaseNS: remaining,
		State:            state,
		Clamped:          clamped,
		RequestedPPM:     requested,
	}
}

// ErrorEstimator tracks the running max observed phase error and an EWMA
// of its square, for adjtimex maxerror/esterror readback.
type ErrorEstimator struct {
	maxObservedS float64
	varEWMA      float64
}

// Update folds in one servo step's state and returns maxerror/esterror
// in microseconds, each capped at 1e6us as spec.md requires. decay
// should be true exactly when the caller's Step produced StateDeadband
// (anti-windup fired), so the running max decays instead of sticking at
// a stale high-water mark forever.
func (e *ErrorEstimator) Update(remainingPhaseNS int64, intErrorS, freqPPM float64, decay bool) (maxErrorUS, estErrorUS float64) {
	s := math.Abs(float64(remainingPhaseNS)) / 1e9
	if s > e.maxObservedS {
		e.maxObservedS = s
	}
	if decay {
		e.maxObservedS *= errorEstimatorDecay
	}
	e.varEWMA = (1-errorEstimatorAlpha)*e.varEWMA + errorEstimatorAlpha*s*s

	maxErrorUS = (e.maxObservedS + math.Abs(intErrorS)) * 1e6
	estErrorUS = (math.Sqrt(e.varEWMA) + 0.1*math.Abs(freqPPM)/1e6) * 1e6
	if maxErrorUS > 1e6 {
		maxErrorUS = 1e6
	}
	if estErrorUS > 1e6 {
		estErrorUS = 1e6
	}
	return maxErrorUS, estErrorUS
}
