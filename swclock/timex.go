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

// Mode bits for TimexRequest.Modes, chosen to match the shape of
// Linux's clock_adjtime(2) ADJ_* constants so external callers can OR
// them the same way; the core never branches on the mask directly; see
// decodeModes.
const (
	ModeOffset    uint32 = 0x0001
	ModeFrequency uint32 = 0x0002
	ModeStatus    uint32 = 0x0010
	ModeTAI       uint32 = 0x0080
	ModeSetOffset uint32 = 0x0100
	ModeMicro     uint32 = 0x1000
	ModeNano      uint32 = 0x2000
)

// TimexRequest is the adjtimex-compatible control surface input. Offset
// is interpreted in nanoseconds if ModeNano is set, else microseconds;
// Time is used by SETOFFSET in preference to Offset.
type TimexRequest struct {
	Modes         uint32
	OffsetUnit    int64 // ns if ModeNano set, else us
	FreqScaledPPM int32
	TimeNS        int64 // relative step, ns; used by SETOFFSET
	Status        int32
	TAI           int32
}

// TimexResponse mirrors clock_adjtime's output fields.
type TimexResponse struct {
	Status        int32
	FreqScaledPPM int32
	MaxErrorUS    int64
	EstErrorUS    int64
	Constant      int64
	Precision     int64
	Tick          int64
	TAI           int32
}

// mutation is the sum type the Design Notes call for: the adjtime mode
// mask is decoded once into a short sequence of these, applied in order
// under the writer lock. The bit mask survives only at TimexRequest's
// boundary.
type mutation interface {
	apply(tb *timeBase)
}

type setFrequency struct{ scaledPPM int32 }

func (m setFrequency) apply(tb *timeBase) { tb.freqScaledPPM = m.scaledPPM }

type slewPhase struct{ deltaNS int64 }

func (m slewPhase) apply(tb *timeBase) {
	tb.remainingPhaseNS += m.deltaNS
	tb.piIntErrorS = 0
	tb.piFreqPPM = 0
}

type stepRealtime struct{ deltaNS int64 }

func (m stepRealtime) apply(tb *timeBase) {
	tb.baseRTNS += m.deltaNS
	tb.remainingPhaseNS = 0
	tb.piIntErrorS = 0
}

type setStatus struct{ word int32 }

func (m setStatus) apply(tb *timeBase) { _ = m.word } // status is stored by the caller, not the time base

type setTAI struct{ seconds int32 }

func (m setTAI) apply(tb *timeBase) { _ = m.seconds } // TAI is informational, stored by the caller

// decodeModes turns req.Modes into an ordered mutation list. It returns
// ErrAmbiguousRequest if both SETOFFSET and OFFSET are set: the
// combination admits two readings and is rejected rather than guessed
// at.
func decodeModes(req TimexRequest) ([]mutation, error) {
	if req.Modes&ModeSetOffset != 0 && req.Modes&ModeOffset != 0 {
		return nil, ErrAmbiguousRequest
	}

	var muts []mutation
	if req.Modes&ModeFrequency != 0 {
		muts = append(muts, setFrequency{scaledPPM: req.FreqScaledPPM})
	}
	if req.Modes&ModeOffset != 0 {
		offsetNS := req.OffsetUnit
		if req.Modes&ModeNano == 0 {
			offsetNS *= 1000
		}
		muts = append(muts, slewPhase{deltaNS: offsetNS})
	}
	if req.Modes&ModeSetOffset != 0 {
		deltaNS := req.TimeNS
		if deltaNS == 0 {
			deltaNS = req.OffsetUnit
			if req.Modes&ModeNano == 0 {
				deltaNS *= 1000
			}
		}
		muts = append(muts, stepRealtime{deltaNS: deltaNS})
	}
	if req.Modes&ModeStatus != 0 {
		muts = append(muts, setStatus{word: req.Status})
	}
	if req.Modes&ModeTAI != 0 {
		muts = append(muts, setTAI{seconds: req.TAI})
	}
	return muts, nil
}
