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

package eventlog

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is a stable numeric event type ID.
type Type uint16

// Event type IDs. Values are part of the on-disk wire contract and must
// not be renumbered.
const (
	TypeAdjtimeCall     Type = 0x01
	TypeAdjtimeReturn   Type = 0x02
	TypePIEnable        Type = 0x10
	TypePIDisable       Type = 0x11
	TypePIStep          Type = 0x12
	TypeSlewStart       Type = 0x20
	TypeSlewDone        Type = 0x21
	TypeFrequencyClamp  Type = 0x30
	TypeThresholdCross  Type = 0x40
	// TypeWatchdogStuck is not part of spec.md's event type table; it is
	// the design-notes-recommended promotion of the poll task's stuck-
	// servo stderr warning (section 9) to a structured event, assigned
	// the next free ID after THRESHOLD_CROSS.
	TypeWatchdogStuck Type = 0x41
	TypeClockReset    Type = 0x50
	TypeLogStart      Type = 0xF0
	TypeLogStop       Type = 0xF1
	TypeLogMarker     Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case TypeAdjtimeCall:
		return "ADJTIME_CALL"
	case TypeAdjtimeReturn:
		return "ADJTIME_RETURN"
	case TypePIEnable:
		return "PI_ENABLE"
	case TypePIDisable:
		return "PI_DISABLE"
	case TypePIStep:
		return "PI_STEP"
	case TypeSlewStart:
		return "SLEW_START"
	case TypeSlewDone:
		return "SLEW_DONE"
	case TypeFrequencyClamp:
		return "FREQUENCY_CLAMP"
	case TypeThresholdCross:
		return "THRESHOLD_CROSS"
	case TypeWatchdogStuck:
		return "WATCHDOG_STUCK"
	case TypeClockReset:
		return "CLOCK_RESET"
	case TypeLogStart:
		return "LOG_START"
	case TypeLogStop:
		return "LOG_STOP"
	case TypeLogMarker:
		return "LOG_MARKER"
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", uint16(t))
}

// HeaderSize is the fixed, little-endian, on-disk size of an event
// header, in bytes: sequence(8) + timestamp_mono_ns(8) + type(2) +
// payload_size(2) + reserved(4).
const HeaderSize = 24

// Header is the fixed prefix of every record in the log.
type Header struct {
	Sequence        uint64
	TimestampMonoNS uint64
	Type            Type
	PayloadSize     uint16
	Reserved        uint32
}

// Event is one record: a header plus a payload. Ring.Push accepts at
// most MaxPayload bytes per record and the encoded event (HeaderSize
// plus payload) is one record, so an Event sent through Logger.Emit
// carries at most MaxPayload-HeaderSize (40) payload bytes; a longer
// payload makes Push panic.
type Event struct {
	Header  Header
	Payload []byte
}

// Encode serializes the event as header||payload, little-endian, ready
// to hand to Ring.Push.
func (e Event) Encode() []byte {
	buf := make([]byte, HeaderSize+len(e.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], e.Header.Sequence)
	binary.LittleEndian.PutUint64(buf[8:16], e.Header.TimestampMonoNS)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(e.Header.Type))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(len(e.Payload)))
	binary.LittleEndian.PutUint32(buf[20:24], e.Header.Reserved)
	copy(buf[24:], e.Payload)
	return buf
}

// DecodeEvent parses a record previously produced by Event.Encode.
func DecodeEvent(b []byte) (Event, error) {
	if len(b) < HeaderSize {
		return Event{}, fmt.Errorf("eventlog: record too short: %d bytes", len(b))
	}
	h := Header{
		Sequence:        binary.LittleEndian.Uint64(b[0:8]),
		TimestampMonoNS: binary.LittleEndian.Uint64(b[8:16]),
		Type:            Type(binary.LittleEndian.Uint16(b[16:18])),
		PayloadSize:     binary.LittleEndian.Uint16(b[18:20]),
		Reserved:        binary.LittleEndian.Uint32(b[20:24]),
	}
	payload := b[HeaderSize:]
	if int(h.PayloadSize) != len(payload) {
		return Event{}, fmt.Errorf("eventlog: payload size mismatch: header says %d, got %d", h.PayloadSize, len(payload))
	}
	return Event{Header: h, Payload: payload}, nil
}

func putFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func getFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// AdjtimeCallPayload is the payload for TypeAdjtimeCall.
type AdjtimeCallPayload struct {
	Modes         uint32
	OffsetNS      int64
	FreqScaledPPM int32
}

// Encode returns the wire form of p.
func (p AdjtimeCallPayload) Encode() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], p.Modes)
	binary.LittleEndian.PutUint64(b[4:12], uint64(p.OffsetNS))
	binary.LittleEndian.PutUint32(b[12:16], uint32(p.FreqScaledPPM))
	return b
}

// DecodeAdjtimeCallPayload parses the payload of a TypeAdjtimeCall event.
func DecodeAdjtimeCallPayload(b []byte) AdjtimeCallPayload {
	return AdjtimeCallPayload{
		Modes:         binary.LittleEndian.Uint32(b[0:4]),
		OffsetNS:      int64(binary.LittleEndian.Uint64(b[4:12])),
		FreqScaledPPM: int32(binary.LittleEndian.Uint32(b[12:16])),
	}
}

// AdjtimeReturnPayload is the payload for TypeAdjtimeReturn.
type AdjtimeReturnPayload struct {
	Modes         uint32
	FreqScaledPPM int32
	ReturnCode    int32
}

// Encode returns the wire form of p.
func (p AdjtimeReturnPayload) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], p.Modes)
	binary.LittleEndian.PutUint32(b[4:8], uint32(p.FreqScaledPPM))
	binary.LittleEndian.PutUint32(b[8:12], uint32(p.ReturnCode))
	return b
}

// DecodeAdjtimeReturnPayload parses the payload of a TypeAdjtimeReturn event.
func DecodeAdjtimeReturnPayload(b []byte) AdjtimeReturnPayload {
	return AdjtimeReturnPayload{
		Modes:         binary.LittleEndian.Uint32(b[0:4]),
		FreqScaledPPM: int32(binary.LittleEndian.Uint32(b[4:8])),
		ReturnCode:    int32(binary.LittleEndian.Uint32(b[8:12])),
	}
}

// PIStepPayload is the payload for TypePIStep.
type PIStepPayload struct {
	FreqPPM          float64
	IntErrorS        float64
	RemainingPhaseNS int64
	State             uint8
}

// Encode returns the wire form of p.
func (p PIStepPayload) Encode() []byte {
	b := make([]byte, 25)
	putFloat64(b[0:8], p.FreqPPM)
	putFloat64(b[8:16], p.IntErrorS)
	binary.LittleEndian.PutUint64(b[16:24], uint64(p.RemainingPhaseNS))
	b[24] = p.State
	return b
}

// DecodePIStepPayload parses the payload of a TypePIStep event.
func DecodePIStepPayload(b []byte) PIStepPayload {
	return PIStepPayload{
		FreqPPM:          getFloat64(b[0:8]),
		IntErrorS:        getFloat64(b[8:16]),
		RemainingPhaseNS: int64(binary.LittleEndian.Uint64(b[16:24])),
		State:            b[24],
	}
}

// FrequencyClampPayload is the payload for TypeFrequencyClamp.
type FrequencyClampPayload struct {
	RequestedPPM float64
	ClampedPPM   float64
	MaxPPM       float64
}

// Encode returns the wire form of p.
func (p FrequencyClampPayload) Encode() []byte {
	b := make([]byte, 24)
	putFloat64(b[0:8], p.RequestedPPM)
	putFloat64(b[8:16], p.ClampedPPM)
	putFloat64(b[16:24], p.MaxPPM)
	return b
}

// DecodeFrequencyClampPayload parses the payload of a TypeFrequencyClamp event.
func DecodeFrequencyClampPayload(b []byte) FrequencyClampPayload {
	return FrequencyClampPayload{
		RequestedPPM: getFloat64(b[0:8]),
		ClampedPPM:   getFloat64(b[8:16]),
		MaxPPM:       getFloat64(b[16:24]),
	}
}

// SlewStartPayload is the payload for TypeSlewStart.
type SlewStartPayload struct {
	DeltaNS          int64
	RemainingPhaseNS int64
}

// Encode returns the wire form of p.
func (p SlewStartPayload) Encode() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], uint64(p.DeltaNS))
	binary.LittleEndian.PutUint64(b[8:16], uint64(p.RemainingPhaseNS))
	return b
}

// DecodeSlewStartPayload parses the payload of a TypeSlewStart event.
func DecodeSlewStartPayload(b []byte) SlewStartPayload {
	return SlewStartPayload{
		DeltaNS:          int64(binary.LittleEndian.Uint64(b[0:8])),
		RemainingPhaseNS: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// ThresholdCrossPayload is the payload for TypeThresholdCross.
type ThresholdCrossPayload struct {
	MetricID  uint16
	Value     float64
	Threshold float64
}

// Encode returns the wire form of p.
func (p ThresholdCrossPayload) Encode() []byte {
	b := make([]byte, 18)
	binary.LittleEndian.PutUint16(b[0:2], p.MetricID)
	putFloat64(b[2:10], p.Value)
	putFloat64(b[10:18], p.Threshold)
	return b
}

// DecodeThresholdCrossPayload parses the payload of a TypeThresholdCross event.
func DecodeThresholdCrossPayload(b []byte) ThresholdCrossPayload {
	return ThresholdCrossPayload{
		MetricID:  binary.LittleEndian.Uint16(b[0:2]),
		Value:     getFloat64(b[2:10]),
		Threshold: getFloat64(b[10:18]),
	}
}

// WatchdogStuckPayload is the payload for TypeWatchdogStuck.
type WatchdogStuckPayload struct {
	StuckPolls       uint32
	RemainingPhaseNS int64
}

// Encode returns the wire form of p.
func (p WatchdogStuckPayload) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], p.StuckPolls)
	binary.LittleEndian.PutUint64(b[4:12], uint64(p.RemainingPhaseNS))
	return b
}

// DecodeWatchdogStuckPayload parses the payload of a TypeWatchdogStuck event.
func DecodeWatchdogStuckPayload(b []byte) WatchdogStuckPayload {
	return WatchdogStuckPayload{
		StuckPolls:       binary.LittleEndian.Uint32(b[0:4]),
		RemainingPhaseNS: int64(binary.LittleEndian.Uint64(b[4:12])),
	}
}

// ClockResetPayload is the payload for TypeClockReset.
type ClockResetPayload struct {
	ReasonCode uint16
}

// Encode returns the wire form of p.
func (p ClockResetPayload) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b[0:2], p.ReasonCode)
	return b
}

// DecodeClockResetPayload parses the payload of a TypeClockReset event.
func DecodeClockResetPayload(b []byte) ClockResetPayload {
	return ClockResetPayload{ReasonCode: binary.LittleEndian.Uint16(b[0:2])}
}
