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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		Magic:         FileMagic,
		Version:       FileVersion,
		StartTimeUnix: 1700000000,
		VersionString: "swclock-test",
	}
	got, err := DecodeFileHeader(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h.Magic, got.Magic)
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.StartTimeUnix, got.StartTimeUnix)
	require.Equal(t, h.VersionString, got.VersionString)
}

func TestDecodeFileHeaderRejectsBadMagic(t *testing.T) {
	h := FileHeader{Magic: [4]byte{'X', 'X', 'X', 'X'}, Version: 1}
	_, err := DecodeFileHeader(h.Encode())
	require.Error(t, err)
}

func TestNewLoggerWritesFileHeader(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing(1024)
	_, err := NewLogger(ring, &buf, "swclock-test", nil)
	require.NoError(t, err)
	require.Equal(t, FileHeaderSize, buf.Len())

	hdr, err := DecodeFileHeader(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, FileMagic, hdr.Magic)
	require.Equal(t, "swclock-test", hdr.VersionString)
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Observe(ev Event) {
	s.events = append(s.events, ev)
}

func TestLoggerEmitAndDrain(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing(4096)
	sink := &recordingSink{}
	l, err := NewLogger(ring, &buf, "v1", sink)
	require.NoError(t, err)

	l.Emit(TypePIEnable, 1000, nil)
	l.Emit(TypePIStep, 2000, PIStepPayload{FreqPPM: 1, IntErrorS: 2, RemainingPhaseNS: 3, State: 1}.Encode())

	n, err := l.Drain()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, sink.events, 2)
	require.Equal(t, TypePIEnable, sink.events[0].Header.Type)
	require.Equal(t, TypePIStep, sink.events[1].Header.Type)
	require.Equal(t, uint64(1), sink.events[0].Header.Sequence)
	require.Equal(t, uint64(2), sink.events[1].Header.Sequence)

	// file header plus two records should now be resident in buf.
	require.Greater(t, buf.Len(), FileHeaderSize)
}

func TestLoggerRunDrainsOnStop(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing(4096)
	l, err := NewLogger(ring, &buf, "v1", nil)
	require.NoError(t, err)

	l.Emit(TypeLogStart, 0, nil)

	stop := make(chan struct{})
	tick := make(chan time.Time)
	done := make(chan error, 1)
	go func() { done <- l.Run(stop, tick) }()

	close(stop)
	require.NoError(t, <-done)
	require.Equal(t, uint64(0), ring.Pending())
}

func TestLoggerEmitSetsOverrunOnFullRing(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing(64) // tiny ring: only two 28-byte empty-payload records fit
	l, err := NewLogger(ring, &buf, "v1", nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		l.Emit(TypeLogMarker, int64(i), nil)
	}
	require.True(t, ring.ClearOverrun())
}
