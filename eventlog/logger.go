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
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

// FileMagic identifies a swclock event log file.
var FileMagic = [4]byte{'S', 'W', 'E', 'V'}

// FileVersion is the current on-disk format version.
const FileVersion uint32 = 1

// FileHeaderSize is the fixed size, in bytes, of the file header that
// precedes every record in the log.
const FileHeaderSize = 56

// versionStringSize is the reserved width of the free-form version
// string field within the file header.
const versionStringSize = 32

// FileHeader is written once at the start of a log file.
type FileHeader struct {
	Magic         [4]byte
	Version       uint32
	StartTimeUnix int64
	VersionString string
	// Reserved pads the header out to FileHeaderSize.
}

// Encode returns the 56-byte wire form of h. VersionString longer than
// versionStringSize is truncated.
func (h FileHeader) Encode() []byte {
	b := make([]byte, FileHeaderSize)
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.StartTimeUnix))
	vs := h.VersionString
	if len(vs) > versionStringSize {
		vs = vs[:versionStringSize]
	}
	copy(b[16:16+versionStringSize], vs)
	// b[48:56] stays zero: reserved.
	return b
}

// DecodeFileHeader parses the 56-byte file header b.
func DecodeFileHeader(b []byte) (FileHeader, error) {
	if len(b) < FileHeaderSize {
		return FileHeader{}, fmt.Errorf("eventlog: short file header: %d bytes", len(b))
	}
	var h FileHeader
	copy(h.Magic[:], b[0:4])
	if h.Magic != FileMagic {
		return FileHeader{}, fmt.Errorf("eventlog: bad file magic %q", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint32(b[4:8])
	h.StartTimeUnix = int64(binary.LittleEndian.Uint64(b[8:16]))
	end := 16
	for end < 16+versionStringSize && b[end] != 0 {
		end++
	}
	h.VersionString = string(b[16:end])
	return h, nil
}

// Sink receives Events from the logger's drain loop before they are
// written to the underlying writer, for consumers (like monitor) that
// want a live feed in addition to the durable log.
type Sink interface {
	Observe(Event)
}

// Logger drains a Ring into an io.Writer as length-delimited Event
// records, writing the file header once up front. It is meant to run
// as a single long-lived goroutine owned by the clock's errgroup.
type Logger struct {
	ring *Ring
	w    io.Writer
	sink Sink
	seq  uint64

	scratch [HeaderSize + MaxPayload]byte
}

// NewLogger creates a Logger draining ring into w. versionString is
// recorded in the file header for forensic identification; sink may be
// nil.
func NewLogger(ring *Ring, w io.Writer, versionString string, sink Sink) (*Logger, error) {
	hdr := FileHeader{
		Magic:         FileMagic,
		Version:       FileVersion,
		StartTimeUnix: time.Now().Unix(),
		VersionString: versionString,
	}
	if _, err := w.Write(hdr.Encode()); err != nil {
		return nil, fmt.Errorf("eventlog: writing file header: %w", err)
	}
	return &Logger{ring: ring, w: w, sink: sink}, nil
}

// Emit assigns the next sequence number, timestamps the event, and
// pushes it onto the ring. It is safe to call only from the single
// producer goroutine.
func (l *Logger) Emit(t Type, timestampMonoNS int64, payload []byte) {
	l.seq++
	ev := Event{
		Header: Header{
			Sequence:        l.seq,
			TimestampMonoNS: uint64(timestampMonoNS),
			Type:            t,
		},
		Payload: payload,
	}
	if !l.ring.Push(ev.Encode()) {
		log.WithField("type", t).Warn("swclock: event ring overrun, record dropped")
		return
	}
}

// pushRaw exists for tests that want to bypass the header bookkeeping
// Emit performs and push a preformed record.
func (l *Logger) pushRaw(ev Event) bool {
	return l.ring.Push(ev.Encode())
}

// Drain pops every currently pending record off the ring, writes it to
// the underlying writer, and forwards a copy to the sink if one is
// configured. It returns the number of records drained. Run drives this
// in a loop until stop is closed; Drain itself never blocks.
func (l *Logger) Drain() (int, error) {
	n := 0
	for {
		size, err := l.ring.Pop(l.scratch[:])
		if err == ErrEmpty {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("eventlog: drain: %w", err)
		}
		if _, err := l.w.Write(l.scratch[:size]); err != nil {
			return n, fmt.Errorf("eventlog: writing record: %w", err)
		}
		if l.sink != nil {
			if ev, derr := DecodeEvent(l.scratch[:size]); derr == nil {
				l.sink.Observe(ev)
			}
		}
		n++
	}
}

// Run drains the ring on every tick of interval until stop is closed,
// then performs one final drain to flush anything still pending before
// returning. This mirrors the "stop drains remaining records" semantics
// spec section 6 requires.
func (l *Logger) Run(stop <-chan struct{}, tick <-chan time.Time) error {
	for {
		select {
		case <-stop:
			_, err := l.Drain()
			return err
		case <-tick:
			if _, err := l.Drain(); err != nil {
				return err
			}
			if l.ring.ClearOverrun() {
				log.WithField("dropped", l.ring.OverrunCount()).Warn("swclock: event log overrun since last check")
			}
		}
	}
}
