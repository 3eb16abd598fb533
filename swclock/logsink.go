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

import "github.com/facebook/swclock/eventlog"

// LogSink is the one capability the core calls to record a
// servo-affecting decision (Design Notes: consolidate many logging
// toggles into a single emit(event) capability). The core never
// formats; it hands a type and an already-encoded payload to Emit.
type LogSink interface {
	Emit(t eventlog.Type, timestampMonoNS int64, payload []byte)
}

// nopSink discards every event; used when no event log is configured.
type nopSink struct{}

func (nopSink) Emit(eventlog.Type, int64, []byte) {}

// ringSink forwards to an eventlog.Logger backed by the ring buffer
// the logger task drains.
type ringSink struct {
	logger *eventlog.Logger
}

func newRingSink(l *eventlog.Logger) LogSink {
	return ringSink{logger: l}
}

func (s ringSink) Emit(t eventlog.Type, timestampMonoNS int64, payload []byte) {
	s.logger.Emit(t, timestampMonoNS, payload)
}
