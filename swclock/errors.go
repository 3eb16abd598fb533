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

import "errors"

// Sentinel errors, grouped per the error taxonomy: invalid argument
// failures never change state; resource exhaustion and corruption are
// reported but non-fatal except where noted.
var (
	// ErrInvalidClockID is returned by gettime/settime for an
	// unrecognized clock id.
	ErrInvalidClockID = errors.New("swclock: invalid clock id")
	// ErrSettimeUnsupported is returned by settime for any clock id
	// other than Realtime.
	ErrSettimeUnsupported = errors.New("swclock: settime only supports CLOCK_REALTIME")
	// ErrAmbiguousRequest is returned when a Timex request sets both
	// SETOFFSET and OFFSET: whether that means two steps or one step
	// of their sum is undecided, so the combination is rejected outright.
	ErrAmbiguousRequest = errors.New("swclock: SETOFFSET and OFFSET must not be combined in one request")
	// ErrMetricsNotReady is returned by GetMetrics and SetThresholds when
	// the clock was built without a monitor. A monitored clock that has
	// not yet published its first snapshot returns monitor.ErrNotReady
	// from GetMetrics instead.
	ErrMetricsNotReady = errors.New("swclock: metrics not ready")
	// ErrClosed is returned by every operation with an error result
	// attempted after Close.
	ErrClosed = errors.New("swclock: clock is closed")
)
