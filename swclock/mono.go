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

import "golang.org/x/sys/unix"

// MonotonicSource returns a strictly non-decreasing nanosecond reading
// from a clock not subject to wall-time adjustment. It is an
// interface so tests can substitute a synthetic, controllable source.
type MonotonicSource interface {
	NowNS() int64
}

// systemMonotonicSource reads CLOCK_MONOTONIC_RAW, which unlike
// CLOCK_MONOTONIC is never slewed by the host kernel's own NTP
// discipline.
type systemMonotonicSource struct{}

// NewSystemMonotonicSource returns the real hardware-backed
// MonotonicSource.
func NewSystemMonotonicSource() MonotonicSource {
	return systemMonotonicSource{}
}

func (systemMonotonicSource) NowNS() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		// CLOCK_MONOTONIC_RAW is implemented on every Linux this clock
		// targets; a failure here means the syscall table itself is
		// broken, which no caller can recover from.
		panic("swclock: clock_gettime(CLOCK_MONOTONIC_RAW) failed: " + err.Error())
	}
	return ts.Nano()
}
