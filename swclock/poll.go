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

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/swclock/eventlog"
	"github.com/facebook/swclock/servo"
)

// pollLoop is the poll task: on every tick it rebases the
// time-base against the monotonic reference, steps the PI servo if
// enabled, watches for a stuck slew, and samples Time Error into the
// monitor outside the writer lock.
func (c *Clock) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

func (c *Clock) pollOnce() {
	var (
		teSample     int64
		sampleWallNS int64
		wantSample   bool
	)

	c.mu.Lock()
	now := c.mono.NowNS()
	before := c.tb.refMonoRawNS
	c.tb.rebase(now)

	dtS := float64(c.tb.refMonoRawNS-before) / 1e9
	if minDt := c.cfg.PollInterval.Seconds(); dtS < minDt {
		dtS = minDt
	}

	if c.enabled {
		in := servo.Input{
			RemainingPhaseNS: c.tb.remainingPhaseNS,
			IntErrorS:        c.tb.piIntErrorS,
			DtS:              dtS,
			Enabled:          true,
		}
		res := servo.Step(c.cfg.Servo, in)

		if res.Clamped {
			payload := eventlog.FrequencyClampPayload{
				RequestedPPM: res.RequestedPPM,
				ClampedPPM:   res.FreqPPM,
				MaxPPM:       c.cfg.Servo.MaxPPM,
			}
			c.sink.Emit(eventlog.TypeFrequencyClamp, now, payload.Encode())
		}

		c.tb.piFreqPPM = res.FreqPPM
		c.tb.piIntErrorS = res.IntErrorS
		c.tb.remainingPhaseNS = res.RemainingPhaseNS

		stepPayload := eventlog.PIStepPayload{
			FreqPPM:          res.FreqPPM,
			IntErrorS:        res.IntErrorS,
			RemainingPhaseNS: res.RemainingPhaseNS,
			State:            uint8(res.State),
		}
		c.sink.Emit(eventlog.TypePIStep, now, stepPayload.Encode())

		decay := res.State == servo.StateDeadband
		c.maxErrorUS, c.estErrorUS = c.errEst.Update(c.tb.remainingPhaseNS, c.tb.piIntErrorS, c.tb.piFreqPPM, decay)
	}

	c.watchdogCheck(now)
	c.sanityCheck()

	if c.monitoring.Load() {
		wantSample = true
		sampleWallNS = time.Now().UnixNano()
		teSample = sampleWallNS - c.tb.baseRTNS
	}
	c.mu.Unlock()

	if wantSample && c.mon != nil {
		c.mon.AddSample(now, teSample)
	}
}

// watchdogCheck implements spec 9's stuck-servo detection: if
// remaining_phase_ns holds a nonzero value unchanged across
// cfg.WatchdogStuckPolls consecutive polls, emit WATCHDOG_STUCK. Caller
// holds the writer lock.
func (c *Clock) watchdogCheck(now int64) {
	if c.tb.remainingPhaseNS != 0 && c.tb.remainingPhaseNS == c.lastRemainingPhaseNS {
		c.stuckPolls++
		if c.stuckPolls == c.cfg.WatchdogStuckPolls {
			payload := eventlog.WatchdogStuckPayload{
				StuckPolls:       uint32(c.stuckPolls),
				RemainingPhaseNS: c.tb.remainingPhaseNS,
			}
			c.sink.Emit(eventlog.TypeWatchdogStuck, now, payload.Encode())
			log.WithField("remaining_phase_ns", c.tb.remainingPhaseNS).
				Warn("swclock: servo appears stuck")
		}
	} else {
		c.stuckPolls = 0
	}
	c.lastRemainingPhaseNS = c.tb.remainingPhaseNS
}

// sanityCheck logs (never errors) when internal state drifts outside
// the ranges spec 9 calls out as implausible. Caller holds the writer
// lock.
func (c *Clock) sanityCheck() {
	if abs64(c.tb.remainingPhaseNS) > 1_000_000_000 {
		log.WithField("remaining_phase_ns", c.tb.remainingPhaseNS).
			Warn("swclock: remaining phase exceeds 1s")
	}
	if math.Abs(c.tb.piIntErrorS) > 1.0 {
		log.WithField("pi_int_error_s", c.tb.piIntErrorS).
			Warn("swclock: integral accumulator exceeds 1s")
	}
	if math.Abs(c.tb.piFreqPPM) > c.cfg.Servo.MaxPPM+50 {
		log.WithField("pi_freq_ppm", c.tb.piFreqPPM).
			Warn("swclock: pi frequency exceeds clamp plus margin")
	}
}

// monitorLoop recomputes the monitor snapshot on cfg.MonitorRecomputeEvery.
func (c *Clock) monitorLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.MonitorRecomputeEvery)
	defer ticker.Stop()

	alert := func(name string, value, threshold float64) {
		metricIDs := map[string]uint16{
			"mtie_1s": 1, "mtie_10s": 2, "tdev_1s": 3, "max_abs_te": 4,
		}
		payload := eventlog.ThresholdCrossPayload{
			MetricID:  metricIDs[name],
			Value:     value,
			Threshold: threshold,
		}
		// every event producer holds the writer lock, so this goroutine
		// never pushes onto the ring concurrently with the poll task.
		c.mu.Lock()
		c.sink.Emit(eventlog.TypeThresholdCross, c.mono.NowNS(), payload.Encode())
		c.mu.Unlock()
		log.WithFields(log.Fields{"metric": name, "value": value, "threshold": threshold}).
			Warn("swclock: threshold crossed")
	}

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			c.mon.Compute(t, alert)
		}
	}
}
