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

// Package swclock implements a software-disciplined clock: a PI servo
// slews phase against a hardware monotonic-raw reference while a base
// frequency bias is applied multiplicatively, all behind a Linux-style
// adjtime/adjtimex control surface.
package swclock

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/facebook/swclock/eventlog"
	"github.com/facebook/swclock/monitor"
	"github.com/facebook/swclock/seal"
	"github.com/facebook/swclock/servo"
)

// defaultLogFlushInterval is how often the logger task drains the event
// ring when no caller-visible config knob exists for it.
const defaultLogFlushInterval = 50 * time.Millisecond

// Clock is the root handle (C11): it owns the time-base, PI servo
// state, event ring, logger task, poll task, and optional monitor. All
// subordinate tasks join on Close.
type Clock struct {
	mu sync.RWMutex // primary readers-writer lock

	tb      timeBase
	enabled bool
	status  int32
	tai     int32

	errEst     servo.ErrorEstimator
	maxErrorUS float64
	estErrorUS float64

	lastRemainingPhaseNS int64
	stuckPolls           int

	cfg  Config
	mono MonotonicSource
	sink LogSink

	ring       *eventlog.Ring
	logger     *eventlog.Logger
	logCloser  io.Closer
	logPath    string
	mon        *monitor.Monitor
	monitoring atomic.Bool

	stop   chan struct{}
	closed atomic.Bool

	monEG  *errgroup.Group
	pollEG *errgroup.Group
	logEG  *errgroup.Group
}

// New constructs a Clock per the lifecycle in spec 4.9: time-base
// initialized from mono and the system wall clock, servo state zeroed,
// event ring and logger spawned (if logWriter is non-nil, or if
// cfg.EventLogPath names a file), poll task spawned, monitor task
// spawned if cfg.EnableMonitoring.
func New(cfg Config, mono MonotonicSource, logWriter io.Writer) (*Clock, error) {
	if err := cfg.EvalAndValidate(); err != nil {
		return nil, err
	}
	if mono == nil {
		mono = NewSystemMonotonicSource()
	}

	now := mono.NowNS()
	wallRT := time.Now().UnixNano()

	c := &Clock{
		tb: timeBase{
			refMonoRawNS:      now,
			baseRTNS:          wallRT,
			baseMonoNS:        now,
			cachedTotalFactor: 1,
		},
		enabled: cfg.EnableServo,
		cfg:     cfg,
		mono:    mono,
		stop:    make(chan struct{}),
	}

	if logWriter == nil && cfg.EventLogPath != "" {
		f, err := os.Create(cfg.EventLogPath)
		if err != nil {
			return nil, fmt.Errorf("swclock: opening event log %q: %w", cfg.EventLogPath, err)
		}
		logWriter = f
		c.logPath = cfg.EventLogPath
	}

	c.ring = eventlog.NewRing(cfg.EventRingBytes)
	if logWriter != nil {
		logger, err := eventlog.NewLogger(c.ring, logWriter, cfg.VersionString, nil)
		if err != nil {
			return nil, fmt.Errorf("swclock: starting event logger: %w", err)
		}
		c.logger = logger
		c.sink = newRingSink(logger)
		if closer, ok := logWriter.(io.Closer); ok {
			c.logCloser = closer
		}
		c.logEG = new(errgroup.Group)
		c.logEG.Go(func() error {
			ticker := time.NewTicker(defaultLogFlushInterval)
			defer ticker.Stop()
			return logger.Run(c.stop, ticker.C)
		})
	} else {
		c.sink = nopSink{}
	}

	if cfg.EnableMonitoring {
		c.mon = monitor.New(cfg.MonitorCapacity, cfg.MonitorSampleRate)
		c.monitoring.Store(true)
	}

	c.pollEG = new(errgroup.Group)
	c.pollEG.Go(func() error {
		c.pollLoop(c.stop)
		return nil
	})

	if cfg.EnableMonitoring {
		c.monEG = new(errgroup.Group)
		c.monEG.Go(func() error {
			c.monitorLoop(c.stop)
			return nil
		})
	}

	return c, nil
}

// Close tears the clock down in the order spec 4.9 mandates: stop flag,
// join monitor, join poll, LOG_STOP event, join logger, close sinks.
func (c *Clock) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stop)

	if c.monEG != nil {
		_ = c.monEG.Wait()
	}
	if c.pollEG != nil {
		_ = c.pollEG.Wait()
	}
	c.sink.Emit(eventlog.TypeLogStop, c.mono.NowNS(), nil)
	if c.logEG != nil {
		_ = c.logEG.Wait()
		// the logger task may have made its final drain before LOG_STOP
		// was pushed; flush whatever is still pending.
		_, _ = c.logger.Drain()
	}
	if c.logCloser != nil {
		if err := c.logCloser.Close(); err != nil {
			return err
		}
	}
	if c.logPath != "" {
		if err := seal.Seal(c.logPath); err != nil {
			return fmt.Errorf("swclock: sealing event log: %w", err)
		}
	}
	return nil
}

// GetTime returns the current instant for id. MONOTONIC_RAW
// reads the hardware source directly and never consults the time-base.
func (c *Clock) GetTime(id ClockID) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !validClockID(id) {
		return 0, ErrInvalidClockID
	}
	if id == MonotonicRaw {
		return c.mono.NowNS(), nil
	}

	c.mu.RLock()
	snap := c.tb.snapshot()
	c.mu.RUnlock()

	now := c.mono.NowNS()
	return snap.extrapolate(now, id), nil
}

// SetTime steps base_rt_ns and clears servo state. Only
// Realtime is supported.
func (c *Clock) SetTime(id ClockID, ns int64) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !validClockID(id) {
		return ErrInvalidClockID
	}
	if id != Realtime {
		return ErrSettimeUnsupported
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.mono.NowNS()
	c.tb.rebase(now)
	c.tb.baseRTNS = ns
	c.tb.remainingPhaseNS = 0
	c.tb.piIntErrorS = 0
	c.tb.piFreqPPM = 0

	payload := eventlog.ClockResetPayload{ReasonCode: 1}
	c.sink.Emit(eventlog.TypeClockReset, now, payload.Encode())
	return nil
}

// Adjtime applies req's mode bits as a short sequence of pure mutations
// under the writer lock.
func (c *Clock) Adjtime(req TimexRequest) (TimexResponse, error) {
	if c.closed.Load() {
		return TimexResponse{}, ErrClosed
	}
	muts, err := decodeModes(req)
	if err != nil {
		return TimexResponse{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.mono.NowNS()
	c.tb.rebase(now)

	callPayload := eventlog.AdjtimeCallPayload{
		Modes:         req.Modes,
		OffsetNS:      normalizedOffsetNS(req),
		FreqScaledPPM: req.FreqScaledPPM,
	}
	c.sink.Emit(eventlog.TypeAdjtimeCall, now, callPayload.Encode())

	for _, m := range muts {
		m.apply(&c.tb)
		if sp, ok := m.(slewPhase); ok {
			startPayload := eventlog.SlewStartPayload{DeltaNS: sp.deltaNS, RemainingPhaseNS: c.tb.remainingPhaseNS}
			c.sink.Emit(eventlog.TypeSlewStart, now, startPayload.Encode())
		}
		if ss, ok := m.(setStatus); ok {
			c.status = ss.word
		}
		if st, ok := m.(setTAI); ok {
			c.tai = st.seconds
		}
	}

	resp := TimexResponse{
		Status:        c.status,
		FreqScaledPPM: c.tb.freqScaledPPM,
		MaxErrorUS:    int64(c.maxErrorUS),
		EstErrorUS:    int64(c.estErrorUS),
		Constant:      0,
		Precision:     1,
		Tick:          0,
		TAI:           c.tai,
	}

	retPayload := eventlog.AdjtimeReturnPayload{
		Modes:         req.Modes,
		FreqScaledPPM: c.tb.freqScaledPPM,
		ReturnCode:    0,
	}
	c.sink.Emit(eventlog.TypeAdjtimeReturn, now, retPayload.Encode())

	return resp, nil
}

func normalizedOffsetNS(req TimexRequest) int64 {
	if req.Modes&ModeNano != 0 {
		return req.OffsetUnit
	}
	return req.OffsetUnit * 1000
}

// EnableServo transitions the PI servo on or off. Disabling
// clears the integral and output but leaves remaining_phase_ns intact
// so re-enabling resumes the slew.
func (c *Clock) EnableServo(on bool) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.enabled {
		return
	}
	c.enabled = on
	now := c.mono.NowNS()
	if on {
		c.sink.Emit(eventlog.TypePIEnable, now, nil)
	} else {
		c.tb.piFreqPPM = 0
		c.tb.piIntErrorS = 0
		c.sink.Emit(eventlog.TypePIDisable, now, nil)
	}
}

// EnableMonitoring attaches or detaches the sliding-window monitor.
func (c *Clock) EnableMonitoring(on bool) {
	if c.closed.Load() {
		return
	}
	c.monitoring.Store(on)
}

// GetMetrics returns the monitor's latest published snapshot.
func (c *Clock) GetMetrics() (*monitor.Snapshot, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.mon == nil {
		return nil, ErrMetricsNotReady
	}
	return c.mon.GetMetrics()
}

// SetThresholds replaces the monitor's alert threshold configuration.
func (c *Clock) SetThresholds(t monitor.ThresholdSet) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.mon == nil {
		return ErrMetricsNotReady
	}
	c.mon.SetThresholds(t)
	return nil
}

// Monitor returns the sliding-window monitor backing GetMetrics, or nil
// if cfg.EnableMonitoring was false at construction. Callers that want
// an HTTP stats endpoint or a Prometheus exporter alongside the clock's
// own lifecycle attach one to this handle directly, e.g.
// monitor.NewStatsHandler(c.Monitor()) or
// monitor.NewPrometheusExporter(c.Monitor(), interval).
func (c *Clock) Monitor() *monitor.Monitor {
	return c.mon
}
