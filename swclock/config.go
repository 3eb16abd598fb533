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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/swclock/servo"
)

// Config is the clock's explicit configuration record: poll rate, servo
// gains, monitoring enable, and log paths all live here rather than
// behind environment variables. Alert thresholds are not part of Config:
// a monitored clock starts with monitor.DefaultThresholds, and
// Clock.SetThresholds replaces them.
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Servo        servo.Config  `yaml:"servo"`

	EnableServo      bool `yaml:"enable_servo"`
	EnableMonitoring bool `yaml:"enable_monitoring"`

	EventLogPath    string `yaml:"event_log_path"`
	EventRingBytes  int    `yaml:"event_ring_bytes"`
	VersionString   string `yaml:"version_string"`

	MonitorSampleRate      time.Duration `yaml:"monitor_sample_rate"`
	MonitorCapacity        int           `yaml:"monitor_capacity"`
	MonitorRecomputeEvery  time.Duration `yaml:"monitor_recompute_every"`

	WatchdogStuckPolls int `yaml:"watchdog_stuck_polls"`
}

// DefaultConfig returns the documented default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:          10 * time.Millisecond,
		Servo:                 servo.DefaultConfig(),
		EnableServo:           true,
		EnableMonitoring:      true,
		EventRingBytes:        1 << 20,
		VersionString:         "swclock",
		MonitorSampleRate:     10 * time.Millisecond, // 100 Hz
		MonitorCapacity:       36_000,
		MonitorRecomputeEvery: 10 * time.Second,
		WatchdogStuckPolls:    20,
	}
}

// EvalAndValidate checks the configuration is internally consistent.
func (c *Config) EvalAndValidate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("bad config: 'poll_interval' must be positive")
	}
	if c.Servo.MaxPPM <= 0 {
		return fmt.Errorf("bad config: 'servo.max_ppm' must be positive")
	}
	if c.Servo.PhaseEpsNS < 0 {
		return fmt.Errorf("bad config: 'servo.phase_eps_ns' must be non-negative")
	}
	if c.EnableMonitoring {
		if c.MonitorCapacity <= 0 {
			return fmt.Errorf("bad config: 'monitor_capacity' must be positive")
		}
		if c.MonitorSampleRate <= 0 {
			return fmt.Errorf("bad config: 'monitor_sample_rate' must be positive")
		}
		if c.MonitorRecomputeEvery <= 0 {
			return fmt.Errorf("bad config: 'monitor_recompute_every' must be positive")
		}
	}
	if c.WatchdogStuckPolls <= 0 {
		return fmt.Errorf("bad config: 'watchdog_stuck_polls' must be positive")
	}
	return nil
}

// LoadConfig reads a YAML configuration file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := c.EvalAndValidate(); err != nil {
		return nil, err
	}
	return &c, nil
}
