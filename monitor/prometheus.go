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

package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter periodically scrapes a Monitor's latest snapshot
// into a dedicated registry, served over /metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry
	m        *Monitor
	interval time.Duration

	teMean  prometheus.Gauge
	teStd   prometheus.Gauge
	teMax   prometheus.Gauge
	mtie1s  prometheus.Gauge
	mtie10s prometheus.Gauge
	tdev1s  prometheus.Gauge
}

// NewPrometheusExporter creates an exporter that scrapes m every
// interval.
func NewPrometheusExporter(m *Monitor, interval time.Duration) *PrometheusExporter {
	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		m:        m,
		interval: interval,
		teMean:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_te_mean_ns", Help: "mean time error, ns"}),
		teStd:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_te_std_ns", Help: "time error stddev, ns"}),
		teMax:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_te_max_ns", Help: "max time error, ns"}),
		mtie1s:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_mtie_1s_ns", Help: "MTIE(1s), ns"}),
		mtie10s:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_mtie_10s_ns", Help: "MTIE(10s), ns"}),
		tdev1s:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "swclock_tdev_1s_ns", Help: "TDEV(1s), ns"}),
	}
	e.registry.MustRegister(e.teMean, e.teStd, e.teMax, e.mtie1s, e.mtie10s, e.tdev1s)
	return e
}

// Handler returns the /metrics http.Handler for this exporter's registry.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Run scrapes the monitor on every tick until stop is closed.
func (e *PrometheusExporter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Scrape()
		}
	}
}

// Scrape pulls the monitor's latest snapshot into the exporter's gauges
// on demand, independent of Run's ticker.
func (e *PrometheusExporter) Scrape() {
	snap, err := e.m.GetMetrics()
	if err != nil {
		log.WithError(err).Debug("swclock: prometheus scrape skipped, metrics not ready")
		return
	}
	e.teMean.Set(snap.TEStats.Mean)
	e.teStd.Set(snap.TEStats.Std)
	e.teMax.Set(snap.TEStats.Max)
	e.mtie1s.Set(snap.MTIE[1])
	e.mtie10s.Set(snap.MTIE[10])
	e.tdev1s.Set(snap.TDEV[1])
}
