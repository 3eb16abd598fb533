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
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// StatsHandler serves the monitor's latest snapshot as JSON.
type StatsHandler struct {
	m *Monitor
}

// NewStatsHandler wraps m as an http.Handler.
func NewStatsHandler(m *Monitor) *StatsHandler {
	return &StatsHandler{m: m}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.m.GetMetrics()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	js, err := json.Marshal(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.WithError(err).Warn("swclock: failed writing stats response")
	}
}
