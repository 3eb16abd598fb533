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
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	log "github.com/sirupsen/logrus"
)

// AlertCallback is invoked synchronously, once per breach per
// recomputation, when a configured threshold is exceeded. It
// must not call back into the monitor.
type AlertCallback func(metricName string, value, threshold float64)

// ThresholdSet holds per-metric ceilings plus optional custom
// expressions evaluated against the same snapshot fields.
type ThresholdSet struct {
	MTIE1s    float64
	MTIE10s   float64
	TDEV1s    float64
	MaxAbsTE  float64

	// CustomExprs lets an operator express additional checks without a
	// core code change, e.g. "mtie_30s > 2 * tdev_10s". Each must
	// evaluate to a boolean; a true result fires name as the alert.
	CustomExprs map[string]string
	compiled    map[string]*govaluate.EvaluableExpression
}

// DefaultThresholds returns the documented defaults: MTIE(1s)<100us,
// MTIE(10s)<200us, TDEV(1s)<40us, max |TE|<300us. Units here are
// nanoseconds to match Snapshot.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		MTIE1s:   100_000,
		MTIE10s:  200_000,
		TDEV1s:   40_000,
		MaxAbsTE: 300_000,
	}
}

// Compile parses CustomExprs ahead of use; call once after populating
// CustomExprs and before passing the set to SetThresholds.
func (t *ThresholdSet) Compile() error {
	if len(t.CustomExprs) == 0 {
		return nil
	}
	t.compiled = make(map[string]*govaluate.EvaluableExpression, len(t.CustomExprs))
	for name, exprStr := range t.CustomExprs {
		expr, err := govaluate.NewEvaluableExpression(exprStr)
		if err != nil {
			return fmt.Errorf("compiling threshold expression %q: %w", name, err)
		}
		t.compiled[name] = expr
	}
	return nil
}

func evaluateThresholds(snap *Snapshot, t ThresholdSet, alert AlertCallback) {
	if v := snap.MTIE[1]; t.MTIE1s > 0 && v > t.MTIE1s {
		alert("mtie_1s", v, t.MTIE1s)
	}
	if v := snap.MTIE[10]; t.MTIE10s > 0 && v > t.MTIE10s {
		alert("mtie_10s", v, t.MTIE10s)
	}
	if v := snap.TDEV[1]; t.TDEV1s > 0 && v > t.TDEV1s {
		alert("tdev_1s", v, t.TDEV1s)
	}
	if maxAbs := math.Max(math.Abs(snap.TEStats.Max), math.Abs(snap.TEStats.Min)); t.MaxAbsTE > 0 && maxAbs > t.MaxAbsTE {
		alert("max_abs_te", maxAbs, t.MaxAbsTE)
	}

	for name, expr := range t.compiled {
		params := map[string]interface{}{
			"mtie_1s":  snap.MTIE[1],
			"mtie_10s": snap.MTIE[10],
			"mtie_30s": snap.MTIE[30],
			"mtie_60s": snap.MTIE[60],
			"tdev_0_1s": snap.TDEV[0.1],
			"tdev_1s":  snap.TDEV[1],
			"tdev_10s": snap.TDEV[10],
			"te_mean":  snap.TEStats.Mean,
			"te_std":   snap.TEStats.Std,
			"te_max":   snap.TEStats.Max,
			"te_min":   snap.TEStats.Min,
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			log.WithError(err).WithField("expr", name).Warn("swclock: threshold expression evaluation failed")
			continue
		}
		if breached, ok := result.(bool); ok && breached {
			alert(name, 0, 0)
		}
	}
}
