// Copyright 2026 The jaffarPlus Authors
// This file is part of jaffarPlus.
//
// jaffarPlus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// jaffarPlus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with jaffarPlus. If not, see <http://www.gnu.org/licenses/>.

package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics is every counter/gauge the driver and its collaborators
// update during a search. A fresh Metrics is safe to register against
// its own private registry per engine run via Register; cmd/jaffar and
// the tests use NewMetrics directly without registering it.
type Metrics struct {
	DropsFailRule prometheus.Counter
	DropsDedup    prometheus.Counter
	DropsBudget   prometheus.Counter

	StepsTaken   prometheus.Counter
	FrontierSize prometheus.Gauge
	BestReward   prometheus.Gauge
}

// NewMetrics constructs an unregistered Metrics set (§7: "every drop of
// a child state increments a named counter").
func NewMetrics() *Metrics {
	return &Metrics{
		DropsFailRule: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaffarplus", Name: "drops_fail_rule_total",
			Help: "States dropped because a FAIL rule fired.",
		}),
		DropsDedup: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaffarplus", Name: "drops_dedup_total",
			Help: "States dropped as already present in HashDB.",
		}),
		DropsBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaffarplus", Name: "drops_budget_total",
			Help: "States dropped because StateDB had no free slot or HashDB was full.",
		}),
		StepsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jaffarplus", Name: "steps_taken_total",
			Help: "Edges successfully advanced and evaluated.",
		}),
		FrontierSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jaffarplus", Name: "frontier_size",
			Help: "Current frontier's live state count.",
		}),
		BestReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jaffarplus", Name: "best_reward",
			Help: "Best reward observed so far among winning states.",
		}),
	}
}

// Register attaches every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.DropsFailRule, m.DropsDedup, m.DropsBudget,
		m.StepsTaken, m.FrontierSize, m.BestReward,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
