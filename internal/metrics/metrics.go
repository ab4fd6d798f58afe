// Copyright 2026 Device Update Agent Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the engine's Prometheus instrumentation:
// reports sent, phase transitions, handler failures, and persistence
// writes. Collectors are package-level promauto vectors, registered
// against the default registry on import, following the filewatcher
// controller's pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_reports_sent_total",
			Help: "Total reported-property documents sent, by reported state.",
		},
		[]string{"state"},
	)

	reportsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_reports_failed_total",
			Help: "Total reported-property sends that failed and were queued for retry.",
		},
		[]string{"state"},
	)

	phaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_phase_transitions_total",
			Help: "Total workflow state-machine transitions, by origin and destination state.",
		},
		[]string{"from", "to"},
	)

	handlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_handler_failures_total",
			Help: "Total content-handler phase failures, by component and cause of the extended result code.",
		},
		[]string{"component", "cause"},
	)

	persistenceWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_persistence_writes_total",
			Help: "Total persistence-store record writes.",
		},
	)

	persistenceWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deviceupdate_agent_persistence_write_failures_total",
			Help: "Total persistence-store record writes that returned an error.",
		},
	)
)

// RecordReportSent increments the sent counter for state.
func RecordReportSent(state string) {
	reportsSent.WithLabelValues(state).Inc()
}

// RecordReportFailed increments the failed-send counter for state.
func RecordReportFailed(state string) {
	reportsFailed.WithLabelValues(state).Inc()
}

// RecordPhaseTransition increments the transition counter for from->to.
func RecordPhaseTransition(from, to string) {
	phaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordHandlerFailure increments the handler-failure counter for the
// given component/cause pair, decoded from a failing extended result code.
func RecordHandlerFailure(component, cause string) {
	handlerFailures.WithLabelValues(component, cause).Inc()
}

// RecordPersistenceWrite increments the write counter, and the failure
// counter too when err is non-nil.
func RecordPersistenceWrite(err error) {
	persistenceWrites.Inc()
	if err != nil {
		persistenceWriteFailures.Inc()
	}
}
