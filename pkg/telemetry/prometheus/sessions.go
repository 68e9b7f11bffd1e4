// Copyright 2023 LiveKit, Inc.
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

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	sessionCurrent atomic.Int32
	handleCurrent  atomic.Int32

	promSessionCurrent     prometheus.Gauge
	promHandleCurrent      *prometheus.GaugeVec
	promAttachCounter      *prometheus.CounterVec
	promNegotiationCounter *prometheus.CounterVec
	promServerEventCounter *prometheus.CounterVec
)

func initSessionStats(clientID string) {
	promSessionCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "session",
		Name:        "total",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	})
	promHandleCurrent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "handle",
		Name:        "total",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"plugin"})
	promAttachCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "handle",
		Name:        "attach",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"plugin", "state"})
	promNegotiationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "handle",
		Name:        "negotiation",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"type", "state"})
	promServerEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "handle",
		Name:        "server_event",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"type"})

	prometheus.MustRegister(promSessionCurrent)
	prometheus.MustRegister(promHandleCurrent)
	prometheus.MustRegister(promAttachCounter)
	prometheus.MustRegister(promNegotiationCounter)
	prometheus.MustRegister(promServerEventCounter)
}

func SessionStarted() {
	sessionCurrent.Inc()
	if initialized.Load() {
		promSessionCurrent.Inc()
	}
}

func SessionEnded() {
	sessionCurrent.Dec()
	if initialized.Load() {
		promSessionCurrent.Dec()
	}
}

func AddHandle(plugin string) {
	handleCurrent.Inc()
	if initialized.Load() {
		promHandleCurrent.WithLabelValues(plugin).Inc()
	}
}

func SubHandle(plugin string) {
	handleCurrent.Dec()
	if initialized.Load() {
		promHandleCurrent.WithLabelValues(plugin).Dec()
	}
}

func RecordAttach(plugin string, success bool) {
	if !initialized.Load() {
		return
	}
	promAttachCounter.WithLabelValues(plugin, stateLabel(success)).Inc()
}

// RecordNegotiation counts offer/answer rounds by outcome.
func RecordNegotiation(sdpType string, success bool) {
	if !initialized.Load() {
		return
	}
	promNegotiationCounter.WithLabelValues(sdpType, stateLabel(success)).Inc()
}

func RecordServerEvent(kind string) {
	if !initialized.Load() {
		return
	}
	promServerEventCounter.WithLabelValues(kind).Inc()
}

func CurrentSessions() int32 {
	return sessionCurrent.Load()
}

func CurrentHandles() int32 {
	return handleCurrent.Load()
}

func stateLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
