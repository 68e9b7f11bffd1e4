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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promTransactionTime      *prometheus.HistogramVec
	promTransactionTotal     *prometheus.CounterVec
	promTransactionAbandoned prometheus.Counter
	promTransactionPending   prometheus.Gauge
)

func initTransactionStats(clientID string) {
	promTransactionTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   janusNamespace,
		Subsystem:   "transaction",
		Name:        "reply_time_ms",
		ConstLabels: prometheus.Labels{"client_id": clientID},
		Buckets:     []float64{10, 50, 100, 300, 500, 1000, 1500, 2000, 5000, 10000},
	}, []string{"request"})
	promTransactionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "transaction",
		Name:        "total",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"request", "reply"})
	promTransactionAbandoned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "transaction",
		Name:        "abandoned",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	})
	promTransactionPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "transaction",
		Name:        "pending",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	})

	prometheus.MustRegister(promTransactionTime)
	prometheus.MustRegister(promTransactionTotal)
	prometheus.MustRegister(promTransactionAbandoned)
	prometheus.MustRegister(promTransactionPending)
}

func AddPendingTransaction() {
	if !initialized.Load() {
		return
	}
	promTransactionPending.Inc()
}

// RecordTransaction records a reply matched to a pending request.
func RecordTransaction(request string, reply string, elapsed time.Duration) {
	if !initialized.Load() {
		return
	}
	promTransactionPending.Dec()
	promTransactionTotal.WithLabelValues(request, reply).Inc()
	promTransactionTime.WithLabelValues(request).Observe(float64(elapsed.Milliseconds()))
}

func RecordAbandonedTransactions(count int) {
	if !initialized.Load() || count == 0 {
		return
	}
	promTransactionPending.Sub(float64(count))
	promTransactionAbandoned.Add(float64(count))
}
