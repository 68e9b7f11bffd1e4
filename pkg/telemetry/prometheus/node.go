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

const (
	janusNamespace string = "janus_client"
)

var (
	initialized atomic.Bool

	MessageCounter *prometheus.CounterVec
)

// Init registers every collector with the default registry. Recording
// functions are no-ops until Init has been called.
func Init(clientID string) {
	if initialized.Load() {
		return
	}

	MessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   janusNamespace,
			Subsystem:   "signal",
			Name:        "messages",
			ConstLabels: prometheus.Labels{"client_id": clientID},
		},
		[]string{"type", "direction"},
	)
	prometheus.MustRegister(MessageCounter)

	initTransactionStats(clientID)
	initSessionStats(clientID)
	initPacketStats(clientID)

	initialized.Store(true)
}

func IncrementMessage(kind string, direction Direction) {
	if !initialized.Load() {
		return
	}
	MessageCounter.WithLabelValues(kind, string(direction)).Inc()
}
