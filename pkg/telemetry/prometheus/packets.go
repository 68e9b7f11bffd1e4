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
)

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

var (
	promPacketLabels = []string{"handle_id", "direction"}

	promPacketTotal *prometheus.GaugeVec
	promPacketBytes *prometheus.GaugeVec
	promPacketLost  *prometheus.GaugeVec
	promRTT         *prometheus.GaugeVec
	promSlowLink    *prometheus.CounterVec
)

func initPacketStats(clientID string) {
	promPacketTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "packet",
		Name:        "total",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, promPacketLabels)
	promPacketBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "packet",
		Name:        "bytes",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, promPacketLabels)
	promPacketLost = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "packet",
		Name:        "lost",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, promPacketLabels)
	promRTT = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   janusNamespace,
		Subsystem:   "ice",
		Name:        "rtt_ms",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"handle_id"})
	promSlowLink = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   janusNamespace,
		Subsystem:   "slowlink",
		Name:        "total",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, []string{"direction"})

	prometheus.MustRegister(promPacketTotal)
	prometheus.MustRegister(promPacketBytes)
	prometheus.MustRegister(promPacketLost)
	prometheus.MustRegister(promRTT)
	prometheus.MustRegister(promSlowLink)
}

// SetHandleTraffic publishes cumulative counters polled from a peer
// connection.
func SetHandleTraffic(handleID string, direction Direction, packets uint64, bytes uint64, lost int64) {
	if !initialized.Load() {
		return
	}
	promPacketTotal.WithLabelValues(handleID, string(direction)).Set(float64(packets))
	promPacketBytes.WithLabelValues(handleID, string(direction)).Set(float64(bytes))
	promPacketLost.WithLabelValues(handleID, string(direction)).Set(float64(lost))
}

func SetHandleRTT(handleID string, rttMs float64) {
	if !initialized.Load() {
		return
	}
	promRTT.WithLabelValues(handleID).Set(rttMs)
}

func RemoveHandleTraffic(handleID string) {
	if !initialized.Load() {
		return
	}
	for _, dir := range []Direction{Incoming, Outgoing} {
		promPacketTotal.DeleteLabelValues(handleID, string(dir))
		promPacketBytes.DeleteLabelValues(handleID, string(dir))
		promPacketLost.DeleteLabelValues(handleID, string(dir))
	}
	promRTT.DeleteLabelValues(handleID)
}

func RecordSlowLink(uplink bool) {
	if !initialized.Load() {
		return
	}
	direction := Incoming
	if uplink {
		direction = Outgoing
	}
	promSlowLink.WithLabelValues(string(direction)).Inc()
}
