// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics contains the metrics definitions recorded for every
// outbound call the credential clients make (token endpoint, STS exchange,
// impersonation, signBlob, metadata probes).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboundStatus is the outcome label attached to an outbound RPC metric.
type OutboundStatus string

const (
	StatusOK      OutboundStatus = "ok"
	StatusError   OutboundStatus = "error"
	StatusTimeout OutboundStatus = "timeout"
)

// Outbound RPC kinds, one per network leg the spec names.
const (
	KindTokenEndpoint  = "token_endpoint"
	KindSTSExchange    = "sts_exchange"
	KindImpersonate    = "impersonate"
	KindSignBlob       = "sign_blob"
	KindMetadataProbe  = "metadata_probe"
	KindResourceManager = "resource_manager"
)

var (
	// timeSinceSeconds is indirected for tests.
	timeSinceSeconds = func(start time.Time) float64 {
		return time.Since(start).Seconds()
	}

	outboundRPCCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcpauth_outbound_rpc_count",
		Help: "Count of outbound RPCs issued while resolving or refreshing credentials.",
	}, []string{"status", "kind"})

	outboundRPCLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "gcpauth_outbound_rpc_latency_seconds",
		Help: "Latency of outbound RPCs issued while resolving or refreshing credentials.",
	}, []string{"status", "kind"})

	refreshCoalesced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcpauth_refresh_coalesced_total",
		Help: "Count of GetAccessToken calls that joined an in-flight refresh instead of starting a new one.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(outboundRPCCount, outboundRPCLatency, refreshCoalesced)
}

// StartRecorder marks the start of an outbound RPC of the given kind. The
// caller must invoke the returned function exactly once with the outcome.
func StartRecorder(kind string) func(status OutboundStatus) {
	start := time.Now()
	return func(status OutboundStatus) {
		outboundRPCCount.WithLabelValues(string(status), kind).Inc()
		outboundRPCLatency.WithLabelValues(string(status), kind).Observe(timeSinceSeconds(start))
	}
}

// RecordCoalescedRefresh increments the counter of refreshes that were
// satisfied by an already in-flight singleflight call.
func RecordCoalescedRefresh(kind string) {
	refreshCoalesced.WithLabelValues(kind).Inc()
}
