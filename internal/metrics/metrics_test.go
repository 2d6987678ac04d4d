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

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func setLatency(seconds float64) {
	timeSinceSeconds = func(_ time.Time) float64 { return seconds }
}

func TestStartRecorder(t *testing.T) {
	recorder := StartRecorder("test_kind")
	setLatency(2)
	recorder(StatusOK)

	assert.Equal(t, float64(1), testutil.ToFloat64(outboundRPCCount.WithLabelValues("ok", "test_kind")))

	expected := `
	# HELP gcpauth_outbound_rpc_count Count of outbound RPCs issued while resolving or refreshing credentials.
	# TYPE gcpauth_outbound_rpc_count counter
	gcpauth_outbound_rpc_count{kind="test_kind",status="ok"} 1
	`
	if err := testutil.CollectAndCompare(outboundRPCCount, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collecting result:\n%s", err)
	}
}

func TestRecordCoalescedRefresh(t *testing.T) {
	before := testutil.ToFloat64(refreshCoalesced.WithLabelValues("service_account"))
	RecordCoalescedRefresh("service_account")
	after := testutil.ToFloat64(refreshCoalesced.WithLabelValues("service_account"))
	assert.Equal(t, before+1, after)
}
