// Copyright 2026 fanjia1024
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

package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus(t *testing.T) {
	before := testutil.ToFloat64(QueryTotal.WithLabelValues("knowledge_base"))
	QueryTotal.WithLabelValues("knowledge_base").Inc()
	StageDuration.WithLabelValues("ROUTER").Observe(0.01)
	assert.Equal(t, before+1, testutil.ToFloat64(QueryTotal.WithLabelValues("knowledge_base")))

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.True(t, strings.Contains(out, `tutor_query_total{route="knowledge_base"}`), out)
	assert.Contains(t, out, "tutor_stage_duration_seconds_bucket")
}
