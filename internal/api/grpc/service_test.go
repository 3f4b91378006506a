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

package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_ReportsDependencyStatus(t *testing.T) {
	s := NewServer(Status{GenerationConfigured: true, SearchConfigured: false})
	require.NoError(t, s.Start("127.0.0.1:0"))
	defer s.GracefulStop()

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := map[string]healthpb.HealthCheckResponse_ServingStatus{
		"":                healthpb.HealthCheckResponse_SERVING,
		ServiceGeneration: healthpb.HealthCheckResponse_SERVING,
		ServiceSearch:     healthpb.HealthCheckResponse_NOT_SERVING,
	}
	for service, want := range cases {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err, service)
		assert.Equal(t, want, resp.GetStatus(), service)
	}

	s.SetStatus(Status{GenerationConfigured: true, SearchConfigured: true})
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceSearch})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_AddrBeforeStart(t *testing.T) {
	assert.Empty(t, NewServer(Status{}).Addr())
}
