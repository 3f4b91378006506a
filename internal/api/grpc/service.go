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

// Package grpc 提供标准 gRPC 健康检查服务；按外部依赖是否已配置上报各子服务状态。
package grpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// 子服务名，供探针按依赖粒度检查
const (
	ServiceGeneration = "tutor.generation"
	ServiceSearch     = "tutor.search"
)

// Status 外部依赖配置状态
type Status struct {
	GenerationConfigured bool
	SearchConfigured     bool
}

// Server gRPC 服务端，持有 grpc.Server、health 服务与 Listener
type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewServer 创建健康检查服务并按 status 设置初始状态
func NewServer(status Status) *Server {
	s := &Server{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.SetStatus(status)
	return s
}

// SetStatus 更新各子服务状态；"" 总是 SERVING
func (s *Server) SetStatus(status Status) {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceGeneration, servingStatus(status.GenerationConfigured))
	s.health.SetServingStatus(ServiceSearch, servingStatus(status.SearchConfigured))
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Start 监听 addr（如 ":9090"）并在后台 Serve
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	s.lis = lis
	go func() {
		_ = s.srv.Serve(lis)
	}()
	return nil
}

// Addr 实际监听地址；未启动时为空
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// GracefulStop 将所有子服务置为 NOT_SERVING 后停止
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
