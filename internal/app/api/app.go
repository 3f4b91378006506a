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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apigrpc "math-tutor/internal/api/grpc"
	"math-tutor/internal/api/http"
	"math-tutor/internal/api/http/middleware"
	"math-tutor/internal/app"
	"math-tutor/pkg/config"
	pkglog "math-tutor/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与 gRPC 健康检查）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *apigrpc.Server
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Config == nil {
		return nil, fmt.Errorf("bootstrap 未初始化")
	}
	cfg := bootstrap.Config
	status := bootstrap.Status()

	handler := http.NewHandler(bootstrap.Agent, bootstrap.Feedback, bootstrap.Logger)
	handler.SetBenchmarkRunner(bootstrap.Benchmark)
	handler.SetStatus(http.StatusInfo{
		GenerationConfigured: status.GenerationConfigured,
		SearchConfigured:     status.SearchConfigured,
		GuardrailLLMEnabled:  status.GuardrailLLMEnabled,
		VectorBackend:        status.VectorBackend,
	})
	handler.SetQueryTimeout(config.Duration(cfg.API.Timeout, 0))

	mw := middleware.NewMiddleware(bootstrap.Logger)
	router := http.NewRouter(handler, mw)
	router.SetCORS(cfg.API.CORS.Enable, cfg.API.CORS.AllowOrigins)
	router.SetPrometheus(cfg.Monitoring.Prometheus.Enable)
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS)
	}

	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := config.Duration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := config.Duration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh)
		if err != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用")
		}
	} else if cfg.API.Middleware.Auth {
		bootstrap.Logger.Warn("api.middleware.auth 已开启但未配置 jwt_key，将跳过认证")
	}

	appObj := &App{
		config: bootstrap,
		router: router,
	}
	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs := apigrpc.NewServer(apigrpc.Status{
			GenerationConfigured: status.GenerationConfigured,
			SearchConfigured:     status.SearchConfigured,
		})
		if err := gs.Start(fmt.Sprintf(":%d", cfg.API.Grpc.Port)); err != nil {
			bootstrap.Logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			appObj.grpcServer = gs
			bootstrap.Logger.Info("gRPC 健康检查服务已启动", "port", cfg.API.Grpc.Port)
		}
	}
	return appObj, nil
}

// Run 启动 HTTP 服务，addr 如 ":8000"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)
	cfg := a.config.Config

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(pkglog.ParseLevel(cfg.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	exportEndpoint := tracing.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tracing.Enable && exportEndpoint != "" {
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "math-tutor-api"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tracing.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tracerCfg := hertztracing.NewServerTracer()
		a.router.Use(hertztracing.ServerMiddleware(tracerCfg))
		a.hertz = a.router.Build(addr, tracerOpt)
		a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Close()
}
