package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"

	"math-tutor/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler      *Handler
	middleware   *middleware.Middleware
	jwt          *jwt.HertzJWTMiddleware
	corsEnabled  bool
	allowOrigins []string
	rateLimitRPS int
	prometheus   bool
	extra        []app.HandlerFunc
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{
		handler:     handler,
		middleware:  middleware,
		corsEnabled: true,
		prometheus:  true,
	}
}

// SetJWT 启用 JWT 校验，作用于会写入状态的 /api/feedback 与 /api/benchmark
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) {
	r.jwt = j
}

// SetCORS 设置 CORS；enable=false 时不下发任何 CORS 头
func (r *Router) SetCORS(enable bool, allowOrigins []string) {
	r.corsEnabled = enable
	r.allowOrigins = allowOrigins
}

// SetRateLimit 全局限流，rps<=0 表示关闭
func (r *Router) SetRateLimit(rps int) {
	r.rateLimitRPS = rps
}

// SetPrometheus 是否暴露 /metrics
func (r *Router) SetPrometheus(enable bool) {
	r.prometheus = enable
}

// Use 追加全局中间件（如链路追踪），须在 Build 之前调用
func (r *Router) Use(mw ...app.HandlerFunc) {
	r.extra = append(r.extra, mw...)
}

// Build 创建 Hertz 实例并注册全部路由；opts 可附加链路追踪等选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	h := server.New(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)

	h.Use(r.middleware.Recovery(), r.middleware.RequestID(), r.middleware.AccessLog())
	if len(r.extra) > 0 {
		h.Use(r.extra...)
	}
	if r.corsEnabled {
		h.Use(r.middleware.CORS(r.allowOrigins))
		h.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {
			c.AbortWithStatus(consts.StatusNoContent)
		})
	}
	if r.rateLimitRPS > 0 {
		h.Use(r.middleware.RateLimit(r.rateLimitRPS))
	}

	h.GET("/", r.handler.Root)
	h.GET("/health", r.handler.HealthCheck)
	if r.prometheus {
		h.GET("/metrics", r.handler.Prometheus)
	}

	api := h.Group("/api")
	{
		api.GET("/status", r.handler.Status)
		api.POST("/query", r.handler.Query)
		api.GET("/metrics", r.handler.Metrics)
		api.POST("/feedback", r.protected(r.handler.Feedback)...)
		api.POST("/benchmark", r.protected(r.handler.Benchmark)...)
	}

	return h
}

// protected 在启用 JWT 时给 handler 加上校验
func (r *Router) protected(handler app.HandlerFunc) []app.HandlerFunc {
	if r.jwt == nil {
		return []app.HandlerFunc{handler}
	}
	return []app.HandlerFunc{r.jwt.MiddlewareFunc(), handler}
}
