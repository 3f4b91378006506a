package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
)

// AccessLog 访问日志中间件：每个请求结束后记录 action、状态码与耗时
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		method := string(c.Method())
		path := string(c.Path())
		status := c.Response.StatusCode()
		args := []any{
			"action", determineAction(method, path),
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if status >= 500 {
			m.logger.Error("请求失败", args...)
			return
		}
		m.logger.Info("请求完成", args...)
	}
}

// determineAction 根据 HTTP 方法和路径确定操作类型
func determineAction(method string, path string) string {
	path = strings.TrimSuffix(path, "/")
	switch {
	case method == "POST" && path == "/api/query":
		return "ask"
	case method == "POST" && path == "/api/feedback":
		return "submit_feedback"
	case method == "POST" && path == "/api/benchmark":
		return "run_benchmark"
	case path == "/api/metrics":
		return "view_metrics"
	case path == "/metrics":
		return "scrape"
	case path == "/health" || path == "/api/status" || path == "":
		return "probe"
	}
	return "unknown"
}
