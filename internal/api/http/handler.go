package http

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"

	"math-tutor/internal/api/http/middleware"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
)

const (
	serviceMessage = "Math Professor Agent API"
	serviceVersion = "1.0.0"
)

// QueryProcessor 处理一道提问（tutor.Agent）
type QueryProcessor interface {
	Process(ctx context.Context, question string) (*common.QueryResponse, error)
}

// FeedbackService 应答缓存、反馈记录与指标（feedback.Service）
type FeedbackService interface {
	Cache(ctx context.Context, resp *common.QueryResponse) error
	Submit(ctx context.Context, req common.FeedbackRequest) (*common.QueryResponse, error)
	Metrics() common.MetricsResponse
}

// BenchmarkRunner 基准评测（benchmark.Runner）
type BenchmarkRunner interface {
	Run(ctx context.Context, req common.BenchmarkRequest) (*common.BenchmarkResult, error)
}

// StatusInfo /api/status 展示的配置状态，不含任何凭据
type StatusInfo struct {
	GenerationConfigured bool
	SearchConfigured     bool
	GuardrailLLMEnabled  bool
	VectorBackend        string
}

// Handler HTTP 处理器
type Handler struct {
	agent        QueryProcessor
	feedback     FeedbackService
	benchmark    BenchmarkRunner
	status       StatusInfo
	validate     *validator.Validate
	queryTimeout time.Duration
	logger       *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(agent QueryProcessor, feedback FeedbackService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		agent:    agent,
		feedback: feedback,
		validate: validator.New(),
		logger:   logger,
	}
}

// SetBenchmarkRunner 注入基准评测；未注入时 /api/benchmark 返回 503
func (h *Handler) SetBenchmarkRunner(r BenchmarkRunner) {
	h.benchmark = r
}

// SetStatus 设置 /api/status 内容
func (h *Handler) SetStatus(s StatusInfo) {
	h.status = s
}

// SetQueryTimeout 单次提问的处理超时，<=0 表示不限制
func (h *Handler) SetQueryTimeout(d time.Duration) {
	h.queryTimeout = d
}

// check 校验请求体，失败时返回首个字段的 *common.ValidationError
func (h *Handler) check(req any) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return common.NewValidationError(fe.Field(), fe.Tag())
	}
	return common.NewValidationError("body", err.Error())
}

// Root 服务信息
func (h *Handler) Root(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{
		"message": serviceMessage,
		"version": serviceVersion,
		"status":  "running",
	})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"status": "healthy"})
}

// Status 各外部依赖是否已配置
func (h *Handler) Status(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":                "ok",
		"generation_configured": h.status.GenerationConfigured,
		"search_configured":     h.status.SearchConfigured,
		"guardrail_llm_enabled": h.status.GuardrailLLMEnabled,
		"vector_backend":        h.status.VectorBackend,
	})
}

// Query 处理提问，成功后缓存应答供反馈使用
func (h *Handler) Query(ctx context.Context, c *app.RequestContext) {
	var req common.QueryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "无效的请求体"})
		return
	}
	// 空问题交给输入护栏，以 reject 应答结束
	req.Question = strings.TrimSpace(req.Question)

	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	resp, err := h.agent.Process(ctx, req.Question)
	if err != nil {
		h.logger.Error("处理提问失败", "error", err, "request_id", middleware.GetRequestID(c))
		c.JSON(consts.StatusInternalServerError, map[string]string{
			"error":   "处理提问失败",
			"details": err.Error(),
		})
		return
	}
	if err := h.feedback.Cache(ctx, resp); err != nil {
		h.logger.Warn("缓存应答失败，该应答将无法接收反馈", "query_id", resp.QueryID, "error", err)
	}

	c.JSON(consts.StatusOK, resp)
}

// Feedback 提交反馈
func (h *Handler) Feedback(ctx context.Context, c *app.RequestContext) {
	var req common.FeedbackRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "无效的请求体"})
		return
	}
	if err := h.check(req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{
			"error":   "反馈参数不合法",
			"details": err.Error(),
		})
		return
	}

	updated, err := h.feedback.Submit(ctx, req)
	if err != nil {
		h.logger.Error("处理反馈失败", "query_id", req.QueryID, "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{
			"error":   "处理反馈失败",
			"details": err.Error(),
		})
		return
	}

	c.JSON(consts.StatusOK, common.FeedbackResponse{
		Success:         true,
		Message:         "Feedback received and processed",
		UpdatedResponse: updated,
	})
}

// Metrics 基于反馈统计的业务指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.feedback.Metrics())
}

// Benchmark 在数据集上运行评测；请求体可为空
func (h *Handler) Benchmark(ctx context.Context, c *app.RequestContext) {
	if h.benchmark == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "benchmark 未启用"})
		return
	}
	var req common.BenchmarkRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": "无效的请求体"})
			return
		}
	}
	if err := h.check(req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{
			"error":   "评测参数不合法",
			"details": err.Error(),
		})
		return
	}

	result, err := h.benchmark.Run(ctx, req)
	if err != nil {
		h.logger.Error("基准评测失败", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{
			"error":   "基准评测失败",
			"details": err.Error(),
		})
		return
	}
	c.JSON(consts.StatusOK, result)
}

// Prometheus 以文本格式导出进程内指标
func (h *Handler) Prometheus(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.String(consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
