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

// Package websearch Tavily 网络搜索客户端：任何失败都降级为空结果
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
	"math-tutor/pkg/tracing"
)

// DefaultBaseURL Tavily API 地址
const DefaultBaseURL = "https://api.tavily.com"

// DefaultDomains 只检索教育类站点
var DefaultDomains = []string{
	"wikipedia.org",
	"mathworld.wolfram.com",
	"khanacademy.org",
	"brilliant.org",
	"math.stackexchange.com",
}

// Config Tavily 客户端配置
type Config struct {
	APIKey  string
	BaseURL string
	Domains []string
	Timeout time.Duration
}

// TavilyClient Tavily 搜索客户端
type TavilyClient struct {
	apiKey  string
	baseURL string
	domains []string
	client  *resty.Client
	logger  *log.Logger
}

// NewTavilyClient 创建客户端；APIKey 为空时 Search 总是返回空结果
func NewTavilyClient(cfg Config, logger *log.Logger) *TavilyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Domains) == 0 {
		cfg.Domains = DefaultDomains
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)

	return &TavilyClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		domains: cfg.Domains,
		client:  client,
		logger:  logger,
	}
}

// Configured 是否配置了 API Key
func (c *TavilyClient) Configured() bool {
	return c.apiKey != ""
}

type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeAnswer  bool     `json:"include_answer"`
	IncludeDomains []string `json:"include_domains"`
}

type searchResponse struct {
	Results []common.WebResult `json:"results"`
}

// Search 返回按服务商顺序排列的结果；失败只记日志
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) []common.WebResult {
	if !c.Configured() {
		c.logger.Warn("未配置 Tavily API Key，跳过网络搜索")
		return []common.WebResult{}
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	ctx, span := tracing.StartExternalSpan(ctx, "tavily", "search")
	results, err := c.search(ctx, query, maxResults)
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.ExternalCallTotal.WithLabelValues("search", "error").Inc()
		c.logger.Error("网络搜索失败，降级为空结果", "error", err)
		return []common.WebResult{}
	}
	metrics.ExternalCallTotal.WithLabelValues("search", "ok").Inc()
	c.logger.Info("网络搜索完成", "results", len(results))
	return results
}

// search 失败时返回包装了 common.ErrSearchFailed 的错误
func (c *TavilyClient) search(ctx context.Context, query string, maxResults int) ([]common.WebResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(searchRequest{
			APIKey:         c.apiKey,
			Query:          query,
			SearchDepth:    "advanced",
			MaxResults:     maxResults,
			IncludeAnswer:  true,
			IncludeDomains: c.domains,
		}).
		Post(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("%w: 请求 tavily: %w", common.ErrSearchFailed, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: tavily 返回 HTTP %d", common.ErrSearchFailed, resp.StatusCode())
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: 解析 tavily 响应: %w", common.ErrSearchFailed, err)
	}
	if parsed.Results == nil {
		return []common.WebResult{}, nil
	}
	return parsed.Results, nil
}
