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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"math-tutor/internal/pipeline/common"
)

func apiBaseURL() string {
	if u := os.Getenv("TUTOR_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}

// apiClient 调用 API 服务的 resty 客户端
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if token := os.Getenv("TUTOR_API_TOKEN"); token != "" {
		c.SetAuthToken(token)
	}
	return &apiClient{http: c}
}

func (c *apiClient) ask(ctx context.Context, question string) (*common.QueryResponse, error) {
	var out common.QueryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(common.QueryRequest{Question: question}).
		SetResult(&out).
		Post("/api/query")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/query: %d %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

func (c *apiClient) feedback(ctx context.Context, req common.FeedbackRequest) (*common.FeedbackResponse, error) {
	var out common.FeedbackResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/feedback")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/feedback: %d %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

func (c *apiClient) metrics(ctx context.Context) (*common.MetricsResponse, error) {
	var out common.MetricsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/metrics")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/metrics: %d %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

func (c *apiClient) status(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/status: %d %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
