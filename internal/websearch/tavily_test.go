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

package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/internal/pipeline/common"
)

func TestTavilyClient_SearchSendsRequestBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"Quadratic formula","url":"https://en.wikipedia.org/wiki/Quadratic_formula","content":"x = (-b ± sqrt(b^2-4ac)) / 2a"},{"title":"","url":"","content":""}]}`))
	}))
	defer srv.Close()

	c := NewTavilyClient(Config{APIKey: "tv-key", BaseURL: srv.URL, Timeout: time.Second}, nil)
	results := c.Search(context.Background(), "quadratic formula", 4)

	require.Len(t, results, 2)
	assert.Equal(t, "Quadratic formula", results[0].Title)
	assert.Equal(t, "tv-key", got["api_key"])
	assert.Equal(t, "quadratic formula", got["query"])
	assert.Equal(t, "advanced", got["search_depth"])
	assert.Equal(t, float64(4), got["max_results"])
	assert.Equal(t, true, got["include_answer"])
	assert.Len(t, got["include_domains"], len(DefaultDomains))
}

func TestTavilyClient_FailsSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{name: "bad json", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewTavilyClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second}, nil)
			results := c.Search(context.Background(), "q", 5)
			assert.NotNil(t, results)
			assert.Empty(t, results)

			_, err := c.search(context.Background(), "q", 5)
			assert.ErrorIs(t, err, common.ErrSearchFailed)
		})
	}
}

func TestTavilyClient_UnreachableIsSearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewTavilyClient(Config{APIKey: "k", BaseURL: url, Timeout: time.Second}, nil)
	_, err := c.search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, common.ErrSearchFailed)
	assert.Empty(t, c.Search(context.Background(), "q", 5))
}

func TestTavilyClient_NoKeySkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewTavilyClient(Config{BaseURL: srv.URL}, nil)
	assert.False(t, c.Configured())
	assert.Empty(t, c.Search(context.Background(), "q", 5))
	assert.False(t, called)
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No web search results found.", FormatResults(nil))

	long := strings.Repeat("é", 400)
	out := FormatResults([]common.WebResult{
		{Title: "Derivative", URL: "https://mathworld.wolfram.com/Derivative.html", Content: "Rate of change"},
		{Content: long},
	})
	assert.True(t, strings.HasPrefix(out, "Web Search Results:\n\n"))
	assert.Contains(t, out, "1. Derivative\n   URL: https://mathworld.wolfram.com/Derivative.html\n   Content: Rate of change...\n\n")
	assert.Contains(t, out, "2. No title\n   URL: No URL\n")
	assert.Contains(t, out, "Content: "+strings.Repeat("é", 300)+"...")
	assert.NotContains(t, out, strings.Repeat("é", 301))
}

func TestSources(t *testing.T) {
	got := Sources([]common.WebResult{{URL: "https://a"}, {}, {URL: "https://c"}})
	assert.Equal(t, []string{"https://a", "", "https://c"}, got)
	assert.Empty(t, Sources(nil))
}
