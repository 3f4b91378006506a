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

	"github.com/spf13/cobra"

	"math-tutor/internal/app"
	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/config"
	"math-tutor/pkg/tracing"
)

// 以下命令不经过 API 服务，直接在本进程内装配 Bootstrap

func loadLocalConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadAPIConfig()
	}
	return config.LoadConfig(path)
}

func withBootstrap(ctx context.Context, opts *rootOptions, fn func(*app.Bootstrap) error) error {
	cfg, err := loadLocalConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	shutdown := initTracing(cfg)
	defer shutdown()

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

// initTracing 开启 monitoring.tracing 时为本地命令初始化 tracer
func initTracing(cfg *config.Config) func() {
	t := cfg.Monitoring.Tracing
	if !t.Enable || t.ExportEndpoint == "" {
		return func() {}
	}
	name := t.ServiceName
	if name == "" {
		name = "math-tutor-cli"
	}
	tp, err := tracing.InitTracer(tracing.OTelConfig{
		ServiceName:    name,
		ExportEndpoint: t.ExportEndpoint,
		Insecure:       t.Insecure,
	})
	if err != nil {
		return func() {}
	}
	return func() { _ = tp.Shutdown(context.Background()) }
}

func newKBCmd(opts *rootOptions) *cobra.Command {
	kb := &cobra.Command{
		Use:   "kb",
		Short: "知识库管理",
	}
	kb.AddCommand(newKBLoadCmd(opts), newKBSearchCmd(opts))
	return kb
}

func newKBLoadCmd(opts *rootOptions) *cobra.Command {
	var dataset string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "把题库 JSON 写入向量库",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBootstrap(cmd.Context(), opts, func(b *app.Bootstrap) error {
				path := dataset
				if path == "" {
					path = b.Config.Knowledge.DatasetPath
				}
				n, err := b.Loader.LoadFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d questions from %s into %s\n", n, path, b.Backend.Type)
				if b.Backend.Type == "memory" {
					fmt.Fprintln(cmd.OutOrStdout(), "warning: memory backend does not persist across runs")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "题库文件，默认 knowledge.dataset_path")
	return cmd
}

func newKBSearchCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "在知识库中检索相似题目",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBootstrap(cmd.Context(), opts, func(b *app.Bootstrap) error {
				k := topK
				if k <= 0 {
					k = b.Config.Retrieval.TopK
				}
				docs, err := b.Searcher.Search(cmd.Context(), args[0], k)
				if err != nil {
					return err
				}
				printSearchResults(cmd.OutOrStdout(), args[0], docs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "返回条数，默认 retrieval.top_k")
	return cmd
}

func newBenchmarkCmd(opts *rootOptions) *cobra.Command {
	req := common.BenchmarkRequest{}
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "在本地对题库运行基准评测",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.NumSamples < 0 {
				return fmt.Errorf("--samples 不能为负数")
			}
			return withBootstrap(cmd.Context(), opts, func(b *app.Bootstrap) error {
				result, err := b.Benchmark.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				printBenchmark(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&req.NumSamples, "samples", 0, "抽样题数，0 表示全部")
	cmd.Flags().StringSliceVar(&req.Subjects, "subject", nil, "只评测指定学科，可重复")
	return cmd
}
