package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"math-tutor/internal/feedback"
	"math-tutor/internal/pipeline/common"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "向 API 服务提问",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出原始 JSON")
	return cmd
}

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	req := common.FeedbackRequest{}
	cmd := &cobra.Command{
		Use:   "feedback <query_id>",
		Short: "提交对某次应答的反馈",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.QueryID = args[0]
			if req.Rating < 1 || req.Rating > 5 {
				return fmt.Errorf("--rating 必须在 1-5 之间")
			}
			resp, err := opts.client().feedback(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Message)
			if resp.UpdatedResponse != nil {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Updated response:")
				printResponse(out, resp.UpdatedResponse)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&req.Rating, "rating", 0, "评分 1-5")
	cmd.Flags().BoolVar(&req.IsCorrect, "correct", false, "答案是否正确")
	cmd.Flags().StringVar(&req.FeedbackText, "text", "", "反馈说明")
	cmd.Flags().StringVar(&req.SuggestedAnswer, "suggest", "", "建议的正确答案")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "查看反馈统计指标",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.client().metrics(cmd.Context())
			if err != nil {
				return err
			}
			printMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "查看服务状态与外部依赖配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().status(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, st)
		},
	}
}

func newFeedbackLogCmd(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "feedback-log",
		Short: "打印本地反馈日志文件的汇总与明细",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No feedback file found at %s\n", path)
				return nil
			}
			doc, err := feedback.ReadDocument(path)
			if err != nil {
				return err
			}
			printFeedbackLog(cmd.OutOrStdout(), path, doc)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "data/feedback.json", "反馈日志文件")
	return cmd
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
