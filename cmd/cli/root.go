package main

import (
	"time"

	"github.com/spf13/cobra"
)

// rootOptions 全局 flag
type rootOptions struct {
	apiURL     string
	configPath string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tutor",
		Short:         "Math Professor Agent 命令行工具",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", apiBaseURL(), "API 服务地址（也可用 TUTOR_API_URL）")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "本地命令使用的配置文件，默认 configs/api.yaml")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "请求超时")

	root.AddCommand(
		newAskCmd(opts),
		newFeedbackCmd(opts),
		newMetricsCmd(opts),
		newHealthCmd(opts),
		newFeedbackLogCmd(opts),
		newKBCmd(opts),
		newBenchmarkCmd(opts),
	)
	return root
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.apiURL, o.timeout)
}
