package main

import (
	"fmt"
	"os"

	"git-gauge/internal/config"
	"git-gauge/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootOptions 全局参数
type rootOptions struct {
	cfgFile string
	debug   bool
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Screen GitHub candidates against a list of skills",
		Long:          "git-gauge ranks a GitHub user's repositories against requested skills and writes a structured hiring report, using a generative model with a deterministic fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./git-gauge.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "log as JSON")

	root.AddCommand(
		newServeCmd(opts),
		newAnalyzeCmd(opts),
		newScoreCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// loadConfig 依次读取 .env、配置文件、环境变量，命令行的 --debug/--json 优先
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	v := viper.New()
	if err := config.Prepare(v, opts.cfgFile); err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("debug"); f != nil && f.Changed {
		v.Set("log.debug", opts.debug)
	}
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v.Set("log.json", opts.json)
	}
	return config.Load(v)
}

// newLogger serve 写 stdout，一次性命令写 stderr，stdout 只留结果
func newLogger(cfg *config.Config, output string) (*zap.Logger, error) {
	return logger.NewWithOutput(cfg.Log.JSON, cfg.Log.Debug, output)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
