// Package cli 命令行入口：serve、play、gestures、config。
package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"avatar/config"
	"avatar/lexicon"
	"avatar/logging"
	"avatar/translate"
)

// commandContext 各子命令共享的配置与日志器，按需加载一次
type commandContext struct {
	configFlag *string
	logLevel   *string
	envFile    *string

	once   sync.Once
	config *config.Config
	logger *slog.Logger
	err    error
}

func (c *commandContext) ensure(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	c.once.Do(func() {
		if c.envFile != nil && *c.envFile != "" {
			// .env 不存在时忽略
			_ = godotenv.Load(*c.envFile)
		}

		cfg, _, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		if c.logLevel != nil && *c.logLevel != "" {
			cfg.Log.Level = *c.logLevel
		}

		logger, err := logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.logger, c.err
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	var configFlag, logLevel, envFile string
	ctx := &commandContext{configFlag: &configFlag, logLevel: &logLevel, envFile: &envFile}

	rootCmd := &cobra.Command{
		Use:           "avatar",
		Short:         "手语虚拟形象动画播放服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.DefaultPath, "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "启动前加载的 .env 文件")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newPlayCommand(ctx))
	rootCmd.AddCommand(newGesturesCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// Execute 运行命令行
func Execute() error {
	return NewRootCommand().Execute()
}

// loadLexicon 配置了词典文件时加载文件，否则使用内置词典
func loadLexicon(cfg *config.Config, logger *slog.Logger) (*lexicon.Registry, error) {
	opts := []lexicon.Option{
		lexicon.WithLogger(logger),
		lexicon.WithDefaultFace(cfg.Lexicon.DefaultFace),
	}
	if cfg.Lexicon.Path == "" {
		return lexicon.Builtin(opts...)
	}
	lex := lexicon.NewRegistry(opts...)
	if err := lex.Load(cfg.Lexicon.Path); err != nil {
		return nil, err
	}
	return lex, nil
}

// buildTranslator 按配置创建翻译器。返回的 closer 关闭缓存
func buildTranslator(cfg *config.Config, logger *slog.Logger) (translate.Translator, func() error, error) {
	var tr translate.Translator
	switch cfg.Translator.Mode {
	case config.TranslatorRemote:
		client := translate.NewClient(cfg.Translator.URL, translate.WithClientLogger(logger))
		if timeout := cfg.TranslatorTimeout(); timeout > 0 {
			translate.WithHTTPClient(newHTTPClient(timeout))(client)
		}
		tr = client
	default:
		tr = translate.NewLocal(logger)
	}

	if cfg.Translator.CachePath == "" {
		return tr, func() error { return nil }, nil
	}
	cache, err := translate.OpenCache(cfg.Translator.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("打开翻译缓存失败: %w", err)
	}
	logger.Info("💾 翻译缓存已启用", "path", cfg.Translator.CachePath)
	return translate.NewCachedTranslator(tr, cache, logger), cache.Close, nil
}
