package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"avatar/api"
	"avatar/config"
	"avatar/renderer"
	"avatar/session"
)

const shutdownTimeout = 10 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// buildManager 组装词典、翻译器与会话管理器
func buildManager(cfg *config.Config, logger *slog.Logger, scheduler renderer.Scheduler) (*session.Manager, func() error, error) {
	lex, err := loadLexicon(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("加载手势词典失败: %w", err)
	}
	logger.Info("📚 手势词典已加载", "gestures", lex.Len(), "default_face", lex.DefaultFace())

	tr, closeTranslator, err := buildTranslator(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	manager := session.NewManager(session.Config{
		Mode:            cfg.Renderer.Mode,
		Fade:            cfg.Fade(),
		FacesDir:        cfg.Renderer.FacesDir,
		DispatchTimeout: cfg.DispatchTimeout(),
		Scheduler:       scheduler,
	}, lex, tr, logger)
	return manager, closeTranslator, nil
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP / WebSocket 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure(cmd)
			if err != nil {
				return err
			}

			manager, closeTranslator, err := buildManager(cfg, logger, renderer.RealScheduler())
			if err != nil {
				return err
			}
			defer func() {
				if err := closeTranslator(); err != nil {
					logger.Warn("⚠️ 关闭翻译缓存失败", "error", err)
				}
			}()
			defer manager.Close()

			if _, err := manager.Default(); err != nil {
				return fmt.Errorf("创建默认会话失败: %w", err)
			}

			gin.SetMode(cfg.Server.GinMode)
			r := api.NewEngine(cfg.Server.CORSOrigins)
			api.NewServer(manager, api.WithLogger(logger), api.WithModes(cfg.Renderer.Mode, cfg.Translator.Mode)).SetupRoutes(r)

			srv := &http.Server{Addr: cfg.Addr(), Handler: r}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("🌐 服务运行中",
					"addr", cfg.Addr(),
					"renderer", cfg.Renderer.Mode,
					"translator", cfg.Translator.Mode,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok && err != nil {
					return fmt.Errorf("服务启动失败: %w", err)
				}
				return nil
			case <-runCtx.Done():
			}

			logger.Info("🛑 收到退出信号，正在关闭服务")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("关闭服务失败: %w", err)
			}
			logger.Info("✅ 服务已关闭")
			return nil
		},
	}
}
