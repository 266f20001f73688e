package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/api"
	"github.com/wwwzy/medfleet/internal/fleet"
	"github.com/wwwzy/medfleet/internal/logging"
	"github.com/wwwzy/medfleet/internal/observability"
	"github.com/wwwzy/medfleet/internal/retention"
	"github.com/wwwzy/medfleet/internal/storage"
)

// serveCmd 代表 serve 命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 MedFleet HTTP 服务",
	Long: `启动 MedFleet 服务。
这将初始化数据库，启动审计记录清理任务，并在配置的地址上提供 HTTP 接口。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 上下文用于优雅退出
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		logger := newLogger()
		defer func() { _ = logger.Sync() }()

		// 2. 初始化存储
		logger.Info("正在初始化存储...", zap.String("path", cfg.Storage.Path))
		storeCfg := cfg.Storage
		storeCfg.Logger = logging.GormLogger(logger)
		store, err := storage.Open(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer store.Close()

		// 3. 初始化服务
		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		svc, err := fleet.NewService(store,
			fleet.WithLogger(logger),
			fleet.WithMetrics(metrics),
			fleet.WithSampleLimits(cfg.Metrics.DefaultLimit, cfg.Metrics.MaxLimit),
		)
		if err != nil {
			return fmt.Errorf("创建服务失败: %w", err)
		}

		// 4. 初始化后台任务
		var runners []retention.Runner
		if cfg.Retention.Enabled {
			ret, err := retention.NewCollector(store, cfg.Retention, logger.Named("retention"))
			if err != nil {
				return fmt.Errorf("创建 retention 任务失败: %w", err)
			}
			runners = append(runners, ret)
		}
		mgr := retention.NewManager(runners...)
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("启动后台任务失败: %w", err)
		}

		// 5. 启动 HTTP 服务
		srv, err := api.NewServer(svc, store, api.Options{
			JWTSecret:    []byte(cfg.Auth.JWTSecret),
			Logger:       logger.Named("api"),
			Gatherer:     prometheus.DefaultGatherer,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("创建 HTTP 服务失败: %w", err)
		}

		srvErr := make(chan error, 1)
		go func() {
			srvErr <- srv.Start(cfg.Server.Addr)
		}()

		// 6. 等待信号
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		fmt.Printf("MedFleet 已启动，监听 %s。按 Ctrl+C 停止。\n", cfg.Server.Addr)

		var runErr error
		select {
		case sig := <-sigChan:
			logger.Info("收到信号，正在关闭...", zap.String("signal", sig.String()))
		case err := <-srvErr:
			if err != nil {
				runErr = fmt.Errorf("HTTP 服务异常退出: %w", err)
			}
		}

		// 7. 优雅停止
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
		}

		mgr.Stop()
		if err := mgr.Wait(); err != nil && runErr == nil {
			runErr = fmt.Errorf("后台任务停止时发生错误: %w", err)
		}
		if runErr != nil {
			return runErr
		}

		fmt.Println("关闭完成。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
