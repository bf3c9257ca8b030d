package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ps2cfg/internal/api"
	"ps2cfg/internal/artifact"
	"ps2cfg/internal/converter"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/janitor"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/notify"
	"ps2cfg/internal/pkg"
	"ps2cfg/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// syncLog 安全地同步日志，忽略与标准输出相关的错误
func syncLog(log *zap.Logger) {
	err := log.Sync()
	if err != nil && !strings.Contains(err.Error(), "The handle is invalid") && !strings.Contains(err.Error(), "invalid argument") {
		log.Error("程序退出时同步日志失败", zap.Error(err))
	}
}

func main() {
	// 1. 初始化配置
	config, err := pkg.InitCommon("config")
	if err != nil {
		fmt.Printf("[main] 加载配置失败: %s", err)
		return
	}

	// 2. 初始化log
	log, stopLog := pkg.NewLogger(&config.Log)
	defer stopLog()
	log.Info("程序启动", zap.String("version", config.Version))
	log.Info("配置信息", zap.Any("common", config))

	// 3. 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 10)
	ctx = pkg.WithErrChan(ctx, errChan)
	ctx = pkg.WithConfig(ctx, config)
	ctx = pkg.WithLogger(ctx, log)

	if err := run(ctx, config, errChan); err != nil {
		log.Error("服务异常退出", zap.Error(err))
		cancel()
		syncLog(log)
		stopLog()
		os.Exit(1)
	}
	syncLog(log)
}

func run(ctx context.Context, config *pkg.Config, errChan chan error) error {
	log := pkg.LoggerFromContext(ctx)

	// 游戏 hash 对照表
	store, err := gamedb.Open(ctx, config.GameDB)
	if err != nil {
		return fmt.Errorf("打开游戏数据库失败: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("关闭游戏数据库失败", zap.Error(err))
		}
	}()

	catalog, err := netemu.NewCatalog()
	if err != nil {
		return err
	}

	hub, err := notify.NewHub(ctx, config.Notify)
	if err != nil {
		return err
	}
	hub.Start(ctx)
	defer hub.Close()

	svc := service.New(service.Deps{
		Decoder:  netemu.NewDecoder(catalog, log.With(zap.String("module", "decoder"))),
		Lookup:   gamedb.NewResolver(store, log.With(zap.String("module", "gamedb"))),
		Recorder: store,
		Writer:   artifact.NewWriter(config.Server.OutputDir),
		Hub:      hub,
		Metrics:  pkg.GetMetrics(),
		Config:   config.Decoder,
		Log:      log.With(zap.String("module", "service")),
	})

	if config.Janitor.Enable {
		janitor.New(config.Janitor, config.Server.OutputDir, config.Server.UploadDir).
			Start(pkg.WithLoggerAndModule(ctx, log, "janitor"))
	}

	gin.SetMode(gin.ReleaseMode)
	r := api.SetupRouter(&api.Handler{
		Service:   svc,
		Records:   store,
		Converter: converter.NewRunner(config.Converter, log.With(zap.String("module", "converter"))),
		Server:    config.Server,
		Log:       log.With(zap.String("module", "api")),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Server.Port),
		Handler: r,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", fmt.Sprintf("http://localhost:%s", config.Server.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 主线程监听终止信号，后台错误只记录
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			log.Info("正在关闭服务器 ...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("服务器关闭失败: %w", err)
			}
			log.Info("服务器已退出")
			return nil
		case err := <-serveErr:
			return fmt.Errorf("listen: %w", err)
		case bad := <-errChan:
			log.Error("Error occurred", zap.Error(bad))
		}
	}
}
