package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/app"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/database"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/router"
	"github.com/isolexIO/chainlink-pos-sub003/internal/task"
)

func main() {
	// 加载配置
	cfg := config.Load()
	if err := logger.Setup(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	a, err := app.New(cfg, db)
	if err != nil {
		logger.Fatal("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(a)

	// 启动定时任务
	if cfg.Task.Enabled {
		manager, err := task.Start(a)
		if err != nil {
			logger.Fatal("Failed to start task manager: %v", err)
		}
		defer manager.Stop()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}
