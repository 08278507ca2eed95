package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseFeed/internal/config"
	"pulseFeed/internal/database"
	"pulseFeed/internal/redisclient"
	"pulseFeed/internal/router"
	"pulseFeed/internal/service"
)

func main() {
	// 读取配置
	if err := config.Init(); err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("初始化数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("获取数据库连接失败: %v", err)
	}
	defer sqlDB.Close()

	logrus.Info("数据库初始化成功")

	// 从配置中获取 Redis 地址
	redisConfig := config.GlobalConfig.Redis
	redisAddr := fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port)
	logrus.Infof("连接Redis: %s, 数据库: %d", redisAddr, redisConfig.DB)

	// 初始化Redis，失败时降级运行：计数缓存与关注事件发布不可用
	if err := redisclient.InitRedis(redisAddr, redisConfig.Password, redisConfig.DB); err != nil {
		logrus.Warnf("Redis 初始化失败: %v", err)
		logrus.Warn("系统将在无Redis的情况下继续运行，计数走数据库列")
	} else {
		logrus.Info("Redis 初始化成功")
	}
	defer redisclient.CloseRedis()

	// 创建服务管理器，计数对账循环随之启动
	serviceMgr := service.NewManager(db)

	// 设置 Gin 路由
	r := router.SetupRouter()

	// 启动 HTTP 服务器
	httpServerPort := config.GlobalConfig.Server.Port
	httpServer := startHTTPServer(r, httpServerPort)

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("正在关闭服务器...")

	// 关闭 HTTP 服务器
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 关闭服务管理器
	serviceMgr.Shutdown()

	logrus.Info("服务器已安全关闭")
}

// startHTTPServer 启动 HTTP 服务器
func startHTTPServer(r *gin.Engine, port int) *http.Server {
	portStr := ":" + strconv.Itoa(port)

	srv := &http.Server{
		Addr:    portStr,
		Handler: r,
	}

	go func() {
		logrus.Infof("HTTP服务器已启动，监听端口 %d", port)
		logrus.Infof("访问地址: http://localhost%s", portStr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("服务器启动失败: %v", err)
		}
	}()

	return srv
}
