package service

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulseFeed/internal/config"
	"pulseFeed/internal/counter"
)

// Manager 后台组件管理器，持有计数对账器的生命周期。
// 请求级服务由各处理器按请求构建，无共享可变状态，不经由管理器分发
type Manager struct {
	reconciler *counter.Reconciler
}

// NewManager 创建管理器并启动计数对账循环
func NewManager(db *gorm.DB) *Manager {
	interval := time.Duration(config.GlobalConfig.Counter.ReconcileInterval) * time.Second
	manager := &Manager{
		reconciler: counter.NewReconciler(db, counter.NewCache(db), interval),
	}
	manager.reconciler.Start()

	logrus.Info("服务管理器初始化完成")
	return manager
}

// Shutdown 停止后台组件
func (m *Manager) Shutdown() {
	logrus.Info("正在关闭服务管理器...")
	m.reconciler.Stop()
	logrus.Info("服务管理器已关闭")
}
