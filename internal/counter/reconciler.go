package counter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulseFeed/internal/model"
)

// Reconciler 周期性地把冗余计数列对齐到事实表。
// 缓存漂移只影响展示值，事实表上的不变量不依赖这里
type Reconciler struct {
	db       *gorm.DB
	cache    *Cache
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewReconciler 创建计数对账器，interval <= 0 表示只支持手动触发
func NewReconciler(db *gorm.DB, cache *Cache, interval time.Duration) *Reconciler {
	return &Reconciler{
		db:       db,
		cache:    cache,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动对账循环
func (r *Reconciler) Start() {
	if r.interval <= 0 {
		close(r.done)
		return
	}
	go r.run()
}

func (r *Reconciler) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logrus.Infof("计数对账器已启动，周期 %s", r.interval)
	for {
		select {
		case <-ticker.C:
			if err := r.ReconcileOnce(context.Background()); err != nil {
				logrus.Errorf("计数对账失败: %v", err)
			}
		case <-r.stop:
			return
		}
	}
}

// Stop 停止对账循环并等待退出
func (r *Reconciler) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

// ReconcileOnce 执行一轮对账：用事实表重算用户三类计数与内容点赞计数，
// 然后失效所有用户的计数缓存
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	start := time.Now()

	userRes := r.db.WithContext(ctx).Exec(`
		UPDATE users SET
			follower_count  = (SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id),
			following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id),
			friend_count    = (SELECT COUNT(*) FROM friendships WHERE friendships.user_id = users.id)
	`)
	if userRes.Error != nil {
		return errors.WithMessage(userRes.Error, "counter.ReconcileOnce 重算用户计数失败")
	}

	postRes := r.db.WithContext(ctx).Exec(`
		UPDATE posts SET
			like_count = (SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)
	`)
	if postRes.Error != nil {
		return errors.WithMessage(postRes.Error, "counter.ReconcileOnce 重算点赞计数失败")
	}

	var userIDs []string
	if err := r.db.WithContext(ctx).Model(&model.User{}).Pluck("id", &userIDs).Error; err != nil {
		return errors.WithMessage(err, "counter.ReconcileOnce 查询用户列表失败")
	}
	r.cache.InvalidateUsers(ctx, userIDs)

	logrus.Infof("计数对账完成: 用户 %d 行, 内容 %d 行, 耗时 %s",
		userRes.RowsAffected, postRes.RowsAffected, time.Since(start))
	return nil
}
