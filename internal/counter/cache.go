package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/model"
	"pulseFeed/internal/redisclient"
)

// UserStats 用户侧的冗余计数，展示用的缓存聚合，
// 正确性始终以 follows/friendships 事实表为准
type UserStats struct {
	UserID         string    `json:"user_id"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	FriendCount    int64     `json:"friend_count"`
	CachedAt       time.Time `json:"cached_at"`
}

// Cache 计数读穿缓存：本地缓存 → Redis → 数据库列
type Cache struct {
	db         *gorm.DB
	localStats map[string]*UserStats
	mutex      sync.RWMutex
}

// NewCache 创建计数缓存
func NewCache(db *gorm.DB) *Cache {
	return &Cache{
		db:         db,
		localStats: make(map[string]*UserStats),
	}
}

// GetUserStats 读取用户计数；缓存未命中回退数据库列并回填
func (c *Cache) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	// 先查本地缓存
	c.mutex.RLock()
	if stats, ok := c.localStats[userID]; ok {
		if time.Since(stats.CachedAt) < constants.CounterExpirationTime*time.Second {
			result := *stats
			c.mutex.RUnlock()
			return &result, nil
		}
	}
	c.mutex.RUnlock()

	// 再查 Redis
	if redisclient.IsRedisEnabled() {
		key := fmt.Sprintf(constants.RedisKeyUserStats, userID)
		data, err := redisclient.GetRedisClient().Get(ctx, key).Bytes()
		if err == nil {
			var stats UserStats
			if err = json.Unmarshal(data, &stats); err == nil {
				c.mutex.Lock()
				c.localStats[userID] = &stats
				c.mutex.Unlock()
				return &stats, nil
			}
		}
	}

	// 回退数据库列
	var user model.User
	if err := c.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, errors.WithMessage(err, "counter.GetUserStats 查询用户失败")
	}
	stats := &UserStats{
		UserID:         user.ID,
		FollowerCount:  user.FollowerCount,
		FollowingCount: user.FollowingCount,
		FriendCount:    user.FriendCount,
		CachedAt:       time.Now(),
	}
	c.put(ctx, stats)
	return stats, nil
}

// PostLikeCount 读取内容点赞计数，Redis 未命中回退数据库列
func (c *Cache) PostLikeCount(ctx context.Context, postID string) (int64, error) {
	if redisclient.IsRedisEnabled() {
		key := fmt.Sprintf(constants.RedisKeyPostLikeCount, postID)
		val, err := redisclient.GetRedisClient().Get(ctx, key).Result()
		if err == nil {
			if count, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}

	var post model.Post
	if err := c.db.WithContext(ctx).Select("like_count").First(&post, "id = ?", postID).Error; err != nil {
		return 0, errors.WithMessage(err, "counter.PostLikeCount 查询内容失败")
	}
	if redisclient.IsRedisEnabled() {
		key := fmt.Sprintf(constants.RedisKeyPostLikeCount, postID)
		if err := redisclient.GetRedisClient().
			Set(ctx, key, post.LikeCount, constants.CounterExpirationTime*time.Second).Err(); err != nil {
			logrus.Errorf("回填点赞计数缓存失败: %v", err)
		}
	}
	return post.LikeCount, nil
}

// put 回填本地缓存与 Redis，Redis 写入失败只记日志
func (c *Cache) put(ctx context.Context, stats *UserStats) {
	c.mutex.Lock()
	c.localStats[stats.UserID] = stats
	c.mutex.Unlock()

	if !redisclient.IsRedisEnabled() {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		logrus.Errorf("序列化用户计数失败: %v", err)
		return
	}
	key := fmt.Sprintf(constants.RedisKeyUserStats, stats.UserID)
	if err := redisclient.GetRedisClient().
		Set(ctx, key, data, constants.CounterExpirationTime*time.Second).Err(); err != nil {
		logrus.Errorf("同步用户计数到Redis失败: %v", err)
	}
}

// InvalidateUsers 批量失效缓存，管道一次发出
func (c *Cache) InvalidateUsers(ctx context.Context, userIDs []string) {
	c.mutex.Lock()
	for _, id := range userIDs {
		delete(c.localStats, id)
	}
	c.mutex.Unlock()

	if !redisclient.IsRedisEnabled() || len(userIDs) == 0 {
		return
	}
	pipe := redisclient.GetRedisClient().Pipeline()
	for _, id := range userIDs {
		pipe.Del(ctx, fmt.Sprintf(constants.RedisKeyUserStats, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Errorf("批量失效计数缓存失败: %v", err)
	}
}
