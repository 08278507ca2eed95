package graph

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/redisclient"
)

// FollowEvent 关注事件，仅在真正新建关注边时发布一次
type FollowEvent struct {
	FollowerID    string `json:"follower_id"`
	FollowingID   string `json:"following_id"`
	BecameFriends bool   `json:"became_friends"`
	Timestamp     int64  `json:"timestamp"`
}

// Notifier 关注事件发布端口，通知投递由外部系统订阅完成
type Notifier interface {
	PublishFollow(ctx context.Context, event *FollowEvent) error
}

// RedisNotifier 通过 Redis 频道发布关注事件
type RedisNotifier struct{}

func NewRedisNotifier() *RedisNotifier {
	return &RedisNotifier{}
}

func (n *RedisNotifier) PublishFollow(ctx context.Context, event *FollowEvent) error {
	if !redisclient.IsRedisEnabled() {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithMessage(err, "notifier 序列化关注事件失败")
	}
	rdb := redisclient.GetRedisClient()
	if err := rdb.Publish(ctx, constants.RedisChannelFollow, data).Err(); err != nil {
		return errors.WithMessage(err, "notifier 发布关注事件失败")
	}
	return nil
}

// NoopNotifier Redis 不可用时的空实现
type NoopNotifier struct{}

func (n *NoopNotifier) PublishFollow(ctx context.Context, event *FollowEvent) error {
	return nil
}
