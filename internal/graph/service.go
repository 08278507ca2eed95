package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
	"pulseFeed/internal/redisclient"
)

// FollowResult 关注/取关操作后的关系快照
type FollowResult struct {
	Following bool `json:"following"`
	IsFriend  bool `json:"is_friend"`
}

// RelationResponse 双向关系标志
type RelationResponse struct {
	IsFollowing bool `json:"is_following"`
	IsFollowed  bool `json:"is_followed"`
	IsFriend    bool `json:"is_friend"`
}

// RelatedUser 关系列表里的用户摘要
type RelatedUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphService 社交图服务，关注边与好友关系的唯一写入方
type GraphService struct {
	db       *gorm.DB
	notifier Notifier
}

// NewGraphService 创建社交图服务，Redis 可用时带事件发布
func NewGraphService(db *gorm.DB) *GraphService {
	svc := &GraphService{db: db, notifier: &NoopNotifier{}}
	if redisclient.IsRedisEnabled() {
		svc.notifier = NewRedisNotifier()
	}
	return svc
}

// SetNotifier 设置关注事件发布器
func (s *GraphService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Follow 建立关注边，幂等；构成互关时在同一事务内物化好友关系
func (s *GraphService) Follow(ctx context.Context, followerID, followingID string) (*FollowResult, error) {
	if followerID == followingID {
		return nil, errno.SelfFollowErr
	}

	// 检查目标用户是否存在
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", followingID).Count(&count).Error; err != nil {
		return nil, errors.WithMessage(err, "graph.Follow 查询目标用户失败")
	}
	if count == 0 {
		return nil, errno.UserNotExistErr
	}

	// 开始事务
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.WithMessage(tx.Error, "graph.Follow 开启事务失败")
	}

	// 插入关注边，重复关注不报错
	edge := model.Follow{
		ID:          uuid.New().String(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   time.Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if res.Error != nil {
		tx.Rollback()
		return nil, errors.WithMessage(res.Error, "graph.Follow 插入关注边失败")
	}

	// 边已存在：无计数变化、无好友变化、不发事件
	if res.RowsAffected == 0 {
		tx.Rollback()
		isFriend, err := s.IsMutual(ctx, followerID, followingID)
		if err != nil {
			return nil, err
		}
		return &FollowResult{Following: true, IsFriend: isFriend}, nil
	}

	// 先按固定顺序锁定两侧用户计数行，再做互关判断，
	// 反向并发关注会在这里串行化，不会漏判好友关系
	if err := s.bumpFollowCounters(tx, followerID, followingID, 1); err != nil {
		tx.Rollback()
		return nil, err
	}

	var reverse int64
	if err := tx.Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", followingID, followerID).
		Count(&reverse).Error; err != nil {
		tx.Rollback()
		return nil, errors.WithMessage(err, "graph.Follow 查询反向边失败")
	}

	becameFriends := reverse > 0
	if becameFriends {
		now := time.Now()
		friendships := []model.Friendship{
			{ID: uuid.New().String(), UserID: followerID, FriendID: followingID, CreatedAt: now, UpdatedAt: now},
			{ID: uuid.New().String(), UserID: followingID, FriendID: followerID, CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&friendships).Error; err != nil {
			tx.Rollback()
			return nil, errors.WithMessage(err, "graph.Follow 写入好友关系失败")
		}
		if err := tx.Model(&model.User{}).
			Where("id IN ?", []string{followerID, followingID}).
			UpdateColumn("friend_count", gorm.Expr("friend_count + ?", 1)).Error; err != nil {
			tx.Rollback()
			return nil, errors.WithMessage(err, "graph.Follow 更新好友计数失败")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.WithMessage(err, "graph.Follow 提交事务失败")
	}

	// 事务提交后发布事件，失败只记日志，不影响关注结果
	event := &FollowEvent{
		FollowerID:    followerID,
		FollowingID:   followingID,
		BecameFriends: becameFriends,
		Timestamp:     time.Now().Unix(),
	}
	if err := s.notifier.PublishFollow(ctx, event); err != nil {
		logrus.Errorf("发布关注事件失败: %v", err)
	}

	return &FollowResult{Following: true, IsFriend: becameFriends}, nil
}

// Unfollow 删除关注边，幂等；互关被打破时在同一事务内拆除好友关系
func (s *GraphService) Unfollow(ctx context.Context, followerID, followingID string) (*FollowResult, error) {
	if followerID == followingID {
		return nil, errno.SelfFollowErr.WithMessage("不能取消关注自己")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.WithMessage(tx.Error, "graph.Unfollow 开启事务失败")
	}

	res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&model.Follow{})
	if res.Error != nil {
		tx.Rollback()
		return nil, errors.WithMessage(res.Error, "graph.Unfollow 删除关注边失败")
	}

	// 边不存在：和删除成功返回同样的结果
	if res.RowsAffected == 0 {
		tx.Rollback()
		return &FollowResult{Following: false, IsFriend: false}, nil
	}

	if err := s.bumpFollowCounters(tx, followerID, followingID, -1); err != nil {
		tx.Rollback()
		return nil, err
	}

	// 单向取关即打破互关，双向好友行一并删除
	del := tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		followerID, followingID, followingID, followerID).Delete(&model.Friendship{})
	if del.Error != nil {
		tx.Rollback()
		return nil, errors.WithMessage(del.Error, "graph.Unfollow 删除好友关系失败")
	}
	if del.RowsAffected > 0 {
		if err := tx.Model(&model.User{}).
			Where("id IN ?", []string{followerID, followingID}).
			UpdateColumn("friend_count", gorm.Expr("friend_count - ?", 1)).Error; err != nil {
			tx.Rollback()
			return nil, errors.WithMessage(err, "graph.Unfollow 更新好友计数失败")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.WithMessage(err, "graph.Unfollow 提交事务失败")
	}

	return &FollowResult{Following: false, IsFriend: false}, nil
}

// bumpFollowCounters 更新关注/粉丝计数，按用户ID顺序加锁
func (s *GraphService) bumpFollowCounters(tx *gorm.DB, followerID, followingID string, delta int) error {
	type bump struct {
		userID string
		column string
	}
	bumps := []bump{
		{followerID, "following_count"},
		{followingID, "follower_count"},
	}
	if bumps[1].userID < bumps[0].userID {
		bumps[0], bumps[1] = bumps[1], bumps[0]
	}
	for _, b := range bumps {
		if err := tx.Model(&model.User{}).
			Where("id = ?", b.userID).
			UpdateColumn(b.column, gorm.Expr(b.column+" + ?", delta)).Error; err != nil {
			return errors.WithMessage(err, "graph 更新关注计数失败")
		}
	}
	return nil
}

// IsFollowing 是否存在 follower -> following 的关注边
func (s *GraphService) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, errors.WithMessage(err, "graph.IsFollowing 查询失败")
	}
	return count > 0, nil
}

// IsMutual 是否互为好友，单行索引查询，不做两次关注边判断
func (s *GraphService) IsMutual(ctx context.Context, userID, otherID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, otherID).
		Count(&count).Error; err != nil {
		return false, errors.WithMessage(err, "graph.IsMutual 查询失败")
	}
	return count > 0, nil
}

// Relation 查看者与目标用户的双向关系标志
func (s *GraphService) Relation(ctx context.Context, viewerID, otherID string) (*RelationResponse, error) {
	isFollowing, err := s.IsFollowing(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}
	isFollowed, err := s.IsFollowing(ctx, otherID, viewerID)
	if err != nil {
		return nil, err
	}
	isFriend, err := s.IsMutual(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}
	return &RelationResponse{IsFollowing: isFollowing, IsFollowed: isFollowed, IsFriend: isFriend}, nil
}

// FollowingIDs 关注对象ID集合，订阅源构建的候选作者来源
func (s *GraphService) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, errors.WithMessage(err, "graph.FollowingIDs 查询失败")
	}
	return ids, nil
}

// FriendIDs 好友ID集合
func (s *GraphService) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error; err != nil {
		return nil, errors.WithMessage(err, "graph.FriendIDs 查询失败")
	}
	return ids, nil
}

// GetFollowing 关注列表（带用户信息）
func (s *GraphService) GetFollowing(ctx context.Context, userID string) ([]*RelatedUser, error) {
	return s.listRelatedUsers(ctx, `
		SELECT u.id, u.username, u.nickname, u.avatar_url, f.created_at
		FROM users u
		JOIN follows f ON u.id = f.following_id
		WHERE f.follower_id = ?
		ORDER BY f.created_at DESC
	`, userID)
}

// GetFollowers 粉丝列表（带用户信息）
func (s *GraphService) GetFollowers(ctx context.Context, userID string) ([]*RelatedUser, error) {
	return s.listRelatedUsers(ctx, `
		SELECT u.id, u.username, u.nickname, u.avatar_url, f.created_at
		FROM users u
		JOIN follows f ON u.id = f.follower_id
		WHERE f.following_id = ?
		ORDER BY f.created_at DESC
	`, userID)
}

// GetFriends 好友列表（带用户信息）
func (s *GraphService) GetFriends(ctx context.Context, userID string) ([]*RelatedUser, error) {
	return s.listRelatedUsers(ctx, `
		SELECT u.id, u.username, u.nickname, u.avatar_url, f.created_at
		FROM users u
		JOIN friendships f ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC
	`, userID)
}

func (s *GraphService) listRelatedUsers(ctx context.Context, query, userID string) ([]*RelatedUser, error) {
	rows, err := s.db.WithContext(ctx).Raw(query, userID).Rows()
	if err != nil {
		return nil, errors.WithMessage(err, "graph 查询关系列表失败")
	}
	defer rows.Close()

	var users []*RelatedUser
	for rows.Next() {
		var u RelatedUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Nickname, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, errors.WithMessage(err, "graph 扫描关系列表失败")
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
