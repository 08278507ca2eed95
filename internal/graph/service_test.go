package graph

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
)

func setupGraphDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Follow{}, &model.Friendship{}))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&model.User{ID: id, Username: id, Nickname: id}).Error)
	}
}

// recordingNotifier 记录发布的事件，测试专用
type recordingNotifier struct {
	events []*FollowEvent
}

func (n *recordingNotifier) PublishFollow(ctx context.Context, event *FollowEvent) error {
	n.events = append(n.events, event)
	return nil
}

func TestSelfFollowRejected(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a")
	svc := NewGraphService(db)

	_, err := svc.Follow(context.Background(), "a", "a")
	require.Error(t, err)
	assert.Equal(t, errno.SelfFollowErrCode, errno.ConvertErr(err).ErrCode)

	// 拒绝发生在任何写入之前
	var count int64
	require.NoError(t, db.Model(&model.Follow{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.Unfollow(context.Background(), "a", "a")
	require.Error(t, err)
	assert.Equal(t, errno.SelfFollowErrCode, errno.ConvertErr(err).ErrCode)
}

func TestFollowUnknownTargetRejected(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a")
	svc := NewGraphService(db)

	_, err := svc.Follow(context.Background(), "a", "ghost")
	require.Error(t, err)
	assert.Equal(t, errno.UserNotExistCode, errno.ConvertErr(err).ErrCode)
}

func TestFollowIdempotent(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a", "b")
	svc := NewGraphService(db)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	ctx := context.Background()

	first, err := svc.Follow(ctx, "a", "b")
	require.NoError(t, err)
	second, err := svc.Follow(ctx, "a", "b")
	require.NoError(t, err)

	// 重复关注返回同样的结果
	assert.Equal(t, first, second)

	// 只有一条边、计数只加一次、事件只发一次
	var edges int64
	require.NoError(t, db.Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", "a", "b").Count(&edges).Error)
	assert.EqualValues(t, 1, edges)

	var a, b model.User
	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	require.NoError(t, db.First(&b, "id = ?", "b").Error)
	assert.EqualValues(t, 1, a.FollowingCount)
	assert.EqualValues(t, 1, b.FollowerCount)
	assert.Len(t, notifier.events, 1)
}

func TestUnfollowWithoutEdgeIsNoop(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a", "b")
	svc := NewGraphService(db)

	result, err := svc.Unfollow(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.False(t, result.Following)
	assert.False(t, result.IsFriend)

	var a model.User
	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	assert.Zero(t, a.FollowingCount)
}

// TestMutualFollowLifecycle 互关建立好友关系，单向取关即拆除
func TestMutualFollowLifecycle(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a", "b")
	svc := NewGraphService(db)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	ctx := context.Background()

	// A 关注 B：未互关
	result, err := svc.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, result.Following)
	assert.False(t, result.IsFriend)

	isFriend, err := svc.IsMutual(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, isFriend)

	// B 回关 A：好友关系物化，双向都能 O(1) 查到
	result, err = svc.Follow(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, result.IsFriend)

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		isFriend, err = svc.IsMutual(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, isFriend, "%s 与 %s 应互为好友", pair[0], pair[1])
	}

	var a, b model.User
	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	require.NoError(t, db.First(&b, "id = ?", "b").Error)
	assert.EqualValues(t, 1, a.FriendCount)
	assert.EqualValues(t, 1, b.FriendCount)

	require.Len(t, notifier.events, 2)
	assert.False(t, notifier.events[0].BecameFriends)
	assert.True(t, notifier.events[1].BecameFriends)

	// A 取关 B：好友关系拆除，B->A 的边保留
	result, err = svc.Unfollow(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, result.Following)
	assert.False(t, result.IsFriend)

	isFriend, err = svc.IsMutual(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, isFriend)

	relation, err := svc.Relation(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, relation.IsFollowing)
	assert.True(t, relation.IsFollowed)
	assert.False(t, relation.IsFriend)

	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	require.NoError(t, db.First(&b, "id = ?", "b").Error)
	assert.Zero(t, a.FriendCount)
	assert.Zero(t, b.FriendCount)
}

func TestFollowListsAndIDSets(t *testing.T) {
	db := setupGraphDB(t)
	seedUsers(t, db, "a", "b", "c", "d")
	svc := NewGraphService(db)
	ctx := context.Background()

	mustFollow(t, svc, "a", "b")
	mustFollow(t, svc, "a", "c")
	mustFollow(t, svc, "b", "a")
	mustFollow(t, svc, "d", "a")

	followingIDs, err := svc.FollowingIDs(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, followingIDs)

	friendIDs, err := svc.FriendIDs(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b"}, friendIDs)

	following, err := svc.GetFollowing(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, following, 2)

	followers, err := svc.GetFollowers(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	friends, err := svc.GetFriends(ctx, "a")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "b", friends[0].ID)
}

// TestFriendshipSymmetryFuzz 随机关注/取关序列下好友关系始终与双向关注一致
func TestFriendshipSymmetryFuzz(t *testing.T) {
	db := setupGraphDB(t)
	userIDs := make([]string, 6)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("u%d", i)
	}
	seedUsers(t, db, userIDs...)
	svc := NewGraphService(db)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 400; i++ {
		from := userIDs[rng.Intn(len(userIDs))]
		to := userIDs[rng.Intn(len(userIDs))]
		if from == to {
			continue
		}
		var err error
		if rng.Intn(3) == 0 {
			_, err = svc.Unfollow(ctx, from, to)
		} else {
			_, err = svc.Follow(ctx, from, to)
		}
		require.NoError(t, err)
		assertGraphInvariants(t, db)
	}

	// 终态计数列与事实表一致
	for _, id := range userIDs {
		var u model.User
		require.NoError(t, db.First(&u, "id = ?", id).Error)

		var following, followers, friends int64
		require.NoError(t, db.Model(&model.Follow{}).Where("follower_id = ?", id).Count(&following).Error)
		require.NoError(t, db.Model(&model.Follow{}).Where("following_id = ?", id).Count(&followers).Error)
		require.NoError(t, db.Model(&model.Friendship{}).Where("user_id = ?", id).Count(&friends).Error)

		assert.Equal(t, following, u.FollowingCount, "用户 %s 的关注计数", id)
		assert.Equal(t, followers, u.FollowerCount, "用户 %s 的粉丝计数", id)
		assert.Equal(t, friends, u.FriendCount, "用户 %s 的好友计数", id)
	}
}

func assertGraphInvariants(t *testing.T, db *gorm.DB) {
	t.Helper()

	var follows []model.Follow
	require.NoError(t, db.Find(&follows).Error)
	edges := map[[2]string]bool{}
	for _, f := range follows {
		assert.NotEqual(t, f.FollowerID, f.FollowingID, "不允许自环")
		edges[[2]string{f.FollowerID, f.FollowingID}] = true
	}

	var friendships []model.Friendship
	require.NoError(t, db.Find(&friendships).Error)
	friends := map[[2]string]bool{}
	for _, fr := range friendships {
		friends[[2]string{fr.UserID, fr.FriendID}] = true
	}

	// 好友行成对出现
	for pair := range friends {
		assert.True(t, friends[[2]string{pair[1], pair[0]}],
			"好友行 %v 缺少反向行", pair)
	}

	// 好友关系 ⇔ 双向关注边
	for pair := range edges {
		mutual := edges[[2]string{pair[1], pair[0]}]
		assert.Equal(t, mutual, friends[pair],
			"边 %v 的互关状态与好友行不一致", pair)
	}
	for pair := range friends {
		assert.True(t, edges[pair], "好友行 %v 没有对应的关注边", pair)
	}
}

func mustFollow(t *testing.T, svc *GraphService, from, to string) {
	t.Helper()
	_, err := svc.Follow(context.Background(), from, to)
	require.NoError(t, err)
}
