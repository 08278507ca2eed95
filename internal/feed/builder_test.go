package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/content"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
)

func setupFeedDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, model.SetupDatabase(db))
	return db
}

func seedFeedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&model.User{ID: id, Username: id, Nickname: id}).Error)
	}
}

var feedTestBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedPost 以可控时间戳写入内容行，seq 决定时间先后
func seedPost(t *testing.T, db *gorm.DB, id, author, visibility, postType string, seq int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Post{
		ID:         id,
		AuthorID:   author,
		Type:       postType,
		Content:    id,
		Visibility: visibility,
		CreatedAt:  feedTestBase.Add(time.Duration(seq) * time.Minute),
	}).Error)
}

func definitionOf(t *testing.T, owner, mode string, blocks []Block) *model.FeedDefinition {
	t.Helper()
	raw, err := marshalBlocks(blocks)
	require.NoError(t, err)
	return &model.FeedDefinition{
		ID:          "def-" + owner,
		OwnerID:     owner,
		Name:        "测试订阅源",
		CombineMode: mode,
		Blocks:      raw,
	}
}

func pageIDs(page *Page) []string {
	ids := make([]string, 0, len(page.List))
	for _, item := range page.List {
		ids = append(ids, item.ID)
	}
	return ids
}

// walkFeed 走完整个订阅源，返回按页序拼接的全部内容ID
func walkFeed(t *testing.T, svc *FeedService, viewer string, def *model.FeedDefinition, pageSize int) []string {
	t.Helper()
	var all []string
	cursorToken := ""
	for page := 0; ; page++ {
		require.Less(t, page, 50, "翻页没有终止")
		result, err := svc.BuildPage(context.Background(), viewer, def, pageSize, cursorToken)
		require.NoError(t, err)
		all = append(all, pageIDs(result)...)
		if !result.HasMore {
			assert.Empty(t, result.NextCursor)
			break
		}
		require.NotEmpty(t, result.NextCursor)
		cursorToken = result.NextCursor
	}
	return all
}

func TestDefaultTimelineIncludesSelfAndFollowing(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "followed", "stranger")
	svc := NewFeedService(db)
	ctx := context.Background()

	_, err := svc.graph.Follow(ctx, "viewer", "followed")
	require.NoError(t, err)

	seedPost(t, db, "own", "viewer", constants.VisibilityPublic, constants.PostTypeText, 1)
	seedPost(t, db, "followed-pub", "followed", constants.VisibilityPublic, constants.PostTypeText, 2)
	seedPost(t, db, "stranger-pub", "stranger", constants.VisibilityPublic, constants.PostTypeText, 3)

	page, err := svc.BuildPage(ctx, "viewer", nil, 10, "")
	require.NoError(t, err)

	// 自己的内容与关注对象的内容交织，陌生人不在默认时间线里
	assert.Equal(t, []string{"followed-pub", "own"}, pageIDs(page))
	assert.False(t, page.HasMore)
}

// TestPaginationCompleteness 翻完所有页恰好得到通过授权的全集，每条一次，按序
func TestPaginationCompleteness(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "author")
	svc := NewFeedService(db)
	ctx := context.Background()

	_, err := svc.graph.Follow(ctx, "viewer", "author")
	require.NoError(t, err)

	// 公开内容可见；好友档位不可见（只是关注，不互关）；其中两条时间戳并列
	var want []string
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("pub%d", i)
		seedPost(t, db, id, "author", constants.VisibilityPublic, constants.PostTypeText, i)
		want = append([]string{id}, want...) // 新到旧
	}
	require.NoError(t, db.Create(&model.Post{
		ID: "tie", AuthorID: "author", Type: constants.PostTypeText, Content: "tie",
		Visibility: constants.VisibilityPublic,
		CreatedAt:  feedTestBase.Add(6 * time.Minute), // 与 pub6 并列
	}).Error)
	want = append([]string{"tie"}, want...) // id 降序并列裁决: tie > pub6
	seedPost(t, db, "private", "author", constants.VisibilityPrivate, constants.PostTypeText, 8)

	got := walkFeed(t, svc, "viewer", nil, 3)
	assert.Equal(t, want, got)
}

// TestSubMicrosecondTieSurvivesPageBoundary 时间戳在亚微秒位并列的行，
// 游标边界落在其间时不能丢行：令牌精度必须与存储精度持平
func TestSubMicrosecondTieSurvivesPageBoundary(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)

	tied := feedTestBase.Add(123456789 * time.Nanosecond)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, db.Create(&model.Post{
			ID: id, AuthorID: "viewer", Type: constants.PostTypeText, Content: id,
			Visibility: constants.VisibilityPublic,
			CreatedAt:  tied,
		}).Error)
	}

	// 每页一条，边界正好切在并列行之间，两条都必须出现
	got := walkFeed(t, svc, "viewer", nil, 1)
	assert.Equal(t, []string{"b", "a"}, got)
}

// TestPrivatePostAppearsAfterFriendship 互关前私密内容缺席，互关后出现
func TestPrivatePostAppearsAfterFriendship(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "author")
	svc := NewFeedService(db)
	ctx := context.Background()

	_, err := svc.graph.Follow(ctx, "viewer", "author")
	require.NoError(t, err)
	seedPost(t, db, "secret", "author", constants.VisibilityPrivate, constants.PostTypeText, 1)

	page, err := svc.BuildPage(ctx, "viewer", nil, 10, "")
	require.NoError(t, err)
	assert.Empty(t, pageIDs(page))

	// 作者回关后互为好友，同一次调用方式下内容出现
	_, err = svc.graph.Follow(ctx, "author", "viewer")
	require.NoError(t, err)

	page, err = svc.BuildPage(ctx, "viewer", nil, 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"secret"}, pageIDs(page))
}

// TestAuthorTypeFilterThreePageWalk AND 模式作者+类型过滤，三页无重复无缺漏
func TestAuthorTypeFilterThreePageWalk(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "x", "y", "z")
	svc := NewFeedService(db)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		seedPost(t, db, fmt.Sprintf("x-img%d", i), "x", constants.VisibilityPublic, constants.PostTypeImage, i*3)
		seedPost(t, db, fmt.Sprintf("y-img%d", i), "y", constants.VisibilityPublic, constants.PostTypeImage, i*3+1)
	}
	seedPost(t, db, "x-text", "x", constants.VisibilityPublic, constants.PostTypeText, 20)
	seedPost(t, db, "z-img", "z", constants.VisibilityPublic, constants.PostTypeImage, 21)
	// 作者 x 的好友档位图片：过滤命中但未授权，不得出现
	seedPost(t, db, "x-private-img", "x", constants.VisibilityPrivate, constants.PostTypeImage, 22)

	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindAuthor, Operator: "include", Values: []string{"x", "y"}},
		{Kind: constants.BlockKindType, Operator: "include", Values: []string{constants.PostTypeImage}},
	})

	var pages [][]string
	cursorToken := ""
	for i := 0; i < 3; i++ {
		page, err := svc.BuildPage(ctx, "viewer", def, 3, cursorToken)
		require.NoError(t, err)
		pages = append(pages, pageIDs(page))
		if i < 2 {
			require.True(t, page.HasMore)
			cursorToken = page.NextCursor
		} else {
			assert.False(t, page.HasMore)
		}
	}

	assert.Equal(t, []string{"y-img3", "x-img3", "y-img2"}, pages[0])
	assert.Equal(t, []string{"x-img2", "y-img1", "x-img1"}, pages[1])
	assert.Equal(t, []string{"y-img0", "x-img0"}, pages[2])
}

// TestFilterNeverWidensAccess 过滤块只收窄，授权不因过滤配置放宽
func TestFilterNeverWidensAccess(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "stranger")
	svc := NewFeedService(db)
	ctx := context.Background()

	seedPost(t, db, "s-pub", "stranger", constants.VisibilityPublic, constants.PostTypeText, 1)
	seedPost(t, db, "s-followers", "stranger", constants.VisibilityFollowers, constants.PostTypeText, 2)
	seedPost(t, db, "s-private", "stranger", constants.VisibilityPrivate, constants.PostTypeText, 3)

	// 作者过滤点名了陌生人：公开内容合法可见，受限档位依旧缺席
	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindAuthor, Operator: "include", Values: []string{"stranger"}},
	})
	page, err := svc.BuildPage(ctx, "viewer", def, 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s-pub"}, pageIDs(page))
}

func TestLimitBlockCapsPageSize(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		seedPost(t, db, fmt.Sprintf("p%d", i), "viewer", constants.VisibilityPublic, constants.PostTypeText, i)
	}

	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindLimit, Limit: 2},
	})
	page, err := svc.BuildPage(ctx, "viewer", def, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.List, 2)
	assert.True(t, page.HasMore)
}

func TestSortBlockFlipsDirection(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)

	for i := 0; i < 3; i++ {
		seedPost(t, db, fmt.Sprintf("p%d", i), "viewer", constants.VisibilityPublic, constants.PostTypeText, i)
	}

	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindSort, Field: constants.SortFieldCreatedAt, Direction: constants.SortDirectionAsc},
	})
	all := walkFeed(t, svc, "viewer", def, 2)
	assert.Equal(t, []string{"p0", "p1", "p2"}, all)
}

func TestAlwaysFalseDefinitionReturnsEmptyPage(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)

	seedPost(t, db, "p0", "viewer", constants.VisibilityPublic, constants.PostTypeText, 0)

	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindType, Operator: "include", Values: nil},
	})
	page, err := svc.BuildPage(context.Background(), "viewer", def, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.List)
	assert.False(t, page.HasMore)
}

func TestTagFilter(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)
	ctx := context.Background()

	posts := NewFeedService(db).posts
	tagged, err := posts.CreatePost(ctx, "viewer", &content.CreatePostRequest{
		Content: "带标签", Tags: []string{"music"},
	})
	require.NoError(t, err)
	_, err = posts.CreatePost(ctx, "viewer", &content.CreatePostRequest{Content: "无标签"})
	require.NoError(t, err)

	def := definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindTag, Operator: "include", Values: []string{"music"}},
	})
	page, err := svc.BuildPage(ctx, "viewer", def, 10, "")
	require.NoError(t, err)
	require.Len(t, page.List, 1)
	assert.Equal(t, tagged.ID, page.List[0].ID)
	assert.Equal(t, []string{"music"}, page.List[0].Tags)

	// 排除同一标签得到补集
	def = definitionOf(t, "viewer", constants.CombineModeAnd, []Block{
		{Kind: constants.BlockKindTag, Operator: "exclude", Values: []string{"music"}},
	})
	page, err = svc.BuildPage(ctx, "viewer", def, 10, "")
	require.NoError(t, err)
	require.Len(t, page.List, 1)
	assert.NotEqual(t, tagged.ID, page.List[0].ID)
}

func TestInvalidCursorRejectedNotReset(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer")
	svc := NewFeedService(db)

	_, err := svc.BuildPage(context.Background(), "viewer", nil, 10, "not-a-cursor")
	require.Error(t, err)
	assert.Equal(t, errno.InvalidCursorCode, errno.ConvertErr(err).ErrCode)
}

func TestAuthorPostsVisibility(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "viewer", "author")
	svc := NewFeedService(db)
	ctx := context.Background()

	seedPost(t, db, "pub", "author", constants.VisibilityPublic, constants.PostTypeText, 1)
	seedPost(t, db, "followers-only", "author", constants.VisibilityFollowers, constants.PostTypeText, 2)

	page, err := svc.AuthorPosts(ctx, "viewer", "author", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"pub"}, pageIDs(page))

	_, err = svc.graph.Follow(ctx, "viewer", "author")
	require.NoError(t, err)

	page, err = svc.AuthorPosts(ctx, "viewer", "author", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"followers-only", "pub"}, pageIDs(page))

	_, err = svc.AuthorPosts(ctx, "viewer", "ghost", 10, "")
	require.Error(t, err)
	assert.Equal(t, errno.UserNotExistCode, errno.ConvertErr(err).ErrCode)
}
