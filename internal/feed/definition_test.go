package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/errno"
)

func TestDefinitionCRUD(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "owner", "other")
	svc := NewDefinitionService(db)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner", &SaveDefinitionRequest{
		Name: "图片墙",
		Blocks: []Block{
			{Kind: constants.BlockKindType, Operator: "include", Values: []string{constants.PostTypeImage}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "owner", created.OwnerID)
	assert.Equal(t, constants.CombineModeAnd, created.CombineMode)
	require.Len(t, created.Blocks, 1)

	// 列表与读取都按归属人限定
	defs, err := svc.List(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, err = svc.Get(ctx, "other", created.ID)
	assert.Equal(t, errno.FeedNotExistCode, errno.ConvertErr(err).ErrCode)

	updated, err := svc.Update(ctx, "owner", created.ID, &SaveDefinitionRequest{
		Name:        "视频墙",
		CombineMode: constants.CombineModeOr,
		Blocks: []Block{
			{Kind: constants.BlockKindType, Operator: "include", Values: []string{constants.PostTypeVideo}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "视频墙", updated.Name)
	assert.Equal(t, constants.CombineModeOr, updated.CombineMode)

	// 别人删不掉，归属人能删
	err = svc.Delete(ctx, "other", created.ID)
	assert.Equal(t, errno.FeedNotExistCode, errno.ConvertErr(err).ErrCode)
	require.NoError(t, svc.Delete(ctx, "owner", created.ID))
	err = svc.Delete(ctx, "owner", created.ID)
	assert.Equal(t, errno.FeedNotExistCode, errno.ConvertErr(err).ErrCode)
}

// TestDefinitionSaveTimeValidation 未知块类型在保存时拒绝，不留到读取时
func TestDefinitionSaveTimeValidation(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "owner")
	svc := NewDefinitionService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &SaveDefinitionRequest{
		Name:   "坏订阅源",
		Blocks: []Block{{Kind: "sentiment", Operator: "include"}},
	})
	require.Error(t, err)
	assert.Equal(t, errno.UnsupportedFilterCode, errno.ConvertErr(err).ErrCode)

	_, err = svc.Create(ctx, "owner", &SaveDefinitionRequest{
		Name:        "坏组合模式",
		CombineMode: "NOR",
	})
	require.Error(t, err)
	assert.Equal(t, errno.ParamErrCode, errno.ConvertErr(err).ErrCode)

	// 啥也没存进去
	defs, err := svc.List(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, defs)

	// 更新走同一套校验
	created, err := svc.Create(ctx, "owner", &SaveDefinitionRequest{Name: "合法"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "owner", created.ID, &SaveDefinitionRequest{
		Name:   "变坏",
		Blocks: []Block{{Kind: "geo", Operator: "include"}},
	})
	assert.Equal(t, errno.UnsupportedFilterCode, errno.ConvertErr(err).ErrCode)
}

// TestZeroBlockDefinitionIsDefaultTimeline 零块定义等价于默认时间线
func TestZeroBlockDefinitionIsDefaultTimeline(t *testing.T) {
	db := setupFeedDB(t)
	seedFeedUsers(t, db, "owner", "followed")
	defs := NewDefinitionService(db)
	feedSvc := NewFeedService(db)
	ctx := context.Background()

	_, err := feedSvc.graph.Follow(ctx, "owner", "followed")
	require.NoError(t, err)
	seedPost(t, db, "p0", "followed", constants.VisibilityPublic, constants.PostTypeText, 0)
	seedPost(t, db, "p1", "owner", constants.VisibilityPublic, constants.PostTypeText, 1)

	created, err := defs.Create(ctx, "owner", &SaveDefinitionRequest{Name: "空定义"})
	require.NoError(t, err)
	def, err := defs.Get(ctx, "owner", created.ID)
	require.NoError(t, err)

	withDef, err := feedSvc.BuildPage(ctx, "owner", def, 10, "")
	require.NoError(t, err)
	withoutDef, err := feedSvc.BuildPage(ctx, "owner", nil, 10, "")
	require.NoError(t, err)
	assert.Equal(t, pageIDs(withoutDef), pageIDs(withDef))
	assert.Equal(t, []string{"p1", "p0"}, pageIDs(withDef))
}
