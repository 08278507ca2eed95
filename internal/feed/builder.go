package feed

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"pulseFeed/internal/config"
	"pulseFeed/internal/constants"
	"pulseFeed/internal/content"
	"pulseFeed/internal/cursor"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/graph"
	"pulseFeed/internal/model"
	"pulseFeed/internal/visibility"
)

// Page 一页订阅源结果
type Page struct {
	List       []*content.PostResponse `json:"list"`
	NextCursor string                  `json:"next_cursor,omitempty"`
	HasMore    bool                    `json:"has_more"`
}

// FeedService 订阅源构建器，逐次调用无持久状态，天然可重试
type FeedService struct {
	db    *gorm.DB
	graph *graph.GraphService
	posts *content.PostService
}

// NewFeedService 创建订阅源构建器
func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{
		db:    db,
		graph: graph.NewGraphService(db),
		posts: content.NewPostService(db),
	}
}

// BuildPage 为查看者构建一页订阅源。
// def 为 nil 或零块时走默认时间线：自己加关注对象的内容，新到旧。
// 过滤块只收窄结果，可见性对每条内容独立裁决，过滤配置绕不开授权
func (s *FeedService) BuildPage(ctx context.Context, viewerID string, def *model.FeedDefinition, pageSize int, cursorToken string) (*Page, error) {
	pageSize = clampPageSize(pageSize)

	var after *cursor.Cursor
	if cursorToken != "" {
		c, err := cursor.Decode(cursorToken)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	blocks, err := ParseDefinition(def)
	if err != nil {
		return nil, err
	}
	combineMode := combineModeOf(def)
	pipeline, err := Compile(blocks, combineMode)
	if err != nil {
		return nil, err
	}
	if pipeline.AlwaysFalse {
		return &Page{List: []*content.PostResponse{}}, nil
	}

	// 关注/好友集合整页只取一次，批量喂给可见性谓词，绝不逐条查询
	followingIDs, err := s.graph.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	friendIDs, err := s.graph.FriendIDs(ctx, viewerID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	// 作者包含块覆盖候选作者集，可见性仍逐条兜底；
	// 否则候选集是查看者自己加上关注对象
	authorIDs := pipeline.AuthorInclude
	if authorIDs == nil {
		authorIDs = append([]string{viewerID}, followingIDs...)
	}

	return s.scanPage(ctx, &scanRequest{
		viewerID:     viewerID,
		authorIDs:    authorIDs,
		pipeline:     pipeline,
		followingIDs: followingIDs,
		friendIDs:    friendIDs,
		pageSize:     pipeline.PageSize(pageSize),
		after:        after,
	})
}

// AuthorPosts 某作者的内容页，同一套扫描机制，候选作者集固定为单人
func (s *FeedService) AuthorPosts(ctx context.Context, viewerID, authorID string, pageSize int, cursorToken string) (*Page, error) {
	pageSize = clampPageSize(pageSize)

	var after *cursor.Cursor
	if cursorToken != "" {
		c, err := cursor.Decode(cursorToken)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
		return nil, mapStoreErr(err)
	}
	if count == 0 {
		return nil, errno.UserNotExistErr
	}

	followingIDs, err := s.graph.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	friendIDs, err := s.graph.FriendIDs(ctx, viewerID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return s.scanPage(ctx, &scanRequest{
		viewerID:     viewerID,
		authorIDs:    []string{authorID},
		pipeline:     &Pipeline{},
		followingIDs: followingIDs,
		friendIDs:    friendIDs,
		pageSize:     pageSize,
		after:        after,
	})
}

type scanRequest struct {
	viewerID     string
	authorIDs    []string
	pipeline     *Pipeline
	followingIDs []string
	friendIDs    []string
	pageSize     int
	after        *cursor.Cursor
}

// scanPage 回填式扫描：每轮按还缺的条数取数，批量可见性谓词下推到 SQL，
// 取回后再逐条过一遍单条判定兜底；被剔除的行不让页面变短，继续向后扫，
// 直到集满 pageSize+1 条或扫穿为止。多出的一条只当探针用
func (s *FeedService) scanPage(ctx context.Context, req *scanRequest) (*Page, error) {
	scopes := []func(*gorm.DB) *gorm.DB{
		visibility.Scope(req.viewerID, req.followingIDs, req.friendIDs),
	}
	if req.pipeline.Scope != nil {
		scopes = append(scopes, req.pipeline.Scope)
	}

	followingSet := toSet(req.followingIDs)
	friendSet := toSet(req.friendIDs)

	needed := req.pageSize + 1
	collected := make([]model.Post, 0, needed)
	after := req.after

	for len(collected) < needed {
		want := needed - len(collected)
		batch, err := s.posts.FindPosts(ctx, &content.PostQuery{
			AuthorIDs: req.authorIDs,
			Scopes:    scopes,
			Ascending: req.pipeline.Ascending,
			After:     after,
			Limit:     want,
		})
		if err != nil {
			return nil, mapStoreErr(err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			post := &batch[i]
			if visibility.CanView(req.viewerID, post, followingSet[post.AuthorID], friendSet[post.AuthorID]) {
				collected = append(collected, *post)
			}
		}

		// 扫描位置按取回的最后一行推进，而不是最后一条通过的行
		last := batch[len(batch)-1]
		after = &cursor.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}

		// 取数少于请求量说明源已扫穿
		if len(batch) < want {
			break
		}
	}

	hasMore := len(collected) > req.pageSize
	page := collected
	if hasMore {
		page = collected[:req.pageSize]
	}

	items, err := s.toResponses(ctx, page)
	if err != nil {
		return nil, err
	}

	result := &Page{List: items, HasMore: hasMore}
	if hasMore && len(page) > 0 {
		last := page[len(page)-1]
		result.NextCursor = cursor.Encode(last.CreatedAt, last.ID)
	}
	return result, nil
}

func (s *FeedService) toResponses(ctx context.Context, posts []model.Post) ([]*content.PostResponse, error) {
	items := make([]*content.PostResponse, 0, len(posts))
	ids := make([]string, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
	}
	tags, err := s.posts.LoadTags(ctx, ids)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	for i := range posts {
		resp := content.ToPostResponse(&posts[i])
		resp.Tags = tags[posts[i].ID]
		items = append(items, resp)
	}
	return items, nil
}

// clampPageSize 页大小夹在配置的默认值与上限之间；配置未初始化时用常量兜底
func clampPageSize(pageSize int) int {
	defaultSize := config.GlobalConfig.Feed.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = constants.DefaultPageSize
	}
	maxSize := config.GlobalConfig.Feed.MaxPageSize
	if maxSize <= 0 {
		maxSize = constants.MaxPageSize
	}
	if pageSize <= 0 {
		return defaultSize
	}
	if pageSize > maxSize {
		return maxSize
	}
	return pageSize
}

func combineModeOf(def *model.FeedDefinition) string {
	if def == nil || def.CombineMode == "" {
		return constants.CombineModeAnd
	}
	return def.CombineMode
}

// mapStoreErr 超时/取消归为存储超时错误，绝不返回半页结果
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errno.StoreTimeoutErr
	}
	return err
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
