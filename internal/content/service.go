package content

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/cursor"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/graph"
	"pulseFeed/internal/model"
	"pulseFeed/internal/visibility"
)

// CreatePostRequest 发布内容请求
type CreatePostRequest struct {
	Type       string   `json:"type"`
	Content    string   `json:"content"`
	MediaURL   string   `json:"media_url"`
	Visibility string   `json:"visibility"`
	Tags       []string `json:"tags"`
}

// PostResponse 内容条目响应
type PostResponse struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Type         string    `json:"type"`
	Content      string    `json:"content"`
	MediaURL     string    `json:"media_url,omitempty"`
	Visibility   string    `json:"visibility"`
	Tags         []string  `json:"tags,omitempty"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	RepostCount  int64     `json:"repost_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// PostQuery 按作者集合的键集查询，订阅源构建器的取数入口。
// AuthorIDs 为 nil 表示不限定作者；Scopes 携带可见性与过滤谓词；
// After 为 nil 表示从头扫描；排序固定为 (created_at, id)，方向由 Ascending 决定
type PostQuery struct {
	AuthorIDs []string
	Scopes    []func(*gorm.DB) *gorm.DB
	Ascending bool
	After     *cursor.Cursor
	Limit     int
}

// PostService 内容服务
type PostService struct {
	db    *gorm.DB
	graph *graph.GraphService
}

// NewPostService 创建内容服务
func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db, graph: graph.NewGraphService(db)}
}

// CreatePost 发布内容，标签行在同一事务内写入
func (s *PostService) CreatePost(ctx context.Context, authorID string, req *CreatePostRequest) (*PostResponse, error) {
	if req.Type == "" {
		req.Type = constants.PostTypeText
	}
	if req.Visibility == "" {
		req.Visibility = constants.VisibilityPublic
	}
	if !validPostType(req.Type) {
		return nil, errno.ParamErr.WithMessage("不支持的内容类型")
	}
	if !validVisibility(req.Visibility) {
		return nil, errno.ParamErr.WithMessage("不支持的可见性档位")
	}
	if strings.TrimSpace(req.Content) == "" && req.MediaURL == "" {
		return nil, errno.ParamErr.WithMessage("内容不能为空")
	}

	now := time.Now()
	post := model.Post{
		ID:         uuid.New().String(),
		AuthorID:   authorID,
		Type:       req.Type,
		Content:    req.Content,
		MediaURL:   req.MediaURL,
		Visibility: req.Visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tags := normalizeTags(req.Tags)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.WithMessage(tx.Error, "content.CreatePost 开启事务失败")
	}
	if err := tx.Create(&post).Error; err != nil {
		tx.Rollback()
		return nil, errors.WithMessage(err, "content.CreatePost 写入内容失败")
	}
	for _, tag := range tags {
		row := model.PostTag{ID: uuid.New().String(), PostID: post.ID, Tag: tag}
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return nil, errors.WithMessage(err, "content.CreatePost 写入标签失败")
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, errors.WithMessage(err, "content.CreatePost 提交事务失败")
	}

	resp := ToPostResponse(&post)
	resp.Tags = tags
	return resp, nil
}

// GetPost 读取单条内容，逐条做可见性判定；不可见与不存在返回同样的错误
func (s *PostService) GetPost(ctx context.Context, viewerID, postID string) (*PostResponse, error) {
	var post model.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.PostNotExistErr
		}
		return nil, errors.WithMessage(err, "content.GetPost 查询失败")
	}

	isFollowing, err := s.graph.IsFollowing(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	isFriend, err := s.graph.IsMutual(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if !visibility.CanView(viewerID, &post, isFollowing, isFriend) {
		return nil, errno.PostNotExistErr
	}

	tags, err := s.LoadTags(ctx, []string{post.ID})
	if err != nil {
		return nil, err
	}
	resp := ToPostResponse(&post)
	resp.Tags = tags[post.ID]
	return resp, nil
}

// DeletePost 软删除，仅作者本人可操作
func (s *PostService) DeletePost(ctx context.Context, authorID, postID string) error {
	var post model.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errno.PostNotExistErr
		}
		return errors.WithMessage(err, "content.DeletePost 查询失败")
	}
	if post.Deleted {
		return errno.PostNotExistErr
	}
	if post.AuthorID != authorID {
		return errno.PermissionErr
	}

	if err := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", postID).
		UpdateColumn("deleted", true).Error; err != nil {
		return errors.WithMessage(err, "content.DeletePost 更新失败")
	}
	return nil
}

// LikePost 点赞，幂等；计数与点赞行同一事务维护
func (s *PostService) LikePost(ctx context.Context, userID, postID string) error {
	if _, err := s.GetPost(ctx, userID, postID); err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.WithMessage(tx.Error, "content.LikePost 开启事务失败")
	}
	like := model.PostLike{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if res.Error != nil {
		tx.Rollback()
		return errors.WithMessage(res.Error, "content.LikePost 写入点赞失败")
	}
	if res.RowsAffected == 1 {
		if err := tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
			tx.Rollback()
			return errors.WithMessage(err, "content.LikePost 更新计数失败")
		}
	}
	return tx.Commit().Error
}

// UnlikePost 取消点赞，幂等
func (s *PostService) UnlikePost(ctx context.Context, userID, postID string) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.WithMessage(tx.Error, "content.UnlikePost 开启事务失败")
	}
	res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.PostLike{})
	if res.Error != nil {
		tx.Rollback()
		return errors.WithMessage(res.Error, "content.UnlikePost 删除点赞失败")
	}
	if res.RowsAffected == 1 {
		if err := tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - ?", 1)).Error; err != nil {
			tx.Rollback()
			return errors.WithMessage(err, "content.UnlikePost 更新计数失败")
		}
	}
	return tx.Commit().Error
}

// FindPosts 键集分页取数，谓词由调用方以 scope 形式传入
func (s *PostService) FindPosts(ctx context.Context, q *PostQuery) ([]model.Post, error) {
	db := s.db.WithContext(ctx).Model(&model.Post{})
	if q.AuthorIDs != nil {
		db = db.Where("author_id IN ?", q.AuthorIDs)
	}
	for _, scope := range q.Scopes {
		db = db.Scopes(scope)
	}
	if q.After != nil {
		if q.Ascending {
			db = db.Where("(created_at > ? OR (created_at = ? AND id > ?))",
				q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
		} else {
			db = db.Where("(created_at < ? OR (created_at = ? AND id < ?))",
				q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
		}
	}
	if q.Ascending {
		db = db.Order("created_at asc, id asc")
	} else {
		db = db.Order("created_at desc, id desc")
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var posts []model.Post
	if err := db.Find(&posts).Error; err != nil {
		return nil, errors.WithMessage(err, "content.FindPosts 查询失败")
	}
	return posts, nil
}

// LoadTags 批量加载标签
func (s *PostService) LoadTags(ctx context.Context, postIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var rows []model.PostTag
	if err := s.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("tag asc").
		Find(&rows).Error; err != nil {
		return nil, errors.WithMessage(err, "content.LoadTags 查询失败")
	}
	for _, row := range rows {
		result[row.PostID] = append(result[row.PostID], row.Tag)
	}
	return result, nil
}

// Graph 暴露底层社交图服务，读路径复用关系查询
func (s *PostService) Graph() *graph.GraphService {
	return s.graph
}

// ToPostResponse 模型到响应体的映射，订阅源构建器组页时复用
func ToPostResponse(post *model.Post) *PostResponse {
	return &PostResponse{
		ID:           post.ID,
		AuthorID:     post.AuthorID,
		Type:         post.Type,
		Content:      post.Content,
		MediaURL:     post.MediaURL,
		Visibility:   post.Visibility,
		LikeCount:    post.LikeCount,
		CommentCount: post.CommentCount,
		RepostCount:  post.RepostCount,
		CreatedAt:    post.CreatedAt,
	}
}

func validPostType(t string) bool {
	switch t {
	case constants.PostTypeText, constants.PostTypeImage, constants.PostTypeVideo:
		return true
	}
	return false
}

func validVisibility(v string) bool {
	switch v {
	case constants.VisibilityPublic, constants.VisibilityFollowers, constants.VisibilityPrivate:
		return true
	}
	return false
}

func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
