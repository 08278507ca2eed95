package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username       string    `gorm:"type:varchar(50);uniqueIndex" json:"username"`
	Password       string    `gorm:"type:varchar(100)" json:"-"`
	Nickname       string    `gorm:"type:varchar(50)" json:"nickname"`
	AvatarURL      string    `gorm:"type:varchar(255)" json:"avatar_url"`
	FollowerCount  int64     `gorm:"default:0" json:"follower_count"`
	FollowingCount int64     `gorm:"default:0" json:"following_count"`
	FriendCount    int64     `gorm:"default:0" json:"friend_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Follow 关注边，follower 指向 following 的有向边
type Follow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	FollowerID  string `gorm:"type:varchar(36);uniqueIndex:idx_follower_following;index:idx_following"`
	FollowingID string `gorm:"type:varchar(36);uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time
}

// Friendship 好友关系，双向各存一行，仅由关注事务派生维护
type Friendship struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"type:varchar(36);uniqueIndex:idx_user_friend"`
	FriendID  string `gorm:"type:varchar(36);uniqueIndex:idx_user_friend"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Post 内容条目
type Post struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID     string    `gorm:"type:varchar(36);index:idx_author_created" json:"author_id"`
	Type         string    `gorm:"type:varchar(10);default:'text'" json:"type"` // text/image/video
	Content      string    `gorm:"type:text" json:"content"`
	MediaURL     string    `gorm:"type:varchar(255)" json:"media_url"`
	Visibility   string    `gorm:"type:varchar(10);default:'public'" json:"visibility"` // public/followers/private
	Deleted      bool      `gorm:"default:false" json:"-"`
	LikeCount    int64     `gorm:"default:0" json:"like_count"`
	CommentCount int64     `gorm:"default:0" json:"comment_count"`
	RepostCount  int64     `gorm:"default:0" json:"repost_count"`
	CreatedAt    time.Time `gorm:"index:idx_author_created;index:idx_created" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PostTag 内容标签，一条内容多行
type PostTag struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	PostID string `gorm:"type:varchar(36);uniqueIndex:idx_post_tag"`
	Tag    string `gorm:"type:varchar(50);uniqueIndex:idx_post_tag;index:idx_tag"`
}

// PostLike 点赞记录，like_count 的事实来源
type PostLike struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	PostID    string `gorm:"type:varchar(36);uniqueIndex:idx_post_user"`
	UserID    string `gorm:"type:varchar(36);uniqueIndex:idx_post_user"`
	CreatedAt time.Time
}

// FeedDefinition 订阅源定义，过滤块序列化后存 JSON 列
type FeedDefinition struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID     string         `gorm:"type:varchar(36);index" json:"owner_id"`
	Name        string         `gorm:"type:varchar(100)" json:"name"`
	CombineMode string         `gorm:"type:varchar(10);default:'AND'" json:"combine_mode"` // AND/OR
	Blocks      datatypes.JSON `gorm:"type:json" json:"blocks"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SetupDatabase 初始化数据库表结构
func SetupDatabase(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&User{},
		&Follow{},
		&Friendship{},
		&Post{},
		&PostTag{},
		&PostLike{},
		&FeedDefinition{},
	)
}
