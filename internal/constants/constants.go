package constants

// 可见性常量
const (
	VisibilityPublic    = "public"    // 所有人可见
	VisibilityFollowers = "followers" // 关注者可见
	VisibilityPrivate   = "private"   // 仅好友可见
)

// 内容类型常量
const (
	PostTypeText  = "text"
	PostTypeImage = "image"
	PostTypeVideo = "video"
)

// 过滤块类型常量
const (
	BlockKindAuthor    = "author"
	BlockKindType      = "type"
	BlockKindTag       = "tag"
	BlockKindDateRange = "date_range"
	BlockKindSort      = "sort"
	BlockKindLimit     = "limit"
)

// 过滤操作符常量
const (
	OperatorInclude = "include"
	OperatorExclude = "exclude"
)

// 组合模式常量
const (
	CombineModeAnd = "AND"
	CombineModeOr  = "OR"
)

// 排序常量
const (
	SortFieldCreatedAt = "created_at"
	SortDirectionAsc   = "asc"
	SortDirectionDesc  = "desc"
)

// 分页常量
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// 时间常量
const (
	CounterExpirationTime = 600 // 10分钟，单位秒
	TokenExpirationTime   = 24  // 24小时
)

// Redis键前缀
const (
	RedisKeyUserStats     = "user:%s:stats"
	RedisKeyPostLikeCount = "post:%s:like_count"
	RedisChannelFollow    = "graph:follow_events"
)

// 错误信息
const (
	ErrInvalidParams     = "参数无效"
	ErrUnauthorized      = "未授权"
	ErrUserNotFound      = "用户不存在"
	ErrPasswordIncorrect = "密码错误"
	ErrUserExists        = "用户已存在"
	ErrSelfFollow        = "不能关注自己"
	ErrPostNotFound      = "内容不存在"
	ErrFeedNotFound      = "订阅源不存在"
	ErrInvalidCursor     = "游标无效"
)
