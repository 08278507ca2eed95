package visibility

import (
	"gorm.io/gorm"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/model"
)

// CanView 单条可见性判定，纯函数，关系标志由调用方给出
// 判定顺序：软删除 > 作者本人 > 可见性档位
func CanView(viewerID string, post *model.Post, isFollowingAuthor, isFriendWithAuthor bool) bool {
	if post.Deleted {
		return false
	}
	if post.AuthorID == viewerID {
		return true
	}
	switch post.Visibility {
	case constants.VisibilityPublic:
		return true
	case constants.VisibilityFollowers:
		return isFollowingAuthor
	case constants.VisibilityPrivate:
		return isFriendWithAuthor
	default:
		// 未知档位一律不可见
		return false
	}
}

// Scope 批量可见性过滤，生成与 CanView 等价的 SQL 谓词
// followingIDs/friendIDs 为空切片时对应档位整体不可见（IN (NULL) 恒假）
func Scope(viewerID string, followingIDs, friendIDs []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("deleted = ?", false).
			Where("(author_id = ? OR visibility = ? OR (visibility = ? AND author_id IN ?) OR (visibility = ? AND author_id IN ?))",
				viewerID, constants.VisibilityPublic,
				constants.VisibilityFollowers, followingIDs,
				constants.VisibilityPrivate, friendIDs)
	}
}
