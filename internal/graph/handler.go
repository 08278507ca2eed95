package graph

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseFeed/internal/database"
	"pulseFeed/internal/errno"
)

// FollowRequest 关注/取关请求
type FollowRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func fail(c *gin.Context, err error) {
	e := errno.ConvertErr(err)
	// 内部错误完整记日志，出站只给通用描述，不透出存储层报错文本
	if e.ErrCode == errno.ServiceErrCode {
		logrus.Errorf("内部错误: %v", err)
	}
	e = e.ClientFacing()
	c.JSON(e.HTTPStatus(), gin.H{"code": e.ErrCode, "error": e.ErrMsg})
}

// FollowUser 处理关注请求
func FollowUser(c *gin.Context) {
	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	viewerID := c.GetString("userID")
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewGraphService(database.GetDB())
	result, err := svc.Follow(c.Request.Context(), viewerID, req.UserID)
	if err != nil {
		logrus.Errorf("用户 %s 关注 %s 失败: %v", viewerID, req.UserID, err)
		fail(c, err)
		return
	}

	logrus.Infof("用户 %s 关注了 %s (互关=%v)", viewerID, req.UserID, result.IsFriend)
	c.JSON(http.StatusOK, result)
}

// UnfollowUser 处理取消关注请求
func UnfollowUser(c *gin.Context) {
	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	viewerID := c.GetString("userID")
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewGraphService(database.GetDB())
	result, err := svc.Unfollow(c.Request.Context(), viewerID, req.UserID)
	if err != nil {
		logrus.Errorf("用户 %s 取关 %s 失败: %v", viewerID, req.UserID, err)
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFollowing 获取关注列表
func GetFollowing(c *gin.Context) {
	userID := c.Param("user_id")
	svc := NewGraphService(database.GetDB())
	users, err := svc.GetFollowing(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("获取用户 %s 关注列表失败: %v", userID, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": users})
}

// GetFollowers 获取粉丝列表
func GetFollowers(c *gin.Context) {
	userID := c.Param("user_id")
	svc := NewGraphService(database.GetDB())
	users, err := svc.GetFollowers(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("获取用户 %s 粉丝列表失败: %v", userID, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": users})
}

// GetFriends 获取好友列表
func GetFriends(c *gin.Context) {
	userID := c.Param("user_id")
	svc := NewGraphService(database.GetDB())
	users, err := svc.GetFriends(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("获取用户 %s 好友列表失败: %v", userID, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": users})
}

// GetRelation 获取查看者与目标用户的双向关系
func GetRelation(c *gin.Context) {
	viewerID := c.GetString("userID")
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	otherID := c.Param("user_id")
	svc := NewGraphService(database.GetDB())
	relation, err := svc.Relation(c.Request.Context(), viewerID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, relation)
}
