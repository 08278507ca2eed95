package content

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseFeed/internal/database"
	"pulseFeed/internal/errno"
)

func fail(c *gin.Context, err error) {
	e := errno.ConvertErr(err)
	// 内部错误完整记日志，出站只给通用描述，不透出存储层报错文本
	if e.ErrCode == errno.ServiceErrCode {
		logrus.Errorf("内部错误: %v", err)
	}
	e = e.ClientFacing()
	c.JSON(e.HTTPStatus(), gin.H{"code": e.ErrCode, "error": e.ErrMsg})
}

// CreatePost 发布内容
func CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	authorID := c.GetString("userID")
	if authorID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewPostService(database.GetDB())
	post, err := svc.CreatePost(c.Request.Context(), authorID, &req)
	if err != nil {
		logrus.Errorf("用户 %s 发布内容失败: %v", authorID, err)
		fail(c, err)
		return
	}

	logrus.Infof("用户 %s 发布了内容 %s (%s)", authorID, post.ID, post.Visibility)
	c.JSON(http.StatusOK, post)
}

// GetPost 读取单条内容
func GetPost(c *gin.Context) {
	viewerID := c.GetString("userID")
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewPostService(database.GetDB())
	post, err := svc.GetPost(c.Request.Context(), viewerID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost 删除（软删除）自己的内容
func DeletePost(c *gin.Context) {
	authorID := c.GetString("userID")
	if authorID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	postID := c.Param("id")
	svc := NewPostService(database.GetDB())
	if err := svc.DeletePost(c.Request.Context(), authorID, postID); err != nil {
		logrus.Errorf("用户 %s 删除内容 %s 失败: %v", authorID, postID, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "内容已删除"})
}

// LikePost 点赞
func LikePost(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewPostService(database.GetDB())
	if err := svc.LikePost(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "点赞成功"})
}

// UnlikePost 取消点赞
func UnlikePost(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewPostService(database.GetDB())
	if err := svc.UnlikePost(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已取消点赞"})
}
