package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseFeed/internal/database"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
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

func viewerID(c *gin.Context) (string, bool) {
	id := c.GetString("userID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return "", false
	}
	return id, true
}

// GetFeed 构建一页订阅源；feed_id 为空时走默认时间线
func GetFeed(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	cursorToken := c.Query("cursor")

	db := database.GetDB()
	var def *model.FeedDefinition
	if feedID := c.Query("feed_id"); feedID != "" {
		loaded, err := NewDefinitionService(db).Get(c.Request.Context(), viewer, feedID)
		if err != nil {
			fail(c, err)
			return
		}
		def = loaded
	}

	page, err := NewFeedService(db).BuildPage(c.Request.Context(), viewer, def, pageSize, cursorToken)
	if err != nil {
		logrus.Errorf("为用户 %s 构建订阅源失败 (feed=%s, cursor=%s): %v",
			viewer, c.Query("feed_id"), cursorToken, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetUserPosts 某用户的内容页，可见性照常裁决
func GetUserPosts(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	page, err := NewFeedService(database.GetDB()).
		AuthorPosts(c.Request.Context(), viewer, c.Param("user_id"), pageSize, c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateFeedDefinition 新建订阅源定义
func CreateFeedDefinition(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req SaveDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	def, err := NewDefinitionService(database.GetDB()).Create(c.Request.Context(), viewer, &req)
	if err != nil {
		logrus.Errorf("用户 %s 创建订阅源定义失败: %v", viewer, err)
		fail(c, err)
		return
	}

	logrus.Infof("用户 %s 创建了订阅源定义 %s (%d 个过滤块)", viewer, def.ID, len(def.Blocks))
	c.JSON(http.StatusOK, def)
}

// ListFeedDefinitions 订阅源定义列表
func ListFeedDefinitions(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	defs, err := NewDefinitionService(database.GetDB()).List(c.Request.Context(), viewer)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": defs})
}

// GetFeedDefinition 读取单个订阅源定义
func GetFeedDefinition(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	def, err := NewDefinitionService(database.GetDB()).Get(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	resp, err := toDefinitionResponse(def)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateFeedDefinition 更新订阅源定义
func UpdateFeedDefinition(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req SaveDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	def, err := NewDefinitionService(database.GetDB()).
		Update(c.Request.Context(), viewer, c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// DeleteFeedDefinition 删除订阅源定义
func DeleteFeedDefinition(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	if err := NewDefinitionService(database.GetDB()).
		Delete(c.Request.Context(), viewer, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "订阅源定义已删除"})
}
