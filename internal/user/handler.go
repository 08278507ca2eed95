package user

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

// Register 处理用户注册
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	svc := NewAccountService(database.GetDB())
	userID, err := svc.Register(c.Request.Context(), &req)
	if err != nil {
		logrus.Errorf("注册用户 %s 失败: %v", req.Username, err)
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "用户注册成功",
		"user_id": userID,
	})
}

// Login 处理用户登录
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": err.Error()})
		return
	}

	svc := NewAccountService(database.GetDB())
	response, err := svc.Login(c.Request.Context(), &req)
	if err != nil {
		logrus.Errorf("%s 登录失败: %v", req.Username, err)
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": response.UserID, "token": response.Token})
}

// GetUserInfo 获取当前用户信息
func GetUserInfo(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errno.TokenInvalidCode, "error": "未授权"})
		return
	}

	svc := NewAccountService(database.GetDB())
	user, err := svc.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SearchUsers 搜索用户
func SearchUsers(c *gin.Context) {
	// 支持 q 或 username 参数
	query := c.Query("q")
	if query == "" {
		query = c.Query("username")
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": errno.ParamErrCode, "error": "搜索查询不能为空"})
		return
	}

	svc := NewAccountService(database.GetDB())
	users, err := svc.SearchUsers(c.Request.Context(), query)
	if err != nil {
		logrus.Errorf("搜索用户出错: %v", err)
		fail(c, err)
		return
	}

	logrus.Infof("找到 %d 个匹配查询 '%s' 的用户", len(users), query)
	c.JSON(http.StatusOK, gin.H{"list": users})
}
