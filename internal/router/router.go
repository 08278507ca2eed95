package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pulseFeed/internal/content"
	"pulseFeed/internal/feed"
	"pulseFeed/internal/graph"
	"pulseFeed/internal/middleware"
	"pulseFeed/internal/user"
)

// SetupRouter 配置所有路由
func SetupRouter() *gin.Engine {
	r := gin.Default()

	// CORS 配置
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 请求日志中间件，带请求ID方便跟踪
	r.Use(func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("requestID", requestID)

		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)

		logrus.Infof("[%s] 请求: %s %s, 状态: %d, 延迟: %s",
			requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency)
	})

	// API 路由
	api := r.Group("/api")
	{
		// ----- 无需认证的路由 -----
		api.POST("/register", user.Register)
		api.POST("/login", user.Login)

		// ----- 需要认证的路由 -----
		auth := api.Group("/")
		auth.Use(middleware.JWT())
		{
			// ----- 用户相关 -----
			auth.GET("/user/info", user.GetUserInfo)
			auth.GET("/users/search", user.SearchUsers)

			// ----- 社交图相关 -----
			auth.POST("/follow", graph.FollowUser)
			auth.POST("/unfollow", graph.UnfollowUser)
			auth.GET("/users/:user_id/following", graph.GetFollowing)
			auth.GET("/users/:user_id/followers", graph.GetFollowers)
			auth.GET("/users/:user_id/friends", graph.GetFriends)
			auth.GET("/users/:user_id/relation", graph.GetRelation)

			// ----- 内容相关 -----
			auth.POST("/posts", content.CreatePost)
			auth.GET("/posts/:id", content.GetPost)
			auth.DELETE("/posts/:id", content.DeletePost)
			auth.POST("/posts/:id/like", content.LikePost)
			auth.DELETE("/posts/:id/like", content.UnlikePost)
			auth.GET("/users/:user_id/posts", feed.GetUserPosts)

			// ----- 订阅源相关 -----
			auth.GET("/feed", feed.GetFeed)
			auth.POST("/feeds", feed.CreateFeedDefinition)
			auth.GET("/feeds", feed.ListFeedDefinitions)
			auth.GET("/feeds/:id", feed.GetFeedDefinition)
			auth.PUT("/feeds/:id", feed.UpdateFeedDefinition)
			auth.DELETE("/feeds/:id", feed.DeleteFeedDefinition)
		}
	}

	return r
}
