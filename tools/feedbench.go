package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/feed"
	"pulseFeed/internal/graph"
	"pulseFeed/internal/model"
)

// 订阅源构建性能测试：内存库灌入社交图与内容，整页走读测耗时。
// 用法: go run tools/feedbench.go
func main() {
	fmt.Println("pulseFeed 订阅源构建性能测试")
	fmt.Println("========================================")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("打开内存库失败: %v", err)
	}
	if err := model.SetupDatabase(db); err != nil {
		log.Fatalf("建表失败: %v", err)
	}

	const (
		authorCount   = 50
		postsPerUser  = 40
		walkIteration = 20
	)

	seedStart := time.Now()
	seed(db, authorCount, postsPerUser)
	fmt.Printf("灌数完成: %d 用户 × %d 条内容, 耗时 %s\n\n",
		authorCount, postsPerUser, time.Since(seedStart))

	svc := feed.NewFeedService(db)
	ctx := context.Background()

	// 整库走读若干轮，统计页耗时
	var pages, items int
	var total time.Duration
	for i := 0; i < walkIteration; i++ {
		cursor := ""
		for {
			start := time.Now()
			page, err := svc.BuildPage(ctx, "viewer", nil, 20, cursor)
			if err != nil {
				log.Fatalf("构建订阅源失败: %v", err)
			}
			total += time.Since(start)
			pages++
			items += len(page.List)
			if !page.HasMore {
				break
			}
			cursor = page.NextCursor
		}
	}

	fmt.Printf("走读轮数:   %d\n", walkIteration)
	fmt.Printf("总页数:     %d\n", pages)
	fmt.Printf("总条数:     %d\n", items)
	fmt.Printf("总耗时:     %s\n", total)
	fmt.Printf("平均页耗时: %s\n", total/time.Duration(pages))
}

// seed 灌入查看者、作者、关注边与内容
func seed(db *gorm.DB, authorCount, postsPerUser int) {
	if err := db.Create(&model.User{ID: "viewer", Username: "viewer", Nickname: "viewer"}).Error; err != nil {
		log.Fatalf("写入查看者失败: %v", err)
	}

	graphSvc := graph.NewGraphService(db)
	base := time.Now().UTC().Add(-24 * time.Hour)

	for i := 0; i < authorCount; i++ {
		authorID := fmt.Sprintf("author%03d", i)
		if err := db.Create(&model.User{ID: authorID, Username: authorID, Nickname: authorID}).Error; err != nil {
			log.Fatalf("写入作者失败: %v", err)
		}
		if _, err := graphSvc.Follow(context.Background(), "viewer", authorID); err != nil {
			log.Fatalf("建立关注边失败: %v", err)
		}

		visibilities := []string{
			constants.VisibilityPublic,
			constants.VisibilityFollowers,
			constants.VisibilityPrivate,
		}
		for j := 0; j < postsPerUser; j++ {
			post := model.Post{
				ID:         fmt.Sprintf("%s-p%03d", authorID, j),
				AuthorID:   authorID,
				Type:       constants.PostTypeText,
				Content:    fmt.Sprintf("%s 的第 %d 条", authorID, j),
				Visibility: visibilities[j%len(visibilities)],
				CreatedAt:  base.Add(time.Duration(i*postsPerUser+j) * time.Second),
			}
			if err := db.Create(&post).Error; err != nil {
				log.Fatalf("写入内容失败: %v", err)
			}
		}
	}
}
