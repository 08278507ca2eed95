package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
)

// 手动端到端驱动：注册两个用户、互相关注、发几条内容，然后逐页走读订阅源。
// 用法: go run test/feed_client.go [服务地址]
func main() {
	base := "http://localhost:8082"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}

	alice := newClient(base)
	bob := newClient(base)

	alice.register("alice_demo", "password123", "Alice")
	bob.register("bob_demo", "password123", "Bob")

	// 互相关注，构成好友关系
	alice.post("/api/follow", map[string]string{"user_id": bob.userID})
	result := bob.post("/api/follow", map[string]string{"user_id": alice.userID})
	log.Printf("Bob 关注 Alice 的结果: %s", result)

	// Bob 发内容：公开、好友档位各一条
	bob.post("/api/posts", map[string]interface{}{
		"content": "公开的一条", "visibility": "public", "tags": []string{"demo"},
	})
	bob.post("/api/posts", map[string]interface{}{
		"content": "只给好友的一条", "visibility": "private",
	})
	for i := 0; i < 5; i++ {
		bob.post("/api/posts", map[string]interface{}{
			"content": fmt.Sprintf("第 %d 条", i), "visibility": "public",
		})
	}

	// Alice 逐页走读默认时间线
	cursor := ""
	for page := 1; ; page++ {
		query := url.Values{"page_size": {"3"}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		body := alice.get("/api/feed?" + query.Encode())

		var resp struct {
			List []struct {
				ID      string `json:"id"`
				Content string `json:"content"`
			} `json:"list"`
			NextCursor string `json:"next_cursor"`
			HasMore    bool   `json:"has_more"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			log.Fatalf("解析订阅源响应失败: %v", err)
		}

		log.Printf("第 %d 页 (%d 条, has_more=%v):", page, len(resp.List), resp.HasMore)
		for _, item := range resp.List {
			log.Printf("  - %s: %s", item.ID, item.Content)
		}
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	log.Println("订阅源走读完成")
}

type client struct {
	base   string
	token  string
	userID string
}

func newClient(base string) *client {
	return &client{base: base}
}

func (c *client) register(username, password, nickname string) {
	body := c.post("/api/register", map[string]string{
		"username": username, "password": password, "nickname": nickname,
	})
	var reg struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &reg); err != nil || reg.UserID == "" {
		// 可能已注册过，直接登录
		log.Printf("注册 %s 未新建用户，尝试直接登录", username)
	} else {
		c.userID = reg.UserID
	}

	body = c.post("/api/login", map[string]string{"username": username, "password": password})
	var login struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		log.Fatalf("登录 %s 失败: %s", username, body)
	}
	c.token = login.Token
	c.userID = login.UserID
	log.Printf("用户 %s 就绪 (ID: %s)", username, c.userID)
}

func (c *client) post(path string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("序列化请求失败: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("构建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) get(path string) []byte {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		log.Fatalf("构建请求失败: %v", err)
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) []byte {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("请求 %s 失败: %v", req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("读取响应失败: %v", err)
	}
	if resp.StatusCode >= 500 {
		log.Fatalf("请求 %s 返回 %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	return body
}
