package cursor

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"pulseFeed/internal/errno"
)

// Cursor 翻页位置，指向上一页最后一条已返回内容
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode 编码为不透明令牌，格式 base64(纳秒时间戳|内容ID)。
// 纳秒精度与存储的时间精度持平，并列时间戳的行不会在翻页边界上丢失
func Encode(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode 解析令牌，任何结构不合法的令牌都返回 InvalidCursorErr，不做静默重置
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, errno.InvalidCursorErr
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, errno.InvalidCursorErr
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, errno.InvalidCursorErr
	}
	nano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, errno.InvalidCursorErr
	}
	// 统一还原为 UTC，存储层按同一时区比较键集边界
	return Cursor{CreatedAt: time.Unix(0, nano).UTC(), ID: parts[1]}, nil
}
