package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pulseFeed/internal/counter"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/middleware"
	"pulseFeed/internal/model"
)

// AccountService 账户服务，身份协作方：注册、登录与资料查询
type AccountService struct {
	db    *gorm.DB
	stats *counter.Cache
}

// NewAccountService 创建账户服务
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:    db,
		stats: counter.NewCache(db),
	}
}

// Register 注册新用户
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (string, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return "", errors.WithMessage(err, "user.Register 查询用户名失败")
	}
	if count > 0 {
		return "", errno.UserAlreadyExistErr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.WithMessage(err, "user.Register 哈希密码失败")
	}

	user := model.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Password:  string(hashedPassword),
		Nickname:  req.Nickname,
		AvatarURL: req.AvatarURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return "", errors.WithMessage(err, "user.Register 写入用户失败")
	}
	return user.ID, nil
}

// Login 用户登录，签发 JWT
func (s *AccountService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.UserNotExistErr
		}
		return nil, errors.WithMessage(err, "user.Login 查询用户失败")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errno.PasswordErr
	}

	token, err := middleware.GenerateToken(user.ID)
	if err != nil {
		return nil, errors.WithMessage(err, "user.Login 生成令牌失败")
	}

	logrus.Infof("用户 %s (ID: %s) 登录成功", req.Username, user.ID)
	return &LoginResponse{UserID: user.ID, Token: token}, nil
}

// GetUserByID 通过ID获取用户信息，计数从缓存读
func (s *AccountService) GetUserByID(ctx context.Context, userID string) (*UserResponse, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.UserNotExistErr
		}
		return nil, errors.WithMessage(err, "user.GetUserByID 查询用户失败")
	}

	resp := &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Nickname:  user.Nickname,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
	stats, err := s.stats.GetUserStats(ctx, userID)
	if err != nil {
		// 计数缓存失败不挡住资料查询，列上的值兜底
		logrus.Errorf("读取用户 %s 计数失败: %v", userID, err)
		resp.FollowerCount = user.FollowerCount
		resp.FollowingCount = user.FollowingCount
		resp.FriendCount = user.FriendCount
		return resp, nil
	}
	resp.FollowerCount = stats.FollowerCount
	resp.FollowingCount = stats.FollowingCount
	resp.FriendCount = stats.FriendCount
	return resp, nil
}

// SearchUsers 按用户名/昵称模糊搜索
func (s *AccountService) SearchUsers(ctx context.Context, query string) ([]*UserResponse, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).
		Where("username LIKE ? OR nickname LIKE ?", "%"+query+"%", "%"+query+"%").
		Limit(50).
		Find(&users).Error; err != nil {
		return nil, errors.WithMessage(err, "user.SearchUsers 查询失败")
	}

	response := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, &UserResponse{
			ID:             user.ID,
			Username:       user.Username,
			Nickname:       user.Nickname,
			AvatarURL:      user.AvatarURL,
			FollowerCount:  user.FollowerCount,
			FollowingCount: user.FollowingCount,
			FriendCount:    user.FriendCount,
			CreatedAt:      user.CreatedAt,
		})
	}
	return response, nil
}
