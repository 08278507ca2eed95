package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
)

// SaveDefinitionRequest 保存订阅源定义的请求
type SaveDefinitionRequest struct {
	Name        string  `json:"name" binding:"required"`
	CombineMode string  `json:"combine_mode"`
	Blocks      []Block `json:"blocks"`
}

// DefinitionResponse 订阅源定义响应
type DefinitionResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	CombineMode string    `json:"combine_mode"`
	Blocks      []Block   `json:"blocks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefinitionService 订阅源定义的增删改查，全部按归属人限定
type DefinitionService struct {
	db *gorm.DB
}

// NewDefinitionService 创建订阅源定义服务
func NewDefinitionService(db *gorm.DB) *DefinitionService {
	return &DefinitionService{db: db}
}

// Create 新建订阅源定义，过滤块在保存时校验，未知块类型当场拒绝
func (s *DefinitionService) Create(ctx context.Context, ownerID string, req *SaveDefinitionRequest) (*DefinitionResponse, error) {
	if req.CombineMode == "" {
		req.CombineMode = constants.CombineModeAnd
	}
	if err := ValidateBlocks(req.Blocks, req.CombineMode); err != nil {
		return nil, err
	}

	raw, err := marshalBlocks(req.Blocks)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	def := model.FeedDefinition{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        req.Name,
		CombineMode: req.CombineMode,
		Blocks:      raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&def).Error; err != nil {
		return nil, errors.WithMessage(err, "feed.Create 写入订阅源定义失败")
	}
	return toDefinitionResponse(&def)
}

// Update 更新订阅源定义，同样走保存时校验
func (s *DefinitionService) Update(ctx context.Context, ownerID, defID string, req *SaveDefinitionRequest) (*DefinitionResponse, error) {
	def, err := s.load(ctx, ownerID, defID)
	if err != nil {
		return nil, err
	}

	if req.CombineMode == "" {
		req.CombineMode = def.CombineMode
	}
	if err := ValidateBlocks(req.Blocks, req.CombineMode); err != nil {
		return nil, err
	}
	raw, err := marshalBlocks(req.Blocks)
	if err != nil {
		return nil, err
	}

	def.Name = req.Name
	def.CombineMode = req.CombineMode
	def.Blocks = raw
	def.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(def).Error; err != nil {
		return nil, errors.WithMessage(err, "feed.Update 更新订阅源定义失败")
	}
	return toDefinitionResponse(def)
}

// Get 读取归属人自己的订阅源定义
func (s *DefinitionService) Get(ctx context.Context, ownerID, defID string) (*model.FeedDefinition, error) {
	return s.load(ctx, ownerID, defID)
}

// List 归属人的全部订阅源定义
func (s *DefinitionService) List(ctx context.Context, ownerID string) ([]*DefinitionResponse, error) {
	var defs []model.FeedDefinition
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&defs).Error; err != nil {
		return nil, errors.WithMessage(err, "feed.List 查询订阅源定义失败")
	}
	out := make([]*DefinitionResponse, 0, len(defs))
	for i := range defs {
		resp, err := toDefinitionResponse(&defs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// Delete 删除归属人自己的订阅源定义
func (s *DefinitionService) Delete(ctx context.Context, ownerID, defID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", defID, ownerID).
		Delete(&model.FeedDefinition{})
	if res.Error != nil {
		return errors.WithMessage(res.Error, "feed.Delete 删除订阅源定义失败")
	}
	if res.RowsAffected == 0 {
		return errno.FeedNotExistErr
	}
	return nil
}

// load 归属人限定的读取；别人的定义与不存在的定义返回同样的错误
func (s *DefinitionService) load(ctx context.Context, ownerID, defID string) (*model.FeedDefinition, error) {
	var def model.FeedDefinition
	if err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", defID, ownerID).
		First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.FeedNotExistErr
		}
		return nil, errors.WithMessage(err, "feed.load 查询订阅源定义失败")
	}
	return &def, nil
}

func marshalBlocks(blocks []Block) (datatypes.JSON, error) {
	if blocks == nil {
		blocks = []Block{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, errors.WithMessage(err, "feed 序列化过滤块失败")
	}
	return datatypes.JSON(raw), nil
}

func toDefinitionResponse(def *model.FeedDefinition) (*DefinitionResponse, error) {
	blocks, err := ParseBlocks(def.Blocks)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []Block{}
	}
	return &DefinitionResponse{
		ID:          def.ID,
		OwnerID:     def.OwnerID,
		Name:        def.Name,
		CombineMode: def.CombineMode,
		Blocks:      blocks,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}, nil
}
