package feed

import (
	"encoding/json"
	"time"

	"pulseFeed/internal/constants"
	"pulseFeed/internal/errno"
	"pulseFeed/internal/model"
)

// Block 过滤块，封闭的标签联合：author/type/tag/date_range 为谓词块，
// sort/limit 为控制块。块是纯的，只收窄或排序候选集，从不修改数据
type Block struct {
	Kind     string   `json:"kind"`
	Operator string   `json:"operator,omitempty"` // include/exclude，谓词块必填
	Values   []string `json:"values,omitempty"`   // author/type/tag 的操作数集合

	// date_range 块的时间窗，零值表示开区间
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	// sort 块
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`

	// limit 块
	Limit int `json:"limit,omitempty"`
}

// ParseBlocks 从 JSON 列反序列化过滤块列表，空列为零块
func ParseBlocks(raw []byte) ([]Block, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, errno.ParamErr.WithMessage("过滤块格式无效")
	}
	return blocks, nil
}

// ParseDefinition 解析订阅源定义携带的过滤块
func ParseDefinition(def *model.FeedDefinition) ([]Block, error) {
	if def == nil {
		return nil, nil
	}
	return ParseBlocks(def.Blocks)
}

// ValidateBlocks 保存时校验，未知块类型在这里拒绝，不留到读取时
func ValidateBlocks(blocks []Block, combineMode string) error {
	if combineMode != constants.CombineModeAnd && combineMode != constants.CombineModeOr {
		return errno.ParamErr.WithMessage("不支持的组合模式")
	}
	for _, b := range blocks {
		switch b.Kind {
		case constants.BlockKindAuthor, constants.BlockKindType, constants.BlockKindTag:
			if b.Operator != constants.OperatorInclude && b.Operator != constants.OperatorExclude {
				return errno.ParamErr.WithMessage("过滤块缺少合法操作符")
			}
		case constants.BlockKindDateRange:
			if b.Operator != constants.OperatorInclude && b.Operator != constants.OperatorExclude {
				return errno.ParamErr.WithMessage("过滤块缺少合法操作符")
			}
			if b.From.IsZero() && b.To.IsZero() {
				return errno.ParamErr.WithMessage("时间范围块至少要有一端边界")
			}
			if !b.From.IsZero() && !b.To.IsZero() && b.To.Before(b.From) {
				return errno.ParamErr.WithMessage("时间范围块边界颠倒")
			}
		case constants.BlockKindSort:
			if b.Field != "" && b.Field != constants.SortFieldCreatedAt {
				return errno.UnsupportedFilterErr.WithMessage("不支持的排序字段")
			}
			if b.Direction != "" &&
				b.Direction != constants.SortDirectionAsc &&
				b.Direction != constants.SortDirectionDesc {
				return errno.ParamErr.WithMessage("不支持的排序方向")
			}
		case constants.BlockKindLimit:
			if b.Limit <= 0 {
				return errno.ParamErr.WithMessage("限量块必须为正数")
			}
		default:
			return errno.UnsupportedFilterErr
		}
	}
	return nil
}
