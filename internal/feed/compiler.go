package feed

import (
	"time"

	"gorm.io/gorm"

	"pulseFeed/internal/constants"
)

// Pipeline 编译结果：一个复合谓词加一份排序/限量说明，
// 只是值对象，不含执行逻辑，执行由订阅源构建器完成
type Pipeline struct {
	// AuthorInclude 折叠后的作者包含集；nil 表示未出现作者包含块
	AuthorInclude []string
	// AlwaysFalse 恒假谓词，合法地返回空订阅源，不是错误
	AlwaysFalse bool
	// Scope 与谓词块等价的 SQL 谓词；nil 表示没有谓词块
	Scope func(*gorm.DB) *gorm.DB
	// Ascending 排序方向，默认新到旧
	Ascending bool
	// Limit 限量块的上限，0 表示没有限量块；只压低调用方页大小，从不抬高
	Limit int
}

// PageSize 把调用方请求的页大小折进限量块
func (p *Pipeline) PageSize(requested int) int {
	if p.Limit > 0 && p.Limit < requested {
		return p.Limit
	}
	return requested
}

// condition 单块编成的 SQL 片段
type condition struct {
	sql  string
	vars []interface{}
}

// Compile 把有序过滤块列表编成管线。
// AND 模式下同字段包含块做操作数集合求交，排除块求并后剔除——
// 确定性的冲突裁决，绝不静默丢弃其中一个过滤块；
// OR 模式下逐块编谓词后求并
func Compile(blocks []Block, combineMode string) (*Pipeline, error) {
	if err := ValidateBlocks(blocks, combineMode); err != nil {
		return nil, err
	}

	p := &Pipeline{}

	var predicates []Block
	for _, b := range blocks {
		switch b.Kind {
		case constants.BlockKindSort:
			if b.Direction == constants.SortDirectionAsc {
				p.Ascending = true
			}
		case constants.BlockKindLimit:
			// 多个限量块取最严格的一个
			if p.Limit == 0 || b.Limit < p.Limit {
				p.Limit = b.Limit
			}
		default:
			predicates = append(predicates, b)
		}
	}

	if len(predicates) == 0 {
		return p, nil
	}

	var conds []condition
	if combineMode == constants.CombineModeAnd {
		conds = compileAnd(predicates, p)
	} else {
		conds = compileOr(predicates, p)
	}
	if p.AlwaysFalse {
		return p, nil
	}
	if len(conds) == 0 {
		return p, nil
	}

	joiner := " AND "
	if combineMode == constants.CombineModeOr {
		joiner = " OR "
	}
	sql, vars := joinConditions(conds, joiner)
	p.Scope = func(db *gorm.DB) *gorm.DB {
		return db.Where(sql, vars...)
	}
	return p, nil
}

// compileAnd 按字段折叠谓词块
func compileAnd(predicates []Block, p *Pipeline) []condition {
	type fieldSets struct {
		include    []string
		hasInclude bool
		exclude    []string
	}
	sets := map[string]*fieldSets{}
	fieldSet := func(kind string) *fieldSets {
		if sets[kind] == nil {
			sets[kind] = &fieldSets{}
		}
		return sets[kind]
	}

	var rangeFrom, rangeTo time.Time
	hasRange := false
	var rangeExcludes []Block

	for _, b := range predicates {
		switch b.Kind {
		case constants.BlockKindAuthor, constants.BlockKindType, constants.BlockKindTag:
			fs := fieldSet(b.Kind)
			if b.Operator == constants.OperatorInclude {
				if fs.hasInclude {
					fs.include = intersect(fs.include, b.Values)
				} else {
					fs.include = dedup(b.Values)
					fs.hasInclude = true
				}
			} else {
				fs.exclude = union(fs.exclude, b.Values)
			}
		case constants.BlockKindDateRange:
			if b.Operator == constants.OperatorInclude {
				// 时间窗求交：下界取晚者，上界取早者
				if !hasRange {
					rangeFrom, rangeTo = b.From, b.To
					hasRange = true
				} else {
					if !b.From.IsZero() && (rangeFrom.IsZero() || b.From.After(rangeFrom)) {
						rangeFrom = b.From
					}
					if !b.To.IsZero() && (rangeTo.IsZero() || b.To.Before(rangeTo)) {
						rangeTo = b.To
					}
				}
			} else {
				rangeExcludes = append(rangeExcludes, b)
			}
		}
	}

	var conds []condition
	for _, kind := range []string{constants.BlockKindAuthor, constants.BlockKindType, constants.BlockKindTag} {
		fs := sets[kind]
		if fs == nil {
			continue
		}
		if fs.hasInclude {
			fs.include = subtract(fs.include, fs.exclude)
			if len(fs.include) == 0 {
				// 包含集折叠为空：恒假，订阅源合法地为空
				p.AlwaysFalse = true
				return nil
			}
			conds = append(conds, fieldCondition(kind, constants.OperatorInclude, fs.include))
			if kind == constants.BlockKindAuthor {
				p.AuthorInclude = fs.include
			}
		} else if len(fs.exclude) > 0 {
			conds = append(conds, fieldCondition(kind, constants.OperatorExclude, fs.exclude))
		}
	}

	if hasRange {
		if !rangeFrom.IsZero() && !rangeTo.IsZero() && rangeTo.Before(rangeFrom) {
			p.AlwaysFalse = true
			return nil
		}
		if c, ok := rangeCondition(rangeFrom, rangeTo, constants.OperatorInclude); ok {
			conds = append(conds, c)
		}
	}
	for _, b := range rangeExcludes {
		if c, ok := rangeCondition(b.From, b.To, constants.OperatorExclude); ok {
			conds = append(conds, c)
		}
	}
	return conds
}

// compileOr 逐块编谓词；恒假的块不参与求并
func compileOr(predicates []Block, p *Pipeline) []condition {
	var conds []condition
	allFalse := true
	for _, b := range predicates {
		switch b.Kind {
		case constants.BlockKindAuthor, constants.BlockKindType, constants.BlockKindTag:
			values := dedup(b.Values)
			if b.Operator == constants.OperatorInclude && len(values) == 0 {
				continue // 空包含集恒假
			}
			conds = append(conds, fieldCondition(b.Kind, b.Operator, values))
			allFalse = false
		case constants.BlockKindDateRange:
			if c, ok := rangeCondition(b.From, b.To, b.Operator); ok {
				conds = append(conds, c)
				allFalse = false
			}
		}
	}
	if allFalse {
		p.AlwaysFalse = true
		return nil
	}
	return conds
}

func fieldCondition(kind, operator string, values []string) condition {
	column := map[string]string{
		constants.BlockKindAuthor: "author_id",
		constants.BlockKindType:   "type",
	}[kind]

	if kind == constants.BlockKindTag {
		sub := "EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.tag IN ?)"
		if operator == constants.OperatorExclude {
			return condition{"NOT " + sub, []interface{}{values}}
		}
		return condition{sub, []interface{}{values}}
	}

	if operator == constants.OperatorExclude {
		return condition{column + " NOT IN ?", []interface{}{values}}
	}
	return condition{column + " IN ?", []interface{}{values}}
}

func rangeCondition(from, to time.Time, operator string) (condition, bool) {
	var parts []string
	var vars []interface{}
	if !from.IsZero() {
		parts = append(parts, "created_at >= ?")
		vars = append(vars, from)
	}
	if !to.IsZero() {
		parts = append(parts, "created_at <= ?")
		vars = append(vars, to)
	}
	if len(parts) == 0 {
		return condition{}, false
	}

	if operator == constants.OperatorExclude {
		// 排除窗内即落在窗外
		var outs []string
		var outVars []interface{}
		if !from.IsZero() {
			outs = append(outs, "created_at < ?")
			outVars = append(outVars, from)
		}
		if !to.IsZero() {
			outs = append(outs, "created_at > ?")
			outVars = append(outVars, to)
		}
		sql := outs[0]
		if len(outs) == 2 {
			sql = "(" + outs[0] + " OR " + outs[1] + ")"
		}
		return condition{sql, outVars}, true
	}

	sql := parts[0]
	if len(parts) == 2 {
		sql = "(" + parts[0] + " AND " + parts[1] + ")"
	}
	return condition{sql, vars}, true
}

func joinConditions(conds []condition, joiner string) (string, []interface{}) {
	sql := ""
	var vars []interface{}
	for i, c := range conds {
		if i > 0 {
			sql += joiner
		}
		sql += "(" + c.sql + ")"
		vars = append(vars, c.vars...)
	}
	return sql, vars
}

func dedup(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func intersect(a, b []string) []string {
	in := map[string]bool{}
	for _, v := range b {
		in[v] = true
	}
	out := []string{}
	for _, v := range a {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range a {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func subtract(a, b []string) []string {
	drop := map[string]bool{}
	for _, v := range b {
		drop[v] = true
	}
	out := []string{}
	for _, v := range a {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}
