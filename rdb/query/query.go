package query

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool QueryType = "bool"
	QueryTypeTerm QueryType = "term"
)

// Query 查询节点接口
type Query interface {
	Type() QueryType
	// ToSQL 生成带 ? 占位符的条件表达式和对应的参数
	ToSQL(quoter Quoter) (string, []any, error)
}

// Term 构造等值条件
func Term(field string, value any) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

// And 构造多个条件的合取
func And(queries ...Query) *BoolQuery {
	return &BoolQuery{Must: queries}
}
