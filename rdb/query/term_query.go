package query

import (
	"github.com/pkg/errors"
)

// TermQuery 精确匹配查询，Field 为数据库列名
type TermQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (q *TermQuery) Type() QueryType {
	return QueryTypeTerm
}

func (q *TermQuery) ToSQL(quoter Quoter) (string, []any, error) {
	if q.Field == "" {
		return "", nil, errors.New("term query field is empty")
	}
	return quoter.Quote(q.Field) + " = ?", []any{q.Value}, nil
}
