package query

import (
	"strings"

	"github.com/pkg/errors"
)

// BoolQuery 布尔查询，Must 中的条件以 and 连接
type BoolQuery struct {
	Must []Query `json:"must,omitempty"`
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

func (q *BoolQuery) ToSQL(quoter Quoter) (string, []any, error) {
	if len(q.Must) == 0 {
		return "1 = 1", nil, nil
	}

	conditions := make([]string, 0, len(q.Must))
	var args []any
	for i, query := range q.Must {
		if query == nil {
			return "", nil, errors.Errorf("must[%d] is nil", i)
		}
		sql, queryArgs, err := query.ToSQL(quoter)
		if err != nil {
			return "", nil, errors.WithMessagef(err, "must[%d]", i)
		}
		// 嵌套的多条件查询需要加括号
		if sub, ok := query.(*BoolQuery); ok && len(sub.Must) > 1 {
			sql = "(" + sql + ")"
		}
		conditions = append(conditions, sql)
		args = append(args, queryArgs...)
	}

	return strings.Join(conditions, " and "), args, nil
}
