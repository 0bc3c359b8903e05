package database

import (
	"strconv"
	"strings"

	"github.com/hatlonely/orm/rdb/query"
	"github.com/pkg/errors"
)

// dialect 各驱动在占位符、标识符引用和主键回填上的差异
type dialect struct {
	driver string
	quoter query.Quoter

	// numbered 使用 $1, $2 形式的占位符
	numbered bool

	// returning insert 语句通过 returning 子句返回主键，否则使用 LastInsertId
	returning bool
}

func dialectOf(driver string) (*dialect, error) {
	switch driver {
	case "mysql":
		return &dialect{driver: driver, quoter: query.Backtick}, nil
	case "sqlite3", "sqlite":
		return &dialect{driver: "sqlite3", quoter: query.ANSI}, nil
	case "postgres", "pgx":
		return &dialect{driver: driver, quoter: query.ANSI, numbered: true, returning: true}, nil
	}
	return nil, errors.Errorf("unsupported driver: %s", driver)
}

// rebind 将 ? 占位符替换为驱动需要的形式，引号内的 ? 保持不变
func (d *dialect) rebind(sqlStr string) string {
	if !d.numbered || !strings.Contains(sqlStr, "?") {
		return sqlStr
	}

	var sb strings.Builder
	sb.Grow(len(sqlStr) + 8)

	n := 0
	var quote rune
	for _, ch := range sqlStr {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			sb.WriteRune(ch)
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
			sb.WriteRune(ch)
		case ch == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
