package rdb

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Statement 一条待执行的 SQL 语句
// SQL 中使用 ? 作为占位符，Args 按占位符顺序给出绑定参数
type Statement struct {
	SQL  string
	Args []any

	// KeyColumn insert 语句需要回填的主键列名，其他语句为空
	KeyColumn string
}

// Inline 将绑定参数以字面量形式内联到 SQL 中，仅用于日志和调试输出
// 字符串使用单引号并转义内部单引号，数值和布尔值不加引号，nil 输出 null
func (s *Statement) Inline() string {
	if s == nil {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(s.SQL) + 16*len(s.Args))

	argIdx := 0
	var quote rune
	for _, ch := range s.SQL {
		switch {
		case quote != 0:
			// 处于引号内部（标识符或字符串），原样输出
			if ch == quote {
				quote = 0
			}
			sb.WriteRune(ch)
		case ch == '"' || ch == '`' || ch == '\'':
			quote = ch
			sb.WriteRune(ch)
		case ch == '?' && argIdx < len(s.Args):
			sb.WriteString(Literal(s.Args[argIdx]))
			argIdx++
		default:
			sb.WriteRune(ch)
		}
	}

	return sb.String()
}

func (s *Statement) String() string {
	return s.Inline()
}

// Literal 将单个值格式化为 SQL 字面量
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

func formatFloat(f float64, bitSize int) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "'" + strconv.FormatFloat(f, 'g', -1, bitSize) + "'"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

// Row 结果集中的一行，按列名索引
type Row map[string]any

// Value 获取列值，第二个返回值表示该列是否存在于结果中
// 优先精确匹配，找不到时按不区分大小写匹配，数据库可能返回折叠了大小写的列名
func (r Row) Value(column string) (any, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

// Cursor 只进的结果游标
type Cursor interface {
	// Next 前进到下一行，没有更多行或出错时返回 false
	Next() bool
	// Row 返回当前行
	Row() (Row, error)
	// Err 返回迭代过程中遇到的错误
	Err() error
	Close() error
}

// ExecResult 写操作的执行结果
type ExecResult struct {
	RowsAffected int64

	// GeneratedKeys 数据库生成的主键，驱动不支持时为 nil
	GeneratedKeys Cursor
}

// Connection 映射引擎依赖的最小连接能力
// 连接由 Session 独占，同一连接不应被多个 goroutine 并发使用
type Connection interface {
	// Query 执行查询语句
	Query(ctx context.Context, stmt *Statement) (Cursor, error)
	// Exec 执行写语句，返回影响行数和生成的主键
	Exec(ctx context.Context, stmt *Statement) (*ExecResult, error)
	Close() error
}

// SliceCursor 基于内存切片的 Cursor 实现
type SliceCursor struct {
	rows []Row
	idx  int
}

func NewSliceCursor(rows ...Row) *SliceCursor {
	return &SliceCursor{rows: rows, idx: -1}
}

func (c *SliceCursor) Next() bool {
	if c.idx+1 >= len(c.rows) {
		c.idx = len(c.rows)
		return false
	}
	c.idx++
	return true
}

func (c *SliceCursor) Row() (Row, error) {
	if c.idx < 0 || c.idx >= len(c.rows) {
		return nil, errors.New("cursor is not positioned on a row")
	}
	return c.rows[c.idx], nil
}

func (c *SliceCursor) Err() error {
	return nil
}

func (c *SliceCursor) Close() error {
	c.idx = len(c.rows)
	return nil
}
