package database

import (
	"database/sql"

	"github.com/hatlonely/orm/rdb"
	"github.com/pkg/errors"
)

// rowsCursor 将 *sql.Rows 适配为 rdb.Cursor，每行按列名扫描为 rdb.Row
type rowsCursor struct {
	rows    *sql.Rows
	columns []string
	row     rdb.Row
	err     error
}

func newRowsCursor(rows *sql.Rows) (*rowsCursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "failed to read columns")
	}
	return &rowsCursor{rows: rows, columns: columns}, nil
}

func (c *rowsCursor) Next() bool {
	c.row = nil
	if c.err != nil || !c.rows.Next() {
		return false
	}

	values := make([]any, len(c.columns))
	valuePtrs := make([]any, len(c.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := c.rows.Scan(valuePtrs...); err != nil {
		c.err = errors.Wrap(err, "failed to scan row")
		return false
	}

	row := make(rdb.Row, len(c.columns))
	for i, col := range c.columns {
		row[col] = values[i]
	}
	c.row = row
	return true
}

func (c *rowsCursor) Row() (rdb.Row, error) {
	if c.row == nil {
		return nil, errors.New("cursor is not positioned on a row")
	}
	return c.row, nil
}

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}

// collect 读取所有行到内存，用于 returning 子句返回的主键
func collect(rows *sql.Rows) (*rdb.SliceCursor, int64, error) {
	cursor, err := newRowsCursor(rows)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close()

	var result []rdb.Row
	for cursor.Next() {
		result = append(result, cursor.row)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}
	return rdb.NewSliceCursor(result...), int64(len(result)), nil
}
