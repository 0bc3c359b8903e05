package database

import (
	"context"
	"database/sql"

	"github.com/hatlonely/orm/rdb"
	"github.com/pkg/errors"
)

type executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Conn 基于 database/sql 的 rdb.Connection 实现
// 由 SQLProvider.Acquire 创建时独占一个底层连接，Close 后归还连接池
type Conn struct {
	db      executor
	conn    *sql.Conn
	dialect *dialect

	// integerKey 主键为整数类型，LastInsertId 才有意义
	integerKey bool
	closed     bool
}

func (c *Conn) Query(ctx context.Context, stmt *rdb.Statement) (rdb.Cursor, error) {
	if stmt == nil {
		return nil, errors.New("statement is nil")
	}
	if c.closed {
		return nil, sql.ErrConnDone
	}

	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	cursor, err := newRowsCursor(rows)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (c *Conn) Exec(ctx context.Context, stmt *rdb.Statement) (*rdb.ExecResult, error) {
	if stmt == nil {
		return nil, errors.New("statement is nil")
	}
	if c.closed {
		return nil, sql.ErrConnDone
	}

	sqlStr := c.dialect.rebind(stmt.SQL)
	if stmt.KeyColumn != "" && c.dialect.returning {
		rows, err := c.db.QueryContext(ctx, sqlStr+" returning "+c.dialect.quoter.Quote(stmt.KeyColumn), stmt.Args...)
		if err != nil {
			return nil, errors.Wrap(err, "exec failed")
		}
		keys, affected, err := collect(rows)
		if err != nil {
			return nil, err
		}
		return &rdb.ExecResult{RowsAffected: affected, GeneratedKeys: keys}, nil
	}

	res, err := c.db.ExecContext(ctx, sqlStr, stmt.Args...)
	if err != nil {
		return nil, errors.Wrap(err, "exec failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}

	result := &rdb.ExecResult{RowsAffected: affected}
	if stmt.KeyColumn != "" && c.integerKey && affected > 0 {
		// 驱动不支持 LastInsertId 时不回填
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			result.GeneratedKeys = rdb.NewSliceCursor(rdb.Row{stmt.KeyColumn: id})
		}
	}
	return result, nil
}

// Close 归还底层连接，重复调用无副作用
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
