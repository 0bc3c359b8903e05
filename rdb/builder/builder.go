package builder

import (
	"strings"

	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/query"
)

// Builder 根据实体描述和对象当前状态生成 SQL 语句
// 生成的语句使用 ? 占位符，值通过 Statement.Args 绑定
type Builder struct {
	quoter query.Quoter
}

type Option func(*Builder)

// WithQuoter 设置标识符引用规则，默认 query.ANSI
func WithQuoter(quoter query.Quoter) Option {
	return func(b *Builder) {
		b.quoter = quoter
	}
}

func New(opts ...Option) *Builder {
	b := &Builder{quoter: query.ANSI}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Insert 生成 insert 语句，列为除主键外的所有列
// 有主键时 Statement.KeyColumn 为主键列名，用于获取数据库生成的主键
func (b *Builder) Insert(d *entity.Descriptor, obj any) (*rdb.Statement, error) {
	if err := d.Check(obj); err != nil {
		return nil, err
	}

	var columns []string
	var args []any
	for _, c := range d.Columns() {
		if c.PrimaryKey() {
			continue
		}
		v, err := requiredValue(d, c, obj)
		if err != nil {
			return nil, err
		}
		columns = append(columns, b.quoter.Quote(c.Name()))
		args = append(args, v)
	}

	stmt := &rdb.Statement{Args: args}
	if d.PrimaryKey() != nil {
		stmt.KeyColumn = d.PrimaryKey().Name()
	}

	table := b.quoter.Quote(d.Table())
	if len(columns) == 0 {
		stmt.SQL = "insert into " + table + " default values"
		return stmt, nil
	}

	stmt.SQL = "insert into " + table + " (" + strings.Join(columns, ", ") +
		") values (" + placeholders(len(columns)) + ")"
	return stmt, nil
}

// Update 生成按主键更新所有列的 update 语句
func (b *Builder) Update(d *entity.Descriptor, obj any) (*rdb.Statement, error) {
	if err := d.Check(obj); err != nil {
		return nil, err
	}
	key, err := b.primaryKeyCondition(d, obj)
	if err != nil {
		return nil, err
	}

	assignments := make([]string, 0, len(d.Columns()))
	args := make([]any, 0, len(d.Columns())+1)
	for _, c := range d.Columns() {
		v, err := requiredValue(d, c, obj)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, b.quoter.Quote(c.Name())+" = ?")
		args = append(args, v)
	}

	sql, keyArgs, err := key.ToSQL(b.quoter)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeMissingPrimaryKey, d.Name(), d.PrimaryKey().Field(), err)
	}

	return &rdb.Statement{
		SQL:  "update " + b.quoter.Quote(d.Table()) + " set " + strings.Join(assignments, ", ") + " where " + sql,
		Args: append(args, keyArgs...),
	}, nil
}

// Delete 生成按主键删除的 delete 语句
func (b *Builder) Delete(d *entity.Descriptor, obj any) (*rdb.Statement, error) {
	if err := d.Check(obj); err != nil {
		return nil, err
	}
	key, err := b.primaryKeyCondition(d, obj)
	if err != nil {
		return nil, err
	}

	sql, args, err := key.ToSQL(b.quoter)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeMissingPrimaryKey, d.Name(), d.PrimaryKey().Field(), err)
	}

	return &rdb.Statement{
		SQL:  "delete from " + b.quoter.Quote(d.Table()) + " where " + sql,
		Args: args,
	}, nil
}

// Select 生成单个等值条件的 select 语句
// field 为结构体字段名，value 会先转换为该列的类型
func (b *Builder) Select(d *entity.Descriptor, field string, value any) (*rdb.Statement, error) {
	c, ok := d.Column(field)
	if !ok {
		return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), field, nil)
	}

	v, err := c.Kind().Coerce(value)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), field, err)
	}

	sql, args, err := query.Term(c.Name(), v).ToSQL(b.quoter)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), field, err)
	}

	return &rdb.Statement{
		SQL:  "select * from " + b.quoter.Quote(d.Table()) + " where " + sql,
		Args: args,
	}, nil
}

// SelectAll 生成无条件的 select 语句
func (b *Builder) SelectAll(d *entity.Descriptor) *rdb.Statement {
	return &rdb.Statement{SQL: "select * from " + b.quoter.Quote(d.Table())}
}

// Unique 生成唯一性检查语句，条件为所有非空的 unique 列
// 没有任何 unique 列有值时返回 nil
func (b *Builder) Unique(d *entity.Descriptor, obj any) (*rdb.Statement, error) {
	if err := d.Check(obj); err != nil {
		return nil, err
	}

	var terms []query.Query
	for _, c := range d.UniqueColumns() {
		v, ok := c.Value(obj)
		if !ok {
			continue
		}
		terms = append(terms, query.Term(c.Name(), v))
	}
	if len(terms) == 0 {
		return nil, nil
	}

	sql, args, err := query.And(terms...).ToSQL(b.quoter)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), "", err)
	}

	return &rdb.Statement{
		SQL:  "select * from " + b.quoter.Quote(d.Table()) + " where " + sql,
		Args: args,
	}, nil
}

func (b *Builder) primaryKeyCondition(d *entity.Descriptor, obj any) (*query.TermQuery, error) {
	pk := d.PrimaryKey()
	if pk == nil {
		return nil, rdb.NewError(rdb.CodeMissingPrimaryKey, d.Name(), "", nil)
	}
	v, ok := pk.Value(obj)
	if !ok {
		return nil, rdb.NewError(rdb.CodeMissingPrimaryKey, d.Name(), pk.Field(), nil)
	}
	return query.Term(pk.Name(), v), nil
}

// requiredValue 读取列值，not null 列为 NULL 时返回 NullRequiredField
func requiredValue(d *entity.Descriptor, c *entity.Column, obj any) (any, error) {
	v, ok := c.Value(obj)
	if !ok {
		if c.NotNull() {
			return nil, rdb.NewError(rdb.CodeNullRequiredField, d.Name(), c.Field(), nil)
		}
		return nil, nil
	}
	return v, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
