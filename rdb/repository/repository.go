package repository

import (
	"context"

	"github.com/hatlonely/orm/log/logger"
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/builder"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/hatlonely/orm/rdb/hydrator"
	"github.com/pkg/errors"
)

// Repository 映射引擎，组合 Builder、Hydrator 和注入的连接实现增删改查
// 每次调用只执行一条语句，不重试，不关闭连接
type Repository struct {
	conn     rdb.Connection
	registry *entity.Registry
	builder  *builder.Builder
	logger   logger.Logger
}

type Option func(*Repository)

// WithRegistry 指定实体描述注册表，默认 entity.Default()
func WithRegistry(registry *entity.Registry) Option {
	return func(r *Repository) {
		r.registry = registry
	}
}

func WithBuilder(b *builder.Builder) Option {
	return func(r *Repository) {
		r.builder = b
	}
}

// WithLogger 语句以 debug 级别记录
func WithLogger(l logger.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func New(conn rdb.Connection, opts ...Option) *Repository {
	r := &Repository{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = entity.Default()
	}
	if r.builder == nil {
		r.builder = builder.New()
	}
	if r.logger == nil {
		r.logger = logger.Discard()
	}
	return r
}

// Describe 获取实体描述，typ 可以是 reflect.Type、结构体值或结构体指针
func (r *Repository) Describe(typ any) (*entity.Descriptor, error) {
	return r.registry.Describe(typ)
}

// Create 插入对象，数据库返回生成的主键时回填到对象的主键字段
// 失败时对象的主键字段保持不变
func (r *Repository) Create(ctx context.Context, obj any) error {
	d, err := r.Describe(obj)
	if err != nil {
		return err
	}
	stmt, err := r.builder.Insert(d, obj)
	if err != nil {
		return err
	}

	res, err := r.exec(ctx, d, stmt)
	if err != nil {
		return err
	}
	if res.GeneratedKeys != nil {
		defer res.GeneratedKeys.Close()
	}

	if d.PrimaryKey() == nil || res.RowsAffected == 0 || res.GeneratedKeys == nil {
		return nil
	}
	return r.assignGeneratedKey(d, obj, stmt.KeyColumn, res.GeneratedKeys)
}

func (r *Repository) assignGeneratedKey(d *entity.Descriptor, obj any, keyColumn string, keys rdb.Cursor) error {
	pk := d.PrimaryKey()
	if !keys.Next() {
		if err := keys.Err(); err != nil {
			return rdb.NewError(rdb.CodeExecutionFailure, d.Name(), pk.Name(), err)
		}
		return nil
	}
	row, err := keys.Row()
	if err != nil {
		return rdb.NewError(rdb.CodeExecutionFailure, d.Name(), pk.Name(), err)
	}

	raw, ok := generatedKey(row, keyColumn)
	if !ok {
		return nil
	}
	v, err := pk.Kind().Coerce(raw)
	if err != nil {
		return rdb.NewError(rdb.CodeHydrationFailure, d.Name(), pk.Name(), errors.WithMessage(err, "generated key"))
	}
	if v == nil {
		return nil
	}
	if err := pk.Assign(obj, v); err != nil {
		return rdb.NewError(rdb.CodeHydrationFailure, d.Name(), pk.Name(), err)
	}
	return nil
}

// generatedKey 优先按主键列名取值，驱动只返回一列时直接使用该列
func generatedKey(row rdb.Row, keyColumn string) (any, bool) {
	if v, ok := row.Value(keyColumn); ok {
		return v, true
	}
	if len(row) == 1 {
		for _, v := range row {
			return v, true
		}
	}
	return nil, false
}

// Read 按字段等值条件查询，field 为结构体字段名
// 任何一行转换失败整个调用失败，不返回部分结果
func (r *Repository) Read(ctx context.Context, typ any, field string, value any) ([]any, error) {
	d, err := r.Describe(typ)
	if err != nil {
		return nil, err
	}
	stmt, err := r.builder.Select(d, field, value)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, d, stmt)
}

// ReadAll 查询表中所有行
func (r *Repository) ReadAll(ctx context.Context, typ any) ([]any, error) {
	d, err := r.Describe(typ)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, d, r.builder.SelectAll(d))
}

// Update 按主键更新所有列，影响行数为 0 不视为错误
func (r *Repository) Update(ctx context.Context, obj any) error {
	d, err := r.Describe(obj)
	if err != nil {
		return err
	}
	stmt, err := r.builder.Update(d, obj)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, d, stmt)
	if err != nil {
		return err
	}
	if res.GeneratedKeys != nil {
		_ = res.GeneratedKeys.Close()
	}
	return nil
}

// Delete 按主键删除
func (r *Repository) Delete(ctx context.Context, obj any) error {
	d, err := r.Describe(obj)
	if err != nil {
		return err
	}
	stmt, err := r.builder.Delete(d, obj)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, d, stmt)
	if err != nil {
		return err
	}
	if res.GeneratedKeys != nil {
		_ = res.GeneratedKeys.Close()
	}
	return nil
}

// IsUnique 检查表中是否已存在与对象所有非空 unique 列都相同的行
// 没有 unique 列的实体总是返回 false 且不访问数据库；所有 unique 列都为空时返回 true
func (r *Repository) IsUnique(ctx context.Context, obj any) (bool, error) {
	d, err := r.Describe(obj)
	if err != nil {
		return false, err
	}
	if err := d.Check(obj); err != nil {
		return false, err
	}
	if len(d.UniqueColumns()) == 0 {
		return false, nil
	}

	stmt, err := r.builder.Unique(d, obj)
	if err != nil {
		return false, err
	}
	if stmt == nil {
		return true, nil
	}

	r.logger.DebugContext(ctx, "query", "entity", d.Table(), "sql", stmt.SQL, "args", stmt.Args)
	cursor, err := r.conn.Query(ctx, stmt)
	if err != nil {
		return false, rdb.NewError(rdb.CodeExecutionFailure, d.Name(), "", err)
	}
	defer cursor.Close()

	if cursor.Next() {
		return false, nil
	}
	if err := cursor.Err(); err != nil {
		return false, rdb.NewError(rdb.CodeExecutionFailure, d.Name(), "", err)
	}
	return true, nil
}

func (r *Repository) exec(ctx context.Context, d *entity.Descriptor, stmt *rdb.Statement) (*rdb.ExecResult, error) {
	r.logger.DebugContext(ctx, "exec", "entity", d.Table(), "sql", stmt.SQL, "args", stmt.Args)
	res, err := r.conn.Exec(ctx, stmt)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeExecutionFailure, d.Name(), "", err)
	}
	if res == nil {
		res = &rdb.ExecResult{}
	}
	return res, nil
}

func (r *Repository) query(ctx context.Context, d *entity.Descriptor, stmt *rdb.Statement) ([]any, error) {
	r.logger.DebugContext(ctx, "query", "entity", d.Table(), "sql", stmt.SQL, "args", stmt.Args)
	cursor, err := r.conn.Query(ctx, stmt)
	if err != nil {
		return nil, rdb.NewError(rdb.CodeExecutionFailure, d.Name(), "", err)
	}
	defer cursor.Close()

	objs, err := hydrator.All(cursor, d)
	if err != nil {
		return nil, err
	}
	if objs == nil {
		objs = []any{}
	}
	return objs, nil
}

// Find 按字段等值条件查询类型 T
func Find[T any](ctx context.Context, r *Repository, field string, value any) ([]*T, error) {
	objs, err := r.Read(ctx, (*T)(nil), field, value)
	if err != nil {
		return nil, err
	}
	return cast[T](objs), nil
}

// FindAll 查询类型 T 的所有行
func FindAll[T any](ctx context.Context, r *Repository) ([]*T, error) {
	objs, err := r.ReadAll(ctx, (*T)(nil))
	if err != nil {
		return nil, err
	}
	return cast[T](objs), nil
}

func cast[T any](objs []any) []*T {
	result := make([]*T, 0, len(objs))
	for _, obj := range objs {
		result = append(result, obj.(*T))
	}
	return result
}
