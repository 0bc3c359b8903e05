package entity

import (
	"github.com/aarondl/null/v8"
	"github.com/pkg/errors"
)

// Column 已解析的列描述，构建后不可变
type Column struct {
	field      string
	name       string
	kind       Kind
	notNull    bool
	unique     bool
	primaryKey bool
	nullable   bool
	references string

	get func(obj any) (any, bool)
	set func(obj any, v any) error
}

// Field 源码中的字段名
func (c *Column) Field() string { return c.field }

// Name 数据库列名，未指定时与 Field 相同
func (c *Column) Name() string { return c.name }

func (c *Column) Kind() Kind { return c.kind }

func (c *Column) NotNull() bool { return c.notNull }

func (c *Column) Unique() bool { return c.unique }

func (c *Column) PrimaryKey() bool { return c.primaryKey }

// Nullable 字段类型能否表示 NULL（null.* 或指针类型）
func (c *Column) Nullable() bool { return c.nullable }

// References 外键目标，形如 table.column，仅作为元数据
func (c *Column) References() string { return c.references }

// Value 读取对象上该列对应字段的当前值，第二个返回值为 false 表示 NULL
func (c *Column) Value(obj any) (any, bool) {
	return c.get(obj)
}

// Assign 将规范类型的值写入对象字段，v 为 nil 表示 NULL
// 不可为 NULL 的字段写入 NULL 时设置为零值
func (c *Column) Assign(obj any, v any) error {
	if v != nil && !c.kind.Accepts(v) {
		return errors.Errorf("column %s expects %s, got %T", c.name, c.kind, v)
	}
	return c.set(obj, v)
}

type kindValue interface {
	string | int32 | float64 | float32 | bool
}

// ColumnDef 静态注册时的列定义，通过链式调用补充约束
type ColumnDef[T any] struct {
	col Column
}

// Column 指定列名，为空时使用字段名
func (d *ColumnDef[T]) Column(name string) *ColumnDef[T] {
	d.col.name = name
	return d
}

func (d *ColumnDef[T]) PrimaryKey() *ColumnDef[T] {
	d.col.primaryKey = true
	return d
}

func (d *ColumnDef[T]) NotNull() *ColumnDef[T] {
	d.col.notNull = true
	return d
}

func (d *ColumnDef[T]) Unique() *ColumnDef[T] {
	d.col.unique = true
	return d
}

// References 记录外键目标
func (d *ColumnDef[T]) References(target string) *ColumnDef[T] {
	d.col.references = target
	return d
}

func plain[T any, V kindValue](field string, kind Kind, ref func(*T) *V) *ColumnDef[T] {
	return &ColumnDef[T]{col: Column{
		field: field,
		kind:  kind,
		get: func(obj any) (any, bool) {
			return *ref(obj.(*T)), true
		},
		set: func(obj any, v any) error {
			p := ref(obj.(*T))
			if v == nil {
				var zero V
				*p = zero
				return nil
			}
			*p = v.(V)
			return nil
		},
	}}
}

func nullable[T any, N any, V kindValue](field string, kind Kind, ref func(*T) *N, value func(N) (V, bool), from func(V) N) *ColumnDef[T] {
	return &ColumnDef[T]{col: Column{
		field:    field,
		kind:     kind,
		nullable: true,
		get: func(obj any) (any, bool) {
			v, ok := value(*ref(obj.(*T)))
			if !ok {
				return nil, false
			}
			return v, true
		},
		set: func(obj any, v any) error {
			p := ref(obj.(*T))
			if v == nil {
				var zero N
				*p = zero
				return nil
			}
			*p = from(v.(V))
			return nil
		},
	}}
}

// String 绑定 string 字段
func String[T any](field string, ref func(*T) *string) *ColumnDef[T] {
	return plain(field, KindString, ref)
}

// Int32 绑定 int32 字段
func Int32[T any](field string, ref func(*T) *int32) *ColumnDef[T] {
	return plain(field, KindInt32, ref)
}

// Float64 绑定 float64 字段
func Float64[T any](field string, ref func(*T) *float64) *ColumnDef[T] {
	return plain(field, KindFloat64, ref)
}

// Float32 绑定 float32 字段
func Float32[T any](field string, ref func(*T) *float32) *ColumnDef[T] {
	return plain(field, KindFloat32, ref)
}

// Bool 绑定 bool 字段
func Bool[T any](field string, ref func(*T) *bool) *ColumnDef[T] {
	return plain(field, KindBool, ref)
}

// NullString 绑定可为 NULL 的字符串字段
func NullString[T any](field string, ref func(*T) *null.String) *ColumnDef[T] {
	return nullable(field, KindString, ref,
		func(n null.String) (string, bool) { return n.String, n.Valid },
		null.StringFrom)
}

func NullInt32[T any](field string, ref func(*T) *null.Int32) *ColumnDef[T] {
	return nullable(field, KindInt32, ref,
		func(n null.Int32) (int32, bool) { return n.Int32, n.Valid },
		null.Int32From)
}

func NullFloat64[T any](field string, ref func(*T) *null.Float64) *ColumnDef[T] {
	return nullable(field, KindFloat64, ref,
		func(n null.Float64) (float64, bool) { return n.Float64, n.Valid },
		null.Float64From)
}

func NullFloat32[T any](field string, ref func(*T) *null.Float32) *ColumnDef[T] {
	return nullable(field, KindFloat32, ref,
		func(n null.Float32) (float32, bool) { return n.Float32, n.Valid },
		null.Float32From)
}

func NullBool[T any](field string, ref func(*T) *null.Bool) *ColumnDef[T] {
	return nullable(field, KindBool, ref,
		func(n null.Bool) (bool, bool) { return n.Bool, n.Valid },
		null.BoolFrom)
}
