package entity

import (
	"reflect"

	"github.com/hatlonely/orm/rdb"
	"github.com/pkg/errors"
)

// Descriptor 实体类型的静态元数据，构建后不可变，可以在多个 goroutine 间共享
type Descriptor struct {
	typ        reflect.Type
	table      string
	columns    []*Column
	primaryKey *Column

	fields  map[string]*Column
	newFunc func() any
}

func (d *Descriptor) Type() reflect.Type { return d.typ }

// Table 表名
func (d *Descriptor) Table() string { return d.table }

// Columns 按字段声明顺序排列的列，返回的切片是副本
func (d *Descriptor) Columns() []*Column {
	return append([]*Column(nil), d.columns...)
}

// PrimaryKey 主键列，没有主键时为 nil
func (d *Descriptor) PrimaryKey() *Column { return d.primaryKey }

// Name 实体类型的完整名称，用于错误信息
func (d *Descriptor) Name() string {
	return qualifiedName(d.typ)
}

// Column 按字段名查找列
func (d *Descriptor) Column(field string) (*Column, bool) {
	c, ok := d.fields[field]
	return c, ok
}

// UniqueColumns 返回所有标记为 unique 的列
func (d *Descriptor) UniqueColumns() []*Column {
	var columns []*Column
	for _, c := range d.columns {
		if c.unique {
			columns = append(columns, c)
		}
	}
	return columns
}

// New 构造一个新的实体实例，返回值为 *T
func (d *Descriptor) New() (any, error) {
	if d.newFunc == nil {
		return nil, rdb.NewError(rdb.CodeNoDefaultConstructor, d.Name(), "", nil)
	}
	obj := d.newFunc()
	if obj == nil {
		return nil, rdb.NewError(rdb.CodeNoDefaultConstructor, d.Name(), "", errors.New("constructor returned nil"))
	}
	return obj, nil
}

// Check 校验 obj 是否为指向该实体类型的非空指针
func (d *Descriptor) Check(obj any) error {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Type().Elem() != d.typ {
		return rdb.NewError(rdb.CodeNotAnEntity, d.Name(), "", errors.Errorf("expect *%s, got %T", d.Name(), obj))
	}
	return nil
}

func newDescriptor(t reflect.Type, table string, columns []*Column, newFunc func() any) (*Descriptor, error) {
	d := &Descriptor{
		typ:     t,
		table:   table,
		columns: columns,
		fields:  make(map[string]*Column, len(columns)),
		newFunc: newFunc,
	}

	// 表名未指定时使用类型的完整名称
	if d.table == "" {
		d.table = qualifiedName(t)
	}

	for _, c := range columns {
		if c.field == "" {
			return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), "", errors.New("column without field name"))
		}
		// 列名未指定时直接使用字段名，不做大小写转换
		if c.name == "" {
			c.name = c.field
		}
		if _, ok := d.fields[c.field]; ok {
			return nil, rdb.NewError(rdb.CodeUnknownField, d.Name(), c.field, errors.New("field mapped twice"))
		}
		d.fields[c.field] = c

		if c.primaryKey {
			if d.primaryKey != nil {
				return nil, rdb.NewError(rdb.CodeMultiplePrimaryKeys, d.Name(), c.field,
					errors.Errorf("%s is already the primary key", d.primaryKey.field))
			}
			d.primaryKey = c
		}
	}

	return d, nil
}

func qualifiedName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Define 通过显式注册构建实体描述，字段访问由注册时绑定的函数完成
func Define[T any](table string, columns ...*ColumnDef[T]) (*Descriptor, error) {
	return DefineFunc(table, func() *T { return new(T) }, columns...)
}

// DefineFunc 与 Define 相同，但使用自定义的构造函数创建实例
func DefineFunc[T any](table string, newFunc func() *T, columns ...*ColumnDef[T]) (*Descriptor, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, rdb.NewError(rdb.CodeNotAnEntity, qualifiedName(t), "", errors.Errorf("expect struct, got %s", t.Kind()))
	}

	cols := make([]*Column, 0, len(columns))
	for _, def := range columns {
		if def == nil {
			continue
		}
		c := def.col
		cols = append(cols, &c)
	}

	var ctor func() any
	if newFunc != nil {
		ctor = func() any {
			obj := newFunc()
			if obj == nil {
				return nil
			}
			return obj
		}
	}

	return newDescriptor(t, table, cols, ctor)
}
