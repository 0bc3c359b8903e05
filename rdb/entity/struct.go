package entity

import (
	"reflect"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/hatlonely/orm/rdb"
	"github.com/pkg/errors"
)

// Entity 实体标记，实现该接口的结构体才能通过 struct tag 推导描述
// TableName 返回空字符串时使用类型的完整名称作为表名
type Entity interface {
	TableName() string
}

var entityType = reflect.TypeOf((*Entity)(nil)).Elem()

var nullKinds = map[reflect.Type]Kind{
	reflect.TypeOf(null.String{}):  KindString,
	reflect.TypeOf(null.Int32{}):   KindInt32,
	reflect.TypeOf(null.Float64{}): KindFloat64,
	reflect.TypeOf(null.Float32{}): KindFloat32,
	reflect.TypeOf(null.Bool{}):    KindBool,
}

// FromType 从结构体的 rdb tag 推导实体描述
// 支持的 tag 格式：
// - `rdb:"column_name,primary,required,unique"`
// - `rdb:",unique"` 列名为空时使用字段名
// - `rdb:"owner_id,fk=users.id"` 记录外键
// - `rdb:"-"` 忽略该字段
func FromType(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, rdb.NewError(rdb.CodeNotAnEntity, "<nil>", "", nil)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, rdb.NewError(rdb.CodeNotAnEntity, qualifiedName(t), "", errors.Errorf("expect struct, got %s", t.Kind()))
	}
	if !t.Implements(entityType) && !reflect.PointerTo(t).Implements(entityType) {
		return nil, rdb.NewError(rdb.CodeNotAnEntity, qualifiedName(t), "", errors.New("missing TableName method"))
	}

	table := reflect.New(t).Interface().(Entity).TableName()

	var columns []*Column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag, ok := field.Tag.Lookup("rdb")
		if !ok || tag == "-" {
			continue
		}

		c, err := parseFieldTag(field, tag)
		if err != nil {
			return nil, rdb.NewError(rdb.CodeUnsupportedFieldType, qualifiedName(t), field.Name, err)
		}
		columns = append(columns, c)
	}

	t0 := t
	return newDescriptor(t, table, columns, func() any {
		return reflect.New(t0).Interface()
	})
}

// parseFieldTag 解析字段的 rdb tag 并绑定反射访问器
func parseFieldTag(field reflect.StructField, tag string) (*Column, error) {
	c := &Column{field: field.Name}

	parts := strings.Split(tag, ",")
	// 第一部分是列名（如果指定）
	if !strings.Contains(parts[0], "=") {
		c.name = strings.TrimSpace(parts[0])
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")
		switch strings.TrimSpace(key) {
		case "primary", "pk":
			c.primaryKey = true
		case "required", "not_null", "notnull":
			c.notNull = true
		case "unique":
			c.unique = true
		case "fk", "references":
			c.references = strings.TrimSpace(value)
		}
	}

	if err := bindField(c, field); err != nil {
		return nil, err
	}
	return c, nil
}

// bindField 根据字段类型确定 Kind 并生成访问器
func bindField(c *Column, field reflect.StructField) error {
	index := field.Index
	ft := field.Type

	if kind, ok := nullKinds[ft]; ok {
		c.kind = kind
		c.nullable = true
		c.get = func(obj any) (any, bool) {
			v, valid := nullGet(fieldOf(obj, index))
			if !valid {
				return nil, false
			}
			return v, true
		}
		c.set = func(obj any, v any) error {
			return nullSet(fieldOf(obj, index), kind, v)
		}
		return nil
	}

	if ft.Kind() == reflect.Ptr {
		kind, ok := basicKind(ft.Elem())
		if !ok {
			return errors.Errorf("unsupported field type %s", ft)
		}
		c.kind = kind
		c.nullable = true
		c.get = func(obj any) (any, bool) {
			rv := fieldOf(obj, index)
			if rv.IsNil() {
				return nil, false
			}
			return basicGet(rv.Elem(), kind), true
		}
		c.set = func(obj any, v any) error {
			rv := fieldOf(obj, index)
			if v == nil {
				rv.Set(reflect.Zero(ft))
				return nil
			}
			p := reflect.New(ft.Elem())
			basicSet(p.Elem(), kind, v)
			rv.Set(p)
			return nil
		}
		return nil
	}

	kind, ok := basicKind(ft)
	if !ok {
		return errors.Errorf("unsupported field type %s", ft)
	}
	c.kind = kind
	c.get = func(obj any) (any, bool) {
		return basicGet(fieldOf(obj, index), kind), true
	}
	c.set = func(obj any, v any) error {
		rv := fieldOf(obj, index)
		if v == nil {
			rv.Set(reflect.Zero(ft))
			return nil
		}
		basicSet(rv, kind, v)
		return nil
	}
	return nil
}

func fieldOf(obj any, index []int) reflect.Value {
	return reflect.ValueOf(obj).Elem().FieldByIndex(index)
}

func basicKind(t reflect.Type) (Kind, bool) {
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Int32:
		return KindInt32, true
	case reflect.Float64:
		return KindFloat64, true
	case reflect.Float32:
		return KindFloat32, true
	case reflect.Bool:
		return KindBool, true
	default:
		return 0, false
	}
}

// basicGet 读取基础类型字段，命名类型转换为规范类型
func basicGet(rv reflect.Value, kind Kind) any {
	switch kind {
	case KindString:
		return rv.String()
	case KindInt32:
		return int32(rv.Int())
	case KindFloat64:
		return rv.Float()
	case KindFloat32:
		return float32(rv.Float())
	case KindBool:
		return rv.Bool()
	}
	return nil
}

// basicSet 调用方保证 v 已是 kind 对应的规范类型
func basicSet(rv reflect.Value, kind Kind, v any) {
	switch kind {
	case KindString:
		rv.SetString(v.(string))
	case KindInt32:
		rv.SetInt(int64(v.(int32)))
	case KindFloat64:
		rv.SetFloat(v.(float64))
	case KindFloat32:
		rv.SetFloat(float64(v.(float32)))
	case KindBool:
		rv.SetBool(v.(bool))
	}
}

func nullGet(rv reflect.Value) (any, bool) {
	switch n := rv.Interface().(type) {
	case null.String:
		return n.String, n.Valid
	case null.Int32:
		return n.Int32, n.Valid
	case null.Float64:
		return n.Float64, n.Valid
	case null.Float32:
		return n.Float32, n.Valid
	case null.Bool:
		return n.Bool, n.Valid
	}
	return nil, false
}

func nullSet(rv reflect.Value, kind Kind, v any) error {
	if v == nil {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	var n any
	switch kind {
	case KindString:
		n = null.StringFrom(v.(string))
	case KindInt32:
		n = null.Int32From(v.(int32))
	case KindFloat64:
		n = null.Float64From(v.(float64))
	case KindFloat32:
		n = null.Float32From(v.(float32))
	case KindBool:
		n = null.BoolFrom(v.(bool))
	default:
		return errors.Errorf("unsupported kind %s", kind)
	}
	rv.Set(reflect.ValueOf(n))
	return nil
}
