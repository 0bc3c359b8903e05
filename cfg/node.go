package cfg

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Node 解码后的配置数据，由 map、slice 和标量组成
// 实现 ref.Convertable，可以直接作为 ref.New 的 options
type Node struct {
	data any
}

func NewNode(data any) *Node {
	return &Node{data: data}
}

// Data 原始数据
func (n *Node) Data() any {
	if n == nil {
		return nil
	}
	return n.data
}

// Sub 获取子节点，key 用 . 分隔层级，[] 表示数组下标
// 例如 "database.replicas[0].host"
func (n *Node) Sub(key string) *Node {
	if key == "" {
		return n
	}
	current := n.Data()
	for _, k := range parseKey(key) {
		current = lookup(current, k)
		if current == nil {
			return NewNode(nil)
		}
	}
	return NewNode(current)
}

// ConvertTo 将配置数据写入 object，object 必须是指针
// 结构体字段按 cfg tag 匹配，没有 tag 时按字段名忽略大小写匹配
func (n *Node) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	return convertValue(n.Data(), rv.Elem(), "")
}

func parseKey(key string) []string {
	var keys []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			keys = append(keys, current.String())
			current.Reset()
		}
	}
	for _, ch := range key {
		switch ch {
		case '.', '[', ']':
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()
	return keys
}

func lookup(data any, key string) any {
	switch v := data.(type) {
	case map[string]any:
		return v[key]
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil
		}
		return v[idx]
	}
	return nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
	nodeType     = reflect.TypeOf(&Node{})
)

func convertValue(src any, dst reflect.Value, path string) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr && dst.Type() != nodeType {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem(), path)
	}

	if dst.Type() == nodeType {
		dst.Set(reflect.ValueOf(NewNode(src)))
		return nil
	}

	switch dst.Type() {
	case durationType:
		d, err := cast.ToDurationE(src)
		if err != nil {
			return pathError(path, err)
		}
		dst.SetInt(int64(d))
		return nil
	case timeType:
		t, err := cast.ToTimeE(src)
		if err != nil {
			return pathError(path, err)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.Map, reflect.Slice, reflect.Struct:
		return convertKind(src, dst, path)
	}
	if err := convertKind(src, dst, path); err != nil {
		return pathError(path, err)
	}
	return nil
}

func pathError(path string, err error) error {
	return errors.WithMessagef(err, "convert %s", displayPath(path))
}

func convertKind(src any, dst reflect.Value, path string) error {
	switch dst.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(src)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(i) {
			return errors.Errorf("value %d overflows %s", i, dst.Type())
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := cast.ToUint64E(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(u) {
			return errors.Errorf("value %d overflows %s", u, dst.Type())
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Interface:
		// 复合值包装成 Node，交给后续的 ref.New 按构造函数参数类型转换
		switch src.(type) {
		case map[string]any, []any:
			node := reflect.ValueOf(NewNode(src))
			if !node.Type().AssignableTo(dst.Type()) {
				return errors.Errorf("cannot assign config node to %s", dst.Type())
			}
			dst.Set(node)
		default:
			sv := reflect.ValueOf(src)
			if !sv.Type().AssignableTo(dst.Type()) {
				return errors.Errorf("cannot assign %T to %s", src, dst.Type())
			}
			dst.Set(sv)
		}
	case reflect.Map:
		m, ok := src.(map[string]any)
		if !ok {
			return pathError(path, errors.Errorf("expect map, got %T", src))
		}
		if dst.Type().Key().Kind() != reflect.String {
			return pathError(path, errors.Errorf("map key must be string, got %s", dst.Type().Key()))
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), len(m)))
		}
		for k, v := range m {
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := convertValue(v, elem, joinPath(path, k)); err != nil {
				return err
			}
			dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
		}
	case reflect.Slice:
		items, err := toSlice(src)
		if err != nil {
			return pathError(path, err)
		}
		slice := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := convertValue(item, slice.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		dst.Set(slice)
	case reflect.Struct:
		m, ok := src.(map[string]any)
		if !ok {
			return pathError(path, errors.Errorf("expect map, got %T", src))
		}
		return convertStruct(m, dst, path)
	default:
		return errors.Errorf("unsupported type %s", dst.Type())
	}
	return nil
}

func convertStruct(m map[string]any, dst reflect.Value, path string) error {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("cfg")
		if name == "-" {
			continue
		}

		var v any
		var ok bool
		if name != "" {
			v, ok = m[name]
		} else {
			v, ok = lookupFold(m, field.Name)
			name = field.Name
		}
		if !ok {
			continue
		}
		if err := convertValue(v, dst.Field(i), joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func lookupFold(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// toSlice 字符串按逗号分隔，ini 和 properties 中的列表就是这种形式
func toSlice(src any) ([]any, error) {
	switch v := src.(type) {
	case []any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		parts := strings.Split(v, ",")
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = strings.TrimSpace(p)
		}
		return items, nil
	}
	return nil, errors.Errorf("expect list, got %T", src)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
