package cfg

import (
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type loadOptions struct {
	lookups []Lookup
}

type Option func(*loadOptions)

// WithProperties 使用属性文件中的值替换占位符，优先于环境变量
func WithProperties(props map[string]string) Option {
	return func(o *loadOptions) {
		o.lookups = append([]Lookup{Map(props)}, o.lookups...)
	}
}

// WithLookup 追加占位符查找函数
func WithLookup(lookup Lookup) Option {
	return func(o *loadOptions) {
		o.lookups = append(o.lookups, lookup)
	}
}

// LoadNode 读取配置文件，替换占位符后按扩展名解码
func LoadNode(path string, opts ...Option) (*Node, error) {
	options := &loadOptions{lookups: []Lookup{Env}}
	for _, opt := range opts {
		opt(options)
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	node, err := Decode([]byte(Expand(string(data), options.lookups...)), format)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return node, nil
}

// Load 读取配置文件到 object，依次完成解码、默认值填充和校验
func Load(path string, object any, opts ...Option) error {
	node, err := LoadNode(path, opts...)
	if err != nil {
		return err
	}
	return Bind(node, object)
}

// Bind 将配置节点写入 object 并填充默认值、执行校验
func Bind(node *Node, object any) error {
	if err := node.ConvertTo(object); err != nil {
		return err
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}
	if err := Validate(object); err != nil {
		return errors.WithMessage(err, "validate failed")
	}
	return nil
}

var validate = validator.New()

// Validate 使用 validate tag 校验结构体，非结构体直接通过
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() == timeType {
		return nil
	}
	return validate.Struct(rv.Interface())
}
