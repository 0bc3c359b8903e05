package ref

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

type constructor struct {
	originalFunc any
	newFunc      reflect.Value
	hasOptions   bool
	returnsError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newConstructor(newFunc any) (*constructor, error) {
	funcValue := reflect.ValueOf(newFunc)
	if funcValue.Kind() != reflect.Func {
		return nil, errors.New("newFunc must be a function")
	}

	funcType := funcValue.Type()
	numIn := funcType.NumIn()
	numOut := funcType.NumOut()

	// 0 个或 1 个参数
	if numIn != 0 && numIn != 1 {
		return nil, errors.Errorf("newFunc must have 0 or 1 input parameters, got %d", numIn)
	}

	// 1 个或 2 个返回值，第二个必须是 error
	if numOut != 1 && numOut != 2 {
		return nil, errors.Errorf("newFunc must have 1 or 2 return values, got %d", numOut)
	}
	if numOut == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	return &constructor{
		originalFunc: newFunc,
		newFunc:      funcValue,
		hasOptions:   numIn == 1,
		returnsError: numOut == 2,
	}, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value

	if c.hasOptions {
		if options == nil {
			return nil, errors.New("constructor requires options but got nil")
		}

		converted, err := c.convertOptions(options)
		if err != nil {
			return nil, err
		}
		arg := reflect.ValueOf(converted)
		if !arg.Type().AssignableTo(c.newFunc.Type().In(0)) {
			return nil, errors.Errorf("options type %T is not assignable to %v", converted, c.newFunc.Type().In(0))
		}
		args = []reflect.Value{arg}
	}

	results := c.newFunc.Call(args)

	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// Convertable 可以转换成构造函数参数的配置数据，例如 cfg.Node
type Convertable interface {
	// ConvertTo object 是指向目标对象的指针
	ConvertTo(object any) error
}

// convertOptions 将 Convertable 转换为构造函数的参数类型，其他 options 原样返回
func (c *constructor) convertOptions(options any) (any, error) {
	convertable, ok := options.(Convertable)
	if !ok {
		return options, nil
	}

	paramType := c.newFunc.Type().In(0)
	if paramType.Kind() == reflect.Ptr {
		target := reflect.New(paramType.Elem())
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return nil, errors.WithMessagef(err, "failed to convert options to %v", paramType)
		}
		return target.Interface(), nil
	}

	target := reflect.New(paramType)
	if err := convertable.ConvertTo(target.Interface()); err != nil {
		return nil, errors.WithMessagef(err, "failed to convert options to %v", paramType)
	}
	return target.Elem().Interface(), nil
}

var nameConstructorMap sync.Map

func isSameFunc(func1, func2 any) bool {
	if func1 == nil || func2 == nil {
		return func1 == func2
	}
	return reflect.ValueOf(func1).Pointer() == reflect.ValueOf(func2).Pointer()
}

// Register 注册构造函数，同一个 key 重复注册相同函数会被忽略
func Register(namespace string, type_ string, newFunc any) error {
	key := namespace + ":" + type_

	if existing, ok := nameConstructorMap.Load(key); ok {
		if isSameFunc(existing.(*constructor).originalFunc, newFunc) {
			return nil
		}
		return errors.Errorf("constructor for %s already registered with different function", key)
	}

	constructor, err := newConstructor(newFunc)
	if err != nil {
		return errors.WithMessagef(err, "failed to register %s", key)
	}

	nameConstructorMap.Store(key, constructor)
	return nil
}

// RegisterT 使用 T 的包路径和类型名作为 namespace 和 type
func RegisterT[T any](newFunc any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, newFunc)
}

func MustRegister(namespace string, type_ string, newFunc any) {
	if err := Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](newFunc any) {
	if err := RegisterT[T](newFunc); err != nil {
		panic(err)
	}
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}

// TypeOptions 描述一个可以通过 New 创建的对象
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

func New(namespace string, type_ string, options any) (any, error) {
	key := namespace + ":" + type_
	value, ok := nameConstructorMap.Load(key)
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", key)
	}

	obj, err := value.(*constructor).new(options)
	if err != nil {
		return nil, errors.WithMessagef(err, "new %s failed", key)
	}
	return obj, nil
}

func NewT[T any](options any) (T, error) {
	var t T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return t, err
	}

	obj, err := New(namespace, type_, options)
	if err != nil {
		return t, err
	}

	result, ok := obj.(T)
	if !ok {
		return t, errors.Errorf("created object is not of type %T", t)
	}
	return result, nil
}
