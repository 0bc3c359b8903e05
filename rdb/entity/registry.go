package entity

import (
	"reflect"
	"sync"

	"github.com/hatlonely/orm/rdb"
	"github.com/pkg/errors"
)

// Registry 按类型缓存实体描述
// 可并发读取；同一类型首次并发推导时可能重复计算，但只会保存第一个结果
type Registry struct {
	descriptors sync.Map // reflect.Type -> *Descriptor
}

func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default 进程级默认注册表
func Default() *Registry {
	return defaultRegistry
}

// Add 注册实体描述，同一类型已注册其他描述时返回错误
func (r *Registry) Add(d *Descriptor) error {
	if d == nil {
		return errors.New("descriptor is nil")
	}
	existing, loaded := r.descriptors.LoadOrStore(d.typ, d)
	if loaded && existing.(*Descriptor) != d {
		return errors.Errorf("entity %s already registered", d.Name())
	}
	return nil
}

// Describe 获取实体描述，v 可以是 reflect.Type、结构体值或结构体指针
// 未显式注册的类型通过 struct tag 推导并缓存
func (r *Registry) Describe(v any) (*Descriptor, error) {
	var t reflect.Type
	switch val := v.(type) {
	case nil:
		return nil, rdb.NewError(rdb.CodeNotAnEntity, "<nil>", "", nil)
	case reflect.Type:
		t = val
	default:
		t = reflect.TypeOf(v)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if d, ok := r.descriptors.Load(t); ok {
		return d.(*Descriptor), nil
	}

	d, err := FromType(t)
	if err != nil {
		return nil, err
	}

	actual, _ := r.descriptors.LoadOrStore(t, d)
	return actual.(*Descriptor), nil
}

// Register 在默认注册表中注册实体
func Register[T any](table string, columns ...*ColumnDef[T]) (*Descriptor, error) {
	d, err := Define(table, columns...)
	if err != nil {
		return nil, err
	}
	if err := defaultRegistry.Add(d); err != nil {
		return nil, err
	}
	return d, nil
}

func MustRegister[T any](table string, columns ...*ColumnDef[T]) *Descriptor {
	d, err := Register(table, columns...)
	if err != nil {
		panic(err)
	}
	return d
}

// Describe 从默认注册表获取实体描述
func Describe(v any) (*Descriptor, error) {
	return defaultRegistry.Describe(v)
}

// DescribeT 从默认注册表获取类型 T 的实体描述
func DescribeT[T any]() (*Descriptor, error) {
	return defaultRegistry.Describe(reflect.TypeOf((*T)(nil)).Elem())
}
