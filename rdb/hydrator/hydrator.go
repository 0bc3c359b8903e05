package hydrator

import (
	"github.com/hatlonely/orm/rdb"
	"github.com/hatlonely/orm/rdb/entity"
	"github.com/pkg/errors"
)

// Hydrate 将一行结果写入 target，target 必须是指向实体类型的指针
// 每个映射列都必须出现在结果中，NULL 写入可为空字段时为空，写入普通字段时为零值
func Hydrate(row rdb.Row, d *entity.Descriptor, target any) error {
	if err := d.Check(target); err != nil {
		return err
	}

	for _, c := range d.Columns() {
		raw, ok := row.Value(c.Name())
		if !ok {
			return rdb.NewError(rdb.CodeHydrationFailure, d.Name(), c.Name(), errors.New("column not found in result"))
		}

		v, err := c.Kind().Coerce(raw)
		if err != nil {
			return rdb.NewError(rdb.CodeHydrationFailure, d.Name(), c.Name(), err)
		}

		if err := c.Assign(target, v); err != nil {
			return rdb.NewError(rdb.CodeHydrationFailure, d.Name(), c.Name(), err)
		}
	}

	return nil
}

// New 构造新的实体实例并用 row 填充
func New(row rdb.Row, d *entity.Descriptor) (any, error) {
	obj, err := d.New()
	if err != nil {
		return nil, err
	}
	if err := Hydrate(row, d, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// All 消费游标中的所有行，任一行失败则整体失败
func All(cursor rdb.Cursor, d *entity.Descriptor) ([]any, error) {
	var objs []any
	for cursor.Next() {
		row, err := cursor.Row()
		if err != nil {
			return nil, rdb.NewError(rdb.CodeHydrationFailure, d.Name(), "", err)
		}
		obj, err := New(row, d)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	if err := cursor.Err(); err != nil {
		return nil, rdb.NewError(rdb.CodeExecutionFailure, d.Name(), "", err)
	}
	return objs, nil
}
