package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Kind 字段的语义类型，取值集合是封闭的
type Kind int

const (
	KindString Kind = iota + 1
	KindInt32
	KindFloat64
	KindFloat32
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInt32:
		return "Int32"
	case KindFloat64:
		return "Float64"
	case KindFloat32:
		return "Float32"
	case KindBool:
		return "Boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Zero 返回该类型的零值
func (k Kind) Zero() any {
	switch k {
	case KindString:
		return ""
	case KindInt32:
		return int32(0)
	case KindFloat64:
		return float64(0)
	case KindFloat32:
		return float32(0)
	case KindBool:
		return false
	default:
		return nil
	}
}

// Accepts 判断 v 的动态类型是否为该 Kind 的规范 Go 类型
func (k Kind) Accepts(v any) bool {
	switch v.(type) {
	case string:
		return k == KindString
	case int32:
		return k == KindInt32
	case float64:
		return k == KindFloat64
	case float32:
		return k == KindFloat32
	case bool:
		return k == KindBool
	default:
		return false
	}
}

// Coerce 将驱动返回的值或调用方传入的值转换为该 Kind 的规范类型
// nil 表示 NULL，原样返回
func (k Kind) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if k.Accepts(v) {
		return v, nil
	}

	switch k {
	case KindString:
		switch v.(type) {
		case bool:
			return nil, errors.Errorf("cannot convert %T to %s", v, k)
		}
		return cast.ToStringE(v)
	case KindInt32:
		return toInt32(v)
	case KindFloat64:
		return toFloat64(v, k)
	case KindFloat32:
		f, err := toFloat64(v, k)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, errors.Errorf("value %v overflows %s", v, k)
		}
		return float32(f), nil
	case KindBool:
		return cast.ToBoolE(v)
	}
	return nil, errors.Errorf("unknown kind %s", k)
}

func toInt32(v any) (any, error) {
	switch f := v.(type) {
	case bool:
		return nil, errors.Errorf("cannot convert %T to %s", v, KindInt32)
	case float32:
		return toInt32(float64(f))
	case float64:
		if f != math.Trunc(f) {
			return nil, errors.Errorf("value %v is not an integer", v)
		}
		if f < math.MinInt32 || f > math.MaxInt32 {
			return nil, errors.Errorf("value %v overflows %s", v, KindInt32)
		}
		return int32(f), nil
	}

	var i int64
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot convert %q to %s", s, KindInt32)
		}
		i = n
	} else {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, err
		}
		i = n
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return nil, errors.Errorf("value %v overflows %s", v, KindInt32)
	}
	return int32(i), nil
}

// 字符串只按十进制解析，不接受进制前缀和数字分隔符
func toFloat64(v any, k Kind) (float64, error) {
	switch s := v.(type) {
	case bool:
		return 0, errors.Errorf("cannot convert %T to %s", v, k)
	case string:
		if strings.ContainsAny(s, "xX_") {
			return 0, errors.Errorf("cannot convert %q to %s", s, k)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot convert %q to %s", s, k)
		}
		return f, nil
	}
	return cast.ToFloat64E(v)
}
