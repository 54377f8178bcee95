package upsertsql

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind 值的类型
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	KindTime
	// KindDefault 同批次其他行提供了该列而本行没有，写入列默认值
	KindDefault
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Value 存储支持的标量值
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	t    time.Time
}

var _ driver.Valuer = Value{}

// Null 构造 NULL 值
func Null() Value { return Value{kind: KindNull} }

// Int 构造整数值
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float 构造浮点值
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text 构造文本值
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Time 构造时间值
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Bytes 构造二进制值
func Bytes(v []byte) Value { return Value{kind: KindBytes, b: v} }

// Default 构造列默认值占位
func Default() Value { return Value{kind: KindDefault} }

// Bool 构造布尔值
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Kind 返回值类型
func (v Value) Kind() Kind { return v.kind }

// IsNull 是否为 NULL
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsDefault 是否为列默认值占位
func (v Value) IsDefault() bool { return v.kind == KindDefault }

// Value 实现 driver.Valuer
func (v Value) Value() (driver.Value, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.i == 1, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindText:
		return v.s, nil
	case KindBytes:
		return v.b, nil
	case KindTime:
		return v.t, nil
	default:
		return nil, fmt.Errorf("value of kind %s cannot be bound as a parameter", v.kind)
	}
}

// Interface 返回对应的 Go 值
func (v Value) Interface() any {
	dv, err := v.Value()
	if err != nil {
		return nil
	}
	return dv
}

// Equal 比较两个值
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBytes:
		return string(v.b) == string(o.b)
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return v.i == o.i
	}
}

// String 字符串表示
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindDefault:
		return "DEFAULT"
	case KindBool:
		return strconv.FormatBool(v.i == 1)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.b))
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return "?"
	}
}

// ValueOf 将松散类型的输入（CSV、JSON、BSON 解码结果）转换为 Value
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Bytes(t), nil
	case time.Time:
		return Time(t), nil
	case *string:
		if t == nil {
			return Null(), nil
		}
		return Text(*t), nil
	case *int64:
		if t == nil {
			return Null(), nil
		}
		return Int(*t), nil
	case *float64:
		if t == nil {
			return Null(), nil
		}
		return Float(*t), nil
	case *bool:
		if t == nil {
			return Null(), nil
		}
		return Bool(*t), nil
	case *time.Time:
		if t == nil {
			return Null(), nil
		}
		return Time(*t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, invalidArgumentf("invalid json number %q", t.String())
		}
		return Float(f), nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return Value{}, err
		}
		if _, again := dv.(driver.Valuer); again {
			return Value{}, invalidArgumentf("unsupported value type %T", x)
		}
		return ValueOf(dv)
	default:
		return Value{}, invalidArgumentf("unsupported value type %T", x)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, invalidArgumentf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

// Values 批量转换，便于从 []any 构造行
func Values(xs ...any) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
