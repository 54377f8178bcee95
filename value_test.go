package upsertsql_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rushairer/upsertsql"
)

func TestValueOf(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := "x"
	tests := []struct {
		name string
		in   any
		want upsertsql.Value
	}{
		{"nil", nil, upsertsql.Null()},
		{"bool", true, upsertsql.Bool(true)},
		{"int", 42, upsertsql.Int(42)},
		{"uint32", uint32(7), upsertsql.Int(7)},
		{"float", 1.5, upsertsql.Float(1.5)},
		{"string", "hi", upsertsql.Text("hi")},
		{"bytes", []byte("ab"), upsertsql.Bytes([]byte("ab"))},
		{"time", ts, upsertsql.Time(ts)},
		{"string pointer", &s, upsertsql.Text("x")},
		{"nil pointer", (*string)(nil), upsertsql.Null()},
		{"json int", json.Number("12"), upsertsql.Int(12)},
		{"json float", json.Number("1.25"), upsertsql.Float(1.25)},
		{"value", upsertsql.Text("v"), upsertsql.Text("v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := upsertsql.ValueOf(tt.in)
			if err != nil {
				t.Fatalf("ValueOf: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ValueOf(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueOf_Unsupported(t *testing.T) {
	for _, in := range []any{struct{}{}, map[string]any{}, uint64(math.MaxUint64)} {
		if _, err := upsertsql.ValueOf(in); !errors.Is(err, upsertsql.ErrInvalidArgument) {
			t.Errorf("ValueOf(%T): expected ErrInvalidArgument, got %v", in, err)
		}
	}
}

func TestValue_DriverValue(t *testing.T) {
	if v, err := upsertsql.Bool(true).Value(); err != nil || v != true {
		t.Errorf("Bool.Value() = %v, %v", v, err)
	}
	if v, err := upsertsql.Null().Value(); err != nil || v != nil {
		t.Errorf("Null.Value() = %v, %v", v, err)
	}
	if _, err := upsertsql.Default().Value(); err == nil {
		t.Error("Default.Value() should not be bindable")
	}
}

func TestValues(t *testing.T) {
	vs, err := upsertsql.Values(1, "a", nil)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(vs) != 3 || !vs[2].IsNull() || vs[1].Kind() != upsertsql.KindText {
		t.Errorf("Values = %v", vs)
	}
}
