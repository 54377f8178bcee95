package upsertsql_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rushairer/upsertsql"
)

func TestParseKeyColumns(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []string
		wantErr bool
	}{
		{"单列", "id", []string{"id"}, false},
		{"多列", []string{"tenant_id", "email"}, []string{"tenant_id", "email"}, false},
		{"去重保序", []string{"a", "b", "a"}, []string{"a", "b"}, false},
		{"整数", 42, nil, true},
		{"nil", nil, nil, true},
		{"空列表", []string{}, nil, true},
		{"空列名", []string{"id", ""}, nil, true},
		{"非字符串列表", []any{"id"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := upsertsql.ParseKeyColumns(tt.in)
			if tt.wantErr {
				if !errors.Is(err, upsertsql.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeyColumns: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseKeyColumns_DoesNotAliasInput(t *testing.T) {
	in := []string{"a", "b", "a"}
	if _, err := upsertsql.ParseKeyColumns(in); err != nil {
		t.Fatalf("ParseKeyColumns: %v", err)
	}
	if !reflect.DeepEqual(in, []string{"a", "b", "a"}) {
		t.Errorf("input modified: %v", in)
	}
}
