package upsertsql_test

import (
	"errors"
	"testing"

	"github.com/rushairer/upsertsql"
)

func quote(s string) string { return `"` + s + `"` }

func TestCompare(t *testing.T) {
	excluded := upsertsql.NewRef("EXCLUDED", quote)
	target := upsertsql.NewRef(`"orders"`, quote)

	wm, err := upsertsql.Compare("updated", ">=")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := wm(excluded, target).SQL; got != `EXCLUDED."updated" >= "orders"."updated"` {
		t.Errorf("SQL = %s", got)
	}

	for _, op := range []string{"LIKE", "; DROP TABLE x", ""} {
		if _, err := upsertsql.Compare("updated", op); !errors.Is(err, upsertsql.ErrInvalidArgument) {
			t.Errorf("op %q: expected ErrInvalidArgument, got %v", op, err)
		}
	}
	if _, err := upsertsql.Compare("", ">"); !errors.Is(err, upsertsql.ErrInvalidArgument) {
		t.Errorf("empty column: expected ErrInvalidArgument, got %v", err)
	}
}

func TestAllOf(t *testing.T) {
	excluded := upsertsql.NewRef("excluded", quote)
	target := upsertsql.NewRef(`"t"`, quote)

	cond := upsertsql.AllOf(
		upsertsql.IncomingGreater("v"),
		nil,
		upsertsql.StoredEquals("state", upsertsql.Text("open")),
	)(excluded, target)

	if want := `(excluded."v" > "t"."v") AND ("t"."state" = ?)`; cond.SQL != want {
		t.Errorf("SQL = %s, want %s", cond.SQL, want)
	}
	if len(cond.Args) != 1 {
		t.Errorf("args = %v", cond.Args)
	}
}

func TestFuncRef(t *testing.T) {
	ref := upsertsql.NewFuncRef(func(col string) string { return "VALUES(" + col + ")" })
	if got := ref.Col("v"); got != "VALUES(v)" {
		t.Errorf("Col = %s", got)
	}
}
