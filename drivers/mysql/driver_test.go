package mysql_test

import (
	"context"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/drivers/mysql"
)

func statement(strategy upsertsql.ConflictStrategy, updates []upsertsql.Assignment) *upsertsql.Statement {
	return &upsertsql.Statement{
		Table: upsertsql.TableIdentity{Schema: "app", Name: "users"},
		ColumnSet: upsertsql.NewColumnSet([]upsertsql.ColumnInfo{
			{Name: "id", PrimaryKey: true}, {Name: "email"}, {Name: "name"},
		}),
		Columns:         []string{"id", "email", "name"},
		Rows:            [][]upsertsql.Value{{upsertsql.Int(1), upsertsql.Text("a"), upsertsql.Default()}},
		Strategy:        strategy,
		ConflictColumns: []string{"email"},
		Updates:         updates,
	}
}

func TestGenerateInsertSQL(t *testing.T) {
	d := mysql.NewDriver()
	ctx := context.Background()

	sql, args, err := d.GenerateInsertSQL(ctx, statement(upsertsql.ConflictIgnore, nil))
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	want := "INSERT INTO `app`.`users` (`id`, `email`, `name`) VALUES (?, ?, DEFAULT) ON DUPLICATE KEY UPDATE `email` = `email`"
	if sql != want {
		t.Errorf("ignore sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 2 {
		t.Errorf("len(args) = %d, want 2", len(args))
	}

	sql, args, err = d.GenerateInsertSQL(ctx, statement(upsertsql.ConflictUpdate, []upsertsql.Assignment{
		{Column: "name", Excluded: true},
		{Column: "updated_by", Value: upsertsql.Text("etl")},
	}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want = "INSERT INTO `app`.`users` (`id`, `email`, `name`) VALUES (?, ?, DEFAULT) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `updated_by` = ?"
	if sql != want {
		t.Errorf("update sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 3 {
		t.Errorf("len(args) = %d, want 3", len(args))
	}
}

func TestGenerateInsertSQL_GuardUnsupported(t *testing.T) {
	d := mysql.NewDriver()
	if d.SupportsGuard() {
		t.Fatal("mysql should not report guard support")
	}
	stmt := statement(upsertsql.ConflictUpdate, []upsertsql.Assignment{{Column: "name", Excluded: true}})
	stmt.Guard = &upsertsql.Condition{SQL: "1 = 1"}
	if _, _, err := d.GenerateInsertSQL(context.Background(), stmt); err == nil {
		t.Fatal("expected error for guarded statement")
	}
}

func TestRefs(t *testing.T) {
	excluded, target := mysql.NewDriver().Refs(upsertsql.TableIdentity{Name: "users"})
	if got := excluded.Col("version"); got != "VALUES(`version`)" {
		t.Errorf("excluded = %q", got)
	}
	if got := target.Col("version"); got != "`users`.`version`" {
		t.Errorf("target = %q", got)
	}
}

func TestClassifyError(t *testing.T) {
	d := mysql.NewDriver()
	tests := []struct {
		name string
		err  error
		want upsertsql.ErrorKind
	}{
		{"duplicate", &gomysql.MySQLError{Number: 1062}, upsertsql.ErrorKindConstraint},
		{"check", &gomysql.MySQLError{Number: 3819}, upsertsql.ErrorKindConstraint},
		{"access denied", &gomysql.MySQLError{Number: 1045}, upsertsql.ErrorKindConnection},
		{"no such table", &gomysql.MySQLError{Number: 1146}, upsertsql.ErrorKindUnknown},
		{"invalid conn", gomysql.ErrInvalidConn, upsertsql.ErrorKindConnection},
		{"other", errors.New("boom"), upsertsql.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError = %v, want %v", got, tt.want)
			}
		})
	}
}
