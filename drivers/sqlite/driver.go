package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/rushairer/upsertsql"
)

// DriverName database/sql 注册名（mattn/go-sqlite3）
const DriverName = "sqlite3"

const columnsQuery = `SELECT name, pk > 0, dflt_value FROM pragma_table_info(?, ?) ORDER BY cid`

var _ upsertsql.Driver = (*Driver)(nil)

// Driver SQLite方言（3.24+ 的 UPSERT 语法）
type Driver struct {
	builder *upsertsql.SQLBuilder
}

// NewDriver 创建SQLite驱动
func NewDriver() *Driver {
	return &Driver{
		builder: &upsertsql.SQLBuilder{
			Quote:       quoteIdent,
			Placeholder: func(int) string { return "?" },
			// SQLite 的 VALUES 不支持 DEFAULT 关键字，直接写入列定义里的默认值表达式
			DefaultValue: func(col upsertsql.ColumnInfo) string {
				if col.Default == "" {
					return "NULL"
				}
				return "(" + col.Default + ")"
			},
		},
	}
}

// DefaultDriver 全局默认SQLite驱动实例
var DefaultDriver = NewDriver()

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// mainSchema 空 schema 与 main 都按未限定表名处理
func mainSchema(ident upsertsql.TableIdentity) upsertsql.TableIdentity {
	if ident.Schema == "main" {
		ident.Schema = ""
	}
	return ident
}

func (d *Driver) Name() string { return "sqlite" }

func (d *Driver) SupportsGuard() bool { return true }

// ColumnsQuery 通过 pragma_table_info 读取列信息
func (d *Driver) ColumnsQuery(ident upsertsql.TableIdentity) (string, []any) {
	schema := ident.Schema
	if schema == "" {
		schema = "main"
	}
	return columnsQuery, []any{ident.Name, schema}
}

// Refs 待插入行为 excluded，已存在行用表名引用
func (d *Driver) Refs(ident upsertsql.TableIdentity) (upsertsql.Ref, upsertsql.Ref) {
	return upsertsql.NewRef("excluded", quoteIdent),
		upsertsql.NewRef(quoteIdent(ident.Name), quoteIdent)
}

// GenerateInsertSQL 生成SQLite批量插入SQL
func (d *Driver) GenerateInsertSQL(ctx context.Context, stmt *upsertsql.Statement) (string, []any, error) {
	if len(stmt.Rows) == 0 {
		return "", nil, nil
	}
	if len(stmt.ConflictColumns) == 0 {
		return "", nil, errors.New("no conflict columns defined")
	}

	values, args, err := d.builder.Values(ctx, stmt)
	if err != nil {
		return "", nil, err
	}
	conflict, args := d.builder.OnConflictSQL(stmt, "excluded", args)

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s%s",
		d.builder.Table(mainSchema(stmt.Table)), d.builder.QuoteList(stmt.Columns), values, conflict)
	return sql, args, nil
}

// ClassifyError 按 sqlite3 结果码分类
func (d *Driver) ClassifyError(err error) upsertsql.ErrorKind {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return upsertsql.ErrorKindConstraint
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrAuth:
			return upsertsql.ErrorKindConnection
		}
		return upsertsql.ErrorKindUnknown
	}
	return upsertsql.ClassifyCommonError(err)
}
