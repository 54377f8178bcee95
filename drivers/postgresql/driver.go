package postgresql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/rushairer/upsertsql"
)

const (
	// DriverName database/sql 注册名（lib/pq）
	DriverName = "postgres"
	// PgxDriverName pgx 的 database/sql 注册名，方言相同
	PgxDriverName = "pgx"
)

const columnsQuery = `SELECT c.column_name,
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage ku
			ON ku.constraint_schema = tc.constraint_schema
			AND ku.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND ku.column_name = c.column_name
	) AS is_primary_key,
	c.column_default
FROM information_schema.columns c
WHERE c.table_schema = COALESCE(NULLIF($1, ''), current_schema())
	AND c.table_name = $2
ORDER BY c.ordinal_position`

var _ upsertsql.Driver = (*Driver)(nil)

// Driver PostgreSQL方言：INSERT ... ON CONFLICT (keys) DO NOTHING / DO UPDATE ... WHERE
type Driver struct {
	builder *upsertsql.SQLBuilder
}

// NewDriver 创建PostgreSQL驱动
func NewDriver() *Driver {
	return &Driver{
		builder: &upsertsql.SQLBuilder{
			Quote:        pq.QuoteIdentifier,
			Placeholder:  func(n int) string { return "$" + strconv.Itoa(n) },
			DefaultValue: func(upsertsql.ColumnInfo) string { return "DEFAULT" },
		},
	}
}

// DefaultDriver 全局默认PostgreSQL驱动实例
var DefaultDriver = NewDriver()

func (d *Driver) Name() string { return "postgresql" }

func (d *Driver) SupportsGuard() bool { return true }

// ColumnsQuery 从 information_schema 读取列与主键信息
func (d *Driver) ColumnsQuery(ident upsertsql.TableIdentity) (string, []any) {
	return columnsQuery, []any{ident.Schema, ident.Name}
}

// Refs 待插入行为 EXCLUDED，已存在行用表名引用
func (d *Driver) Refs(ident upsertsql.TableIdentity) (upsertsql.Ref, upsertsql.Ref) {
	return upsertsql.NewRef("EXCLUDED", pq.QuoteIdentifier),
		upsertsql.NewRef(pq.QuoteIdentifier(ident.Name), pq.QuoteIdentifier)
}

// GenerateInsertSQL 生成PostgreSQL批量插入SQL
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
	conflict, args := d.builder.OnConflictSQL(stmt, "EXCLUDED", args)

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s%s",
		d.builder.Table(stmt.Table), d.builder.QuoteList(stmt.Columns), values, conflict)
	return sql, args, nil
}

// ClassifyError 按 SQLSTATE 分类：23 约束，08/28/57P0x 连接。lib/pq 与 pgx 的错误都能识别
func (d *Driver) ClassifyError(err error) upsertsql.ErrorKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}
	if pgconn.SafeToRetry(err) || errors.Is(err, driver.ErrBadConn) {
		return upsertsql.ErrorKindConnection
	}
	return upsertsql.ClassifyCommonError(err)
}

func classifySQLState(code string) upsertsql.ErrorKind {
	if len(code) < 2 {
		return upsertsql.ErrorKindUnknown
	}
	switch code[:2] {
	case "23":
		return upsertsql.ErrorKindConstraint
	case "08", "28":
		return upsertsql.ErrorKindConnection
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return upsertsql.ErrorKindConnection
	}
	return upsertsql.ErrorKindUnknown
}
