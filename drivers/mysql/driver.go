package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rushairer/upsertsql"
)

// DriverName database/sql 注册名（go-sql-driver/mysql）
const DriverName = "mysql"

const columnsQuery = `SELECT COLUMN_NAME, COLUMN_KEY = 'PRI', COLUMN_DEFAULT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

var _ upsertsql.Driver = (*Driver)(nil)

// Driver MySQL方言：INSERT ... ON DUPLICATE KEY UPDATE
//
// MySQL 无法指定冲突目标，任意唯一键冲突都会进入更新分支；
// 受影响行数沿用 MySQL 语义（插入 1，更新 2，未变化 0）。
type Driver struct {
	builder *upsertsql.SQLBuilder
}

// NewDriver 创建MySQL驱动
func NewDriver() *Driver {
	return &Driver{
		builder: &upsertsql.SQLBuilder{
			Quote:        quoteIdent,
			Placeholder:  func(int) string { return "?" },
			DefaultValue: func(upsertsql.ColumnInfo) string { return "DEFAULT" },
		},
	}
}

// DefaultDriver 全局默认MySQL驱动实例
var DefaultDriver = NewDriver()

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Driver) Name() string { return "mysql" }

// SupportsGuard SET 子句按顺序求值，无法安全地表达守卫条件
func (d *Driver) SupportsGuard() bool { return false }

// ColumnsQuery 从 information_schema 读取列与主键信息，空 schema 取当前库
func (d *Driver) ColumnsQuery(ident upsertsql.TableIdentity) (string, []any) {
	return columnsQuery, []any{ident.Schema, ident.Name}
}

// Refs 待插入行为 VALUES(col)，已存在行用表名引用
func (d *Driver) Refs(ident upsertsql.TableIdentity) (upsertsql.Ref, upsertsql.Ref) {
	return upsertsql.NewFuncRef(excluded), upsertsql.NewRef(quoteIdent(ident.Name), quoteIdent)
}

func excluded(col string) string {
	return "VALUES(" + quoteIdent(col) + ")"
}

// GenerateInsertSQL 生成MySQL批量插入SQL
func (d *Driver) GenerateInsertSQL(ctx context.Context, stmt *upsertsql.Statement) (string, []any, error) {
	if len(stmt.Rows) == 0 {
		return "", nil, nil
	}
	if len(stmt.ConflictColumns) == 0 {
		return "", nil, errors.New("no conflict columns defined")
	}
	if stmt.Guard != nil {
		return "", nil, errors.New("mysql driver does not support conditional update guards")
	}

	values, args, err := d.builder.Values(ctx, stmt)
	if err != nil {
		return "", nil, err
	}
	baseSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.builder.Table(stmt.Table), d.builder.QuoteList(stmt.Columns), values)

	if stmt.Strategy != upsertsql.ConflictUpdate || len(stmt.Updates) == 0 {
		// 不使用 INSERT IGNORE：它会把非键约束错误降级为警告
		key := quoteIdent(stmt.ConflictColumns[0])
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s", baseSQL, key, key), args, nil
	}

	set, args := d.builder.Assignments(stmt.Updates, excluded, args)
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", baseSQL, set), args, nil
}

var (
	constraintErrors = map[uint16]struct{}{
		1048: {}, // column cannot be null
		1062: {}, // duplicate entry
		1216: {}, 1217: {}, 1451: {}, 1452: {}, // foreign key
		1364: {}, // field doesn't have a default value
		3819: {}, // check constraint
	}
	connectionErrors = map[uint16]struct{}{
		1040: {}, // too many connections
		1044: {}, 1045: {}, // access denied
		1129: {}, 1130: {}, // host blocked / not allowed
		1152: {}, 1153: {}, 1158: {}, 1159: {}, 1160: {}, 1161: {},
	}
)

// ClassifyError 按 MySQL 错误号分类
func (d *Driver) ClassifyError(err error) upsertsql.ErrorKind {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		if _, ok := constraintErrors[me.Number]; ok {
			return upsertsql.ErrorKindConstraint
		}
		if _, ok := connectionErrors[me.Number]; ok {
			return upsertsql.ErrorKindConnection
		}
		return upsertsql.ErrorKindUnknown
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return upsertsql.ErrorKindConnection
	}
	return upsertsql.ClassifyCommonError(err)
}
