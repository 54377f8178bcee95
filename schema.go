package upsertsql

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Querier 可执行查询的连接（*sql.DB / *sql.Tx / *sql.Conn）
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer 可执行语句的连接（*sql.DB / *sql.Tx / *sql.Conn）
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB 同时具备查询与执行能力的连接
type DB interface {
	Querier
	Execer
}

// TableMetadataResolver 解析目标表的列与主键信息
type TableMetadataResolver interface {
	Resolve(ctx context.Context, q Querier, ident TableIdentity) (*ColumnSet, error)
}

var _ TableMetadataResolver = (*SchemaResolver)(nil)

// SchemaResolver 通过 Driver 的元数据查询从存储实时读取列信息
type SchemaResolver struct {
	driver Driver
}

// NewSchemaResolver 创建解析器
func NewSchemaResolver(driver Driver) *SchemaResolver {
	return &SchemaResolver{driver: driver}
}

// Resolve 读取列信息；表不存在或无法查询时返回 ErrSchemaResolution
func (r *SchemaResolver) Resolve(ctx context.Context, q Querier, ident TableIdentity) (*ColumnSet, error) {
	if ident.Name == "" {
		return nil, invalidArgumentf("table name cannot be empty")
	}

	query, args := r.driver.ColumnsQuery(ident)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap(ident, err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			name string
			pk   bool
			dflt sql.NullString
		)
		if err := rows.Scan(&name, &pk, &dflt); err != nil {
			return nil, r.wrap(ident, err)
		}
		columns = append(columns, ColumnInfo{Name: name, PrimaryKey: pk, Default: dflt.String})
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap(ident, err)
	}

	if len(columns) == 0 {
		return nil, errors.Wrapf(ErrSchemaResolution, "table %s does not exist or has no visible columns", ident)
	}
	return NewColumnSet(columns), nil
}

func (r *SchemaResolver) wrap(ident TableIdentity, err error) error {
	if r.driver.ClassifyError(err) == ErrorKindConnection {
		return &WriteError{Kind: ErrorKindConnection, Table: ident, Err: errors.Wrapf(ErrSchemaResolution, "introspect %s: %v", ident, err)}
	}
	return errors.Wrapf(ErrSchemaResolution, "introspect %s: %v", ident, err)
}
