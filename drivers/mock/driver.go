package mock

import (
	"context"
	"sync"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/drivers/sqlite"
)

var _ upsertsql.Driver = (*Driver)(nil)

// Driver 记录语句生成调用的驱动包装，渲染委托给内部驱动
type Driver struct {
	upsertsql.Driver

	mu         sync.Mutex
	statements []*upsertsql.Statement
	queries    []string
}

// NewDriver 创建记录驱动，inner 为空时使用SQLite语法
func NewDriver(inner upsertsql.Driver) *Driver {
	if inner == nil {
		inner = sqlite.NewDriver()
	}
	return &Driver{Driver: inner}
}

// GenerateInsertSQL 记录语句后委托给内部驱动
func (d *Driver) GenerateInsertSQL(ctx context.Context, stmt *upsertsql.Statement) (string, []any, error) {
	query, args, err := d.Driver.GenerateInsertSQL(ctx, stmt)

	d.mu.Lock()
	d.statements = append(d.statements, stmt)
	d.queries = append(d.queries, query)
	d.mu.Unlock()

	return query, args, err
}

// Calls 语句生成次数
func (d *Driver) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.statements)
}

// Statements 已记录的语句
func (d *Driver) Statements() []*upsertsql.Statement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*upsertsql.Statement(nil), d.statements...)
}

// LastQuery 最近一次生成的SQL
func (d *Driver) LastQuery() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queries) == 0 {
		return ""
	}
	return d.queries[len(d.queries)-1]
}

// Reset 清空记录
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statements = nil
	d.queries = nil
}
