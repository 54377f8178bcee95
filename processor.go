package upsertsql

import (
	"context"

	"github.com/pkg/errors"
)

// statementProcessor 渲染语句并执行，统一错误分类
// 架构：Writer -> statementProcessor -> Driver -> Database
type statementProcessor struct {
	driver Driver
}

func newStatementProcessor(driver Driver) *statementProcessor {
	return &statementProcessor{driver: driver}
}

// Generate 生成 SQL 与参数
func (p *statementProcessor) Generate(ctx context.Context, stmt *Statement) (string, []any, error) {
	query, args, err := p.driver.GenerateInsertSQL(ctx, stmt)
	if err != nil {
		return "", nil, err
	}
	if query == "" {
		return "", nil, errors.New("driver generated an empty statement")
	}
	return query, args, nil
}

// Execute 执行一条原子语句，返回受影响行数
func (p *statementProcessor) Execute(ctx context.Context, exec Execer, stmt *Statement) (int64, error) {
	query, args, err := p.Generate(ctx, stmt)
	if err != nil {
		return 0, err
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, p.wrap(stmt.Table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, p.wrap(stmt.Table, err)
	}
	return affected, nil
}

func (p *statementProcessor) wrap(table TableIdentity, err error) error {
	kind := p.driver.ClassifyError(err)
	if kind == ErrorKindUnknown {
		kind = ClassifyCommonError(err)
	}
	return &WriteError{Kind: kind, Table: table, Err: err}
}
