package upsertsql

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// tableWriter 两种 writer 共享的部分：构造时解析一次的表元数据与投影逻辑
type tableWriter struct {
	ident     TableIdentity
	columns   *ColumnSet
	keys      []string
	audit     AuditColumns
	has       auditPresence
	strategy  ConflictStrategy
	db        Execer
	processor *statementProcessor
	opts      options
}

func newTableWriter(
	ctx context.Context,
	db DB,
	driver Driver,
	schemaName string,
	tableName string,
	keyColumns any,
	strategy ConflictStrategy,
	opts []Option,
) (*tableWriter, error) {
	if driver == nil {
		return nil, invalidArgumentf("driver cannot be nil")
	}
	if db == nil {
		return nil, invalidArgumentf("connection cannot be nil")
	}

	// 先校验参数，避免对存储发起任何请求
	keys, err := ParseKeyColumns(keyColumns)
	if err != nil {
		return nil, err
	}
	if tableName == "" {
		return nil, invalidArgumentf("table name cannot be empty")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = NewSchemaResolver(driver)
	}

	ident := TableIdentity{Schema: schemaName, Name: tableName}
	columns, err := o.resolver.Resolve(ctx, db, ident)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		if !columns.Has(k) {
			o.logger.Warn("key column not found in table, the store will reject the conflict target",
				zap.String("table", ident.String()), zap.String("column", k))
		}
	}

	w := &tableWriter{
		ident:     ident,
		columns:   columns,
		keys:      keys,
		audit:     o.auditColumns,
		has:       detectAudit(columns, o.auditColumns),
		strategy:  strategy,
		db:        db,
		processor: newStatementProcessor(driver),
		opts:      o,
	}
	o.logger.Debug("writer ready",
		zap.String("driver", driver.Name()),
		zap.String("table", ident.String()),
		zap.Stringer("strategy", strategy),
		zap.Strings("keys", keys),
		zap.Strings("columns", columns.Names()),
	)
	return w, nil
}

// Table 目标表
func (w *tableWriter) Table() TableIdentity { return w.ident }

// Columns 构造时解析到的列集合
func (w *tableWriter) Columns() *ColumnSet { return w.columns }

// KeyColumns 冲突检测键
func (w *tableWriter) KeyColumns() []string {
	return append([]string(nil), w.keys...)
}

// project 逐行投影到表中存在的列并盖审计戳，返回列的并集与对齐后的行
func (w *tableWriter) project(records []Record) ([]string, [][]Value, error) {
	var order []string
	seen := make(map[string]struct{}, w.columns.Len())
	projected := make([]map[string]Value, len(records))

	for i, rec := range records {
		m := make(map[string]Value, len(rec)+2)
		for _, f := range rec {
			if !w.columns.Has(f.Name) {
				continue
			}
			if _, ok := seen[f.Name]; !ok {
				seen[f.Name] = struct{}{}
				order = append(order, f.Name)
			}
			m[f.Name] = f.Value
		}
		projected[i] = m
	}

	stamp := func(col string) {
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			order = append(order, col)
		}
		for _, m := range projected {
			m[col] = Text(w.opts.auditUser)
		}
	}
	if w.has.createdBy {
		stamp(w.audit.CreatedBy)
	}
	if w.has.updatedBy {
		stamp(w.audit.UpdatedBy)
	}

	// 投影为空的行交给存储判断（例如 NOT NULL 约束）；整批都没有可写的列时无法生成语句
	if len(order) == 0 {
		return nil, nil, invalidArgumentf("no column of the batch is present in %s", w.ident)
	}

	rows := make([][]Value, len(projected))
	for i, m := range projected {
		row := make([]Value, len(order))
		for j, col := range order {
			v, ok := m[col]
			if !ok {
				v = Default()
			}
			row[j] = v
		}
		rows[i] = row
	}
	return order, rows, nil
}

// write 执行一次批量写入；空批次不发出任何语句
func (w *tableWriter) write(ctx context.Context, exec Execer, records []Record, build func(columns []string, rows [][]Value) *Statement) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if exec == nil {
		return 0, invalidArgumentf("connection cannot be nil")
	}

	columns, rows, err := w.project(records)
	if err != nil {
		return 0, err
	}
	stmt := build(columns, rows)

	startTime := time.Now()
	affected, err := w.processor.Execute(ctx, exec, stmt)
	duration := time.Since(startTime)

	table := w.ident.String()
	if err != nil {
		kind := ErrorKindUnknown
		var we *WriteError
		if errors.As(err, &we) {
			kind = we.Kind
		}
		w.opts.reporter.IncError(table, kind.String())
		w.opts.reporter.ObserveWrite(table, w.strategy, len(records), 0, duration, "fail")
		w.opts.logger.Error("batch write failed",
			zap.String("table", table),
			zap.Stringer("strategy", w.strategy),
			zap.Int("rows", len(records)),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
		return 0, err
	}

	w.opts.reporter.ObserveWrite(table, w.strategy, len(records), affected, duration, "success")
	w.opts.logger.Debug("batch written",
		zap.String("table", table),
		zap.Stringer("strategy", w.strategy),
		zap.Int("rows", len(records)),
		zap.Int64("affected", affected),
		zap.Duration("duration", duration),
	)
	return affected, nil
}
