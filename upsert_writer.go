package upsertsql

import (
	"context"

	"go.uber.org/zap"
)

// InsertOrUpdateWriter 批量插入，键冲突时更新已有行的非主键列，可选守卫条件
type InsertOrUpdateWriter struct {
	*tableWriter
	driver     Driver
	whereMaker WhereMaker
}

// NewInsertOrUpdateWriter 创建 writer，构造时解析一次目标表的列与主键信息
// keyColumns 是冲突检测键，可以与主键不同（例如代理主键 + 唯一业务键）
func NewInsertOrUpdateWriter(
	ctx context.Context,
	db DB,
	driver Driver,
	schemaName string,
	tableName string,
	keyColumns any,
	opts ...Option,
) (*InsertOrUpdateWriter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.whereMaker != nil && driver != nil && !driver.SupportsGuard() {
		return nil, invalidArgumentf("driver %s does not support conditional update guards", driver.Name())
	}

	tw, err := newTableWriter(ctx, db, driver, schemaName, tableName, keyColumns, ConflictUpdate, opts)
	if err != nil {
		return nil, err
	}
	return &InsertOrUpdateWriter{
		tableWriter: tw,
		driver:      driver,
		whereMaker:  o.whereMaker,
	}, nil
}

// Write 写入一批行，返回插入与（通过守卫的）更新行数之和
func (w *InsertOrUpdateWriter) Write(ctx context.Context, columns []string, rows [][]Value) (int64, error) {
	return w.WriteWith(ctx, w.db, columns, rows)
}

// WriteWith 使用调用方提供的连接（如 *sql.Tx）写入
func (w *InsertOrUpdateWriter) WriteWith(ctx context.Context, exec Execer, columns []string, rows [][]Value) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	records, err := RecordsFromRows(columns, rows)
	if err != nil {
		return 0, err
	}
	return w.WriteRecordsWith(ctx, exec, records)
}

// WriteRecords 写入一批记录，各记录可以携带不同的列
func (w *InsertOrUpdateWriter) WriteRecords(ctx context.Context, records []Record) (int64, error) {
	return w.WriteRecordsWith(ctx, w.db, records)
}

// WriteRecordsWith 使用调用方提供的连接写入记录
func (w *InsertOrUpdateWriter) WriteRecordsWith(ctx context.Context, exec Execer, records []Record) (int64, error) {
	return w.write(ctx, exec, records, func(columns []string, rows [][]Value) *Statement {
		stmt := &Statement{
			Table:           w.ident,
			ColumnSet:       w.columns,
			Columns:         columns,
			Rows:            rows,
			Strategy:        ConflictUpdate,
			ConflictColumns: w.keys,
			Updates:         w.updateSet(columns, rows),
		}
		if len(stmt.Updates) == 0 {
			w.opts.logger.Debug("nothing to update on conflict, falling back to ignore",
				zap.String("table", w.ident.String()))
			return stmt
		}
		if w.whereMaker != nil {
			excluded, target := w.driver.Refs(w.ident)
			cond := w.whereMaker(excluded, target)
			if cond.SQL != "" {
				stmt.Guard = &cond
			}
		}
		return stmt
	})
}

// updateSet 冲突时刷新的列：非主键、非 created_by 且每一行都携带的投影列；
// updated_by / updated_at 存在时强制刷新。
// 只有部分行携带的列不刷新，否则未携带该列的冲突行会被默认值覆盖
func (w *InsertOrUpdateWriter) updateSet(columns []string, rows [][]Value) []Assignment {
	set := make([]Assignment, 0, len(columns)+1)
	for j, col := range columns {
		if w.columns.IsPrimaryKey(col) {
			continue
		}
		if !carriedByAll(rows, j) {
			w.opts.logger.Warn("column not carried by every row, left out of the update set",
				zap.String("table", w.ident.String()),
				zap.String("column", col))
			continue
		}
		if col == w.audit.CreatedBy {
			continue
		}
		if w.has.updatedBy && col == w.audit.UpdatedBy {
			continue
		}
		if w.has.updatedAt && col == w.audit.UpdatedAt {
			continue
		}
		set = append(set, Assignment{Column: col, Excluded: true})
	}
	if w.has.updatedBy && !w.columns.IsPrimaryKey(w.audit.UpdatedBy) {
		set = append(set, Assignment{Column: w.audit.UpdatedBy, Value: Text(w.opts.auditUser)})
	}
	if w.has.updatedAt && !w.columns.IsPrimaryKey(w.audit.UpdatedAt) {
		set = append(set, Assignment{Column: w.audit.UpdatedAt, Value: Time(w.opts.now())})
	}
	return set
}

func carriedByAll(rows [][]Value, j int) bool {
	for _, row := range rows {
		if row[j].IsDefault() {
			return false
		}
	}
	return true
}
