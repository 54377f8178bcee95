package upsertsql

import "context"

// InsertOrIgnoreWriter 批量插入，与已有键冲突的行被静默跳过
type InsertOrIgnoreWriter struct {
	*tableWriter
}

// NewInsertOrIgnoreWriter 创建 writer，构造时解析一次目标表的列信息
// keyColumns 为单个列名或有序列名列表
func NewInsertOrIgnoreWriter(
	ctx context.Context,
	db DB,
	driver Driver,
	schemaName string,
	tableName string,
	keyColumns any,
	opts ...Option,
) (*InsertOrIgnoreWriter, error) {
	tw, err := newTableWriter(ctx, db, driver, schemaName, tableName, keyColumns, ConflictIgnore, opts)
	if err != nil {
		return nil, err
	}
	return &InsertOrIgnoreWriter{tableWriter: tw}, nil
}

// Write 写入一批行，columns 与每行的值一一对应，返回实际插入的行数
func (w *InsertOrIgnoreWriter) Write(ctx context.Context, columns []string, rows [][]Value) (int64, error) {
	return w.WriteWith(ctx, w.db, columns, rows)
}

// WriteWith 使用调用方提供的连接（如 *sql.Tx）写入
func (w *InsertOrIgnoreWriter) WriteWith(ctx context.Context, exec Execer, columns []string, rows [][]Value) (int64, error) {
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
func (w *InsertOrIgnoreWriter) WriteRecords(ctx context.Context, records []Record) (int64, error) {
	return w.WriteRecordsWith(ctx, w.db, records)
}

// WriteRecordsWith 使用调用方提供的连接写入记录
func (w *InsertOrIgnoreWriter) WriteRecordsWith(ctx context.Context, exec Execer, records []Record) (int64, error) {
	return w.write(ctx, exec, records, func(columns []string, rows [][]Value) *Statement {
		return &Statement{
			Table:           w.ident,
			ColumnSet:       w.columns,
			Columns:         columns,
			Rows:            rows,
			Strategy:        ConflictIgnore,
			ConflictColumns: w.keys,
		}
	})
}
