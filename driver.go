package upsertsql

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Driver 数据库方言：表结构查询、冲突语句生成、错误分类
type Driver interface {
	// Name 驱动名称（用于日志与指标标签）
	Name() string

	// ColumnsQuery 返回列元数据查询，结果列依次为 name, is_primary_key, default_expr
	ColumnsQuery(ident TableIdentity) (query string, args []any)

	// GenerateInsertSQL 生成一条带冲突处理的批量插入语句
	GenerateInsertSQL(ctx context.Context, stmt *Statement) (sql string, args []any, err error)

	// Refs 返回守卫条件中引用待插入行与已存在行的方式
	Refs(ident TableIdentity) (excluded, target Ref)

	// SupportsGuard 是否支持 ON CONFLICT ... DO UPDATE ... WHERE
	SupportsGuard() bool

	// ClassifyError 将驱动错误归类
	ClassifyError(err error) ErrorKind
}

// Assignment 冲突更新时的一个 SET 项
type Assignment struct {
	Column string
	// Excluded 为 true 时取待插入行的值，否则绑定 Value
	Excluded bool
	Value    Value
}

// Statement 一次批量写入的语句描述，由 writer 构建，交给 Driver 渲染
type Statement struct {
	Table           TableIdentity
	ColumnSet       *ColumnSet
	Columns         []string
	Rows            [][]Value
	Strategy        ConflictStrategy
	ConflictColumns []string
	Updates         []Assignment
	Guard           *Condition
}

// HasDefaults 是否有行缺少某列
func (s *Statement) HasDefaults() bool {
	for _, row := range s.Rows {
		for _, v := range row {
			if v.IsDefault() {
				return true
			}
		}
	}
	return false
}

// SQLBuilder 各方言共享的语句片段构建
type SQLBuilder struct {
	// Quote 引用标识符
	Quote func(string) string
	// Placeholder 第 n 个参数的占位符（从 1 开始）
	Placeholder func(n int) string
	// DefaultValue 行缺少某列时 VALUES 中的写法
	DefaultValue func(col ColumnInfo) string

	placeholders sync.Map // key: (colCount<<32)|batchSize  value: string
}

// Table 引用后的表名（带 schema）
func (b *SQLBuilder) Table(ident TableIdentity) string {
	if ident.Schema == "" {
		return b.Quote(ident.Name)
	}
	return b.Quote(ident.Schema) + "." + b.Quote(ident.Name)
}

// QuoteList 引用并拼接列名
func (b *SQLBuilder) QuoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

// Values 生成 VALUES 后的行列表与参数
func (b *SQLBuilder) Values(ctx context.Context, stmt *Statement) (string, []any, error) {
	columnCount := len(stmt.Columns)
	if columnCount == 0 {
		return "", nil, invalidArgumentf("no columns to insert into %s", stmt.Table)
	}

	args := make([]any, 0, len(stmt.Rows)*columnCount)
	if !stmt.HasDefaults() {
		for _, row := range stmt.Rows {
			// 忽略超时或取消的请求
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			for _, v := range row {
				args = append(args, v)
			}
		}
		return b.cachedPlaceholders(columnCount, len(stmt.Rows)), args, nil
	}

	rows := make([]string, len(stmt.Rows))
	cells := make([]string, columnCount)
	for i, row := range stmt.Rows {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		for j, v := range row {
			if v.IsDefault() {
				col, _ := stmt.ColumnSet.Column(stmt.Columns[j])
				cells[j] = b.DefaultValue(col)
				continue
			}
			args = append(args, v)
			cells[j] = b.Placeholder(len(args))
		}
		rows[i] = "(" + strings.Join(cells, ", ") + ")"
	}
	return strings.Join(rows, ", "), args, nil
}

func (b *SQLBuilder) cachedPlaceholders(columnCount, batchSize int) string {
	key := (uint64(columnCount) << 32) | uint64(batchSize)
	if v, ok := b.placeholders.Load(key); ok {
		return v.(string)
	}
	rows := make([]string, batchSize)
	ph := make([]string, columnCount)
	for i := 0; i < batchSize; i++ {
		for j := 0; j < columnCount; j++ {
			ph[j] = b.Placeholder(i*columnCount + j + 1)
		}
		rows[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	out := strings.Join(rows, ", ")
	b.placeholders.Store(key, out)
	return out
}

// Assignments 生成 SET 子句，excluded 为引用待插入行的写法（如 EXCLUDED."col"）
func (b *SQLBuilder) Assignments(updates []Assignment, excluded func(col string) string, args []any) (string, []any) {
	pairs := make([]string, len(updates))
	for i, u := range updates {
		if u.Excluded {
			pairs[i] = fmt.Sprintf("%s = %s", b.Quote(u.Column), excluded(u.Column))
			continue
		}
		args = append(args, u.Value)
		pairs[i] = fmt.Sprintf("%s = %s", b.Quote(u.Column), b.Placeholder(len(args)))
	}
	return strings.Join(pairs, ", "), args
}

// Rebind 将条件中的 ? 占位符改写为方言占位符，offset 为已有参数个数；
// 字符串字面量与带引号的标识符中的 ? 保持不变
func (b *SQLBuilder) Rebind(sql string, offset int) string {
	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	// quote 为当前所在的字符串或标识符的引号，0 表示不在引号内
	var quote rune
	n := offset
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			sb.WriteRune(r)
		case r == '\'' || r == '"' || r == '`':
			quote = r
			sb.WriteRune(r)
		case r == '?':
			n++
			sb.WriteString(b.Placeholder(n))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// OnConflictSQL 生成 ON CONFLICT 子句（PostgreSQL 与 SQLite 语法一致）
func (b *SQLBuilder) OnConflictSQL(stmt *Statement, excludedAlias string, args []any) (string, []any) {
	target := b.QuoteList(stmt.ConflictColumns)
	if stmt.Strategy != ConflictUpdate || len(stmt.Updates) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", target), args
	}

	set, args := b.Assignments(stmt.Updates, func(col string) string {
		return excludedAlias + "." + b.Quote(col)
	}, args)
	clause := fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", target, set)
	if stmt.Guard != nil && stmt.Guard.SQL != "" {
		clause += " WHERE " + b.Rebind(stmt.Guard.SQL, len(args))
		args = append(args, stmt.Guard.Args...)
	}
	return clause, args
}
