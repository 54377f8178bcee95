package upsertsql

import (
	"fmt"
	"strings"
)

// Ref 在守卫条件中引用一行的列：待插入行（excluded）或已存在行（target）
type Ref struct {
	qualifier string
	quote     func(string) string
	wrap      func(col string) string
}

// NewRef 创建 qualifier.col 形式的引用
func NewRef(qualifier string, quote func(string) string) Ref {
	return Ref{qualifier: qualifier, quote: quote}
}

// NewFuncRef 创建函数形式的引用，例如 MySQL 的 VALUES(col)
func NewFuncRef(wrap func(col string) string) Ref {
	return Ref{wrap: wrap}
}

// Col 返回列的 SQL 引用
func (r Ref) Col(name string) string {
	if r.wrap != nil {
		return r.wrap(name)
	}
	return r.qualifier + "." + r.quote(name)
}

// Condition 存储端求值的布尔条件，参数占位符统一写作 ?
type Condition struct {
	SQL  string
	Args []any
}

// Where 构造条件
func Where(sql string, args ...any) Condition {
	return Condition{SQL: sql, Args: args}
}

// WhereMaker 根据待插入行与目标表生成守卫条件，条件不成立时冲突行保持不变
type WhereMaker func(excluded, target Ref) Condition

var compareOps = map[string]struct{}{
	"=": {}, "<>": {}, "!=": {}, ">": {}, ">=": {}, "<": {}, "<=": {},
}

// Compare 比较待插入值与已存储值：excluded.col <op> target.col
func Compare(column, op string) (WhereMaker, error) {
	if column == "" {
		return nil, invalidArgumentf("guard column cannot be empty")
	}
	if _, ok := compareOps[op]; !ok {
		return nil, invalidArgumentf("unsupported guard operator %q", op)
	}
	return func(excluded, target Ref) Condition {
		return Condition{SQL: fmt.Sprintf("%s %s %s", excluded.Col(column), op, target.Col(column))}
	}, nil
}

// IncomingGreater 仅当待插入值大于已存储值时更新
func IncomingGreater(column string) WhereMaker {
	return func(excluded, target Ref) Condition {
		return Condition{SQL: fmt.Sprintf("%s > %s", excluded.Col(column), target.Col(column))}
	}
}

// StoredEquals 仅当已存储值等于 v 时更新
func StoredEquals(column string, v Value) WhereMaker {
	return func(_, target Ref) Condition {
		return Condition{SQL: target.Col(column) + " = ?", Args: []any{v}}
	}
}

// AllOf 组合多个条件（AND）
func AllOf(makers ...WhereMaker) WhereMaker {
	return func(excluded, target Ref) Condition {
		parts := make([]string, 0, len(makers))
		var args []any
		for _, m := range makers {
			if m == nil {
				continue
			}
			c := m(excluded, target)
			if c.SQL == "" {
				continue
			}
			parts = append(parts, "("+c.SQL+")")
			args = append(args, c.Args...)
		}
		return Condition{SQL: strings.Join(parts, " AND "), Args: args}
	}
}
