package upsertsql

import "strings"

// ConflictStrategy defines how a key collision is resolved by the store
type ConflictStrategy int

const (
	// ConflictIgnore skips colliding rows
	ConflictIgnore ConflictStrategy = iota
	// ConflictUpdate updates the colliding row
	ConflictUpdate
)

// String returns the string representation of ConflictStrategy
func (cs ConflictStrategy) String() string {
	switch cs {
	case ConflictIgnore:
		return "IGNORE"
	case ConflictUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// DefaultAuditUser 未指定审计用户时写入的值
const DefaultAuditUser = "DEFAULT_USER"

// TableIdentity 物理表标识（schema + 表名）
type TableIdentity struct {
	Schema string
	Name   string
}

// String 返回 schema.table 形式
func (t TableIdentity) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnInfo 列元数据
type ColumnInfo struct {
	Name       string
	PrimaryKey bool
	// Default 列的默认值表达式（SQL 文本），为空表示没有默认值
	Default string
}

// ColumnSet 从存储实时解析得到的列集合，构造后只读
type ColumnSet struct {
	columns []ColumnInfo
	index   map[string]int
}

// NewColumnSet 创建列集合，重复列名以第一次出现为准
func NewColumnSet(columns []ColumnInfo) *ColumnSet {
	cs := &ColumnSet{
		columns: make([]ColumnInfo, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, ok := cs.index[c.Name]; ok {
			continue
		}
		cs.index[c.Name] = len(cs.columns)
		cs.columns = append(cs.columns, c)
	}
	return cs
}

// Len 列数量
func (cs *ColumnSet) Len() int {
	return len(cs.columns)
}

// Has 检查是否包含指定列
func (cs *ColumnSet) Has(name string) bool {
	_, ok := cs.index[name]
	return ok
}

// Column 获取列元数据
func (cs *ColumnSet) Column(name string) (ColumnInfo, bool) {
	i, ok := cs.index[name]
	if !ok {
		return ColumnInfo{}, false
	}
	return cs.columns[i], true
}

// IsPrimaryKey 检查列是否属于主键
func (cs *ColumnSet) IsPrimaryKey(name string) bool {
	c, ok := cs.Column(name)
	return ok && c.PrimaryKey
}

// Names 按表定义顺序返回列名
func (cs *ColumnSet) Names() []string {
	names := make([]string, len(cs.columns))
	for i, c := range cs.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeys 按表定义顺序返回主键列名
func (cs *ColumnSet) PrimaryKeys() []string {
	var keys []string
	for _, c := range cs.columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// String 字符串表示
func (cs *ColumnSet) String() string {
	return "ColumnSet{" + strings.Join(cs.Names(), ", ") + "}"
}

// AuditColumns 审计列名。表中不存在的列在写入时被跳过
type AuditColumns struct {
	CreatedBy string
	UpdatedBy string
	UpdatedAt string
}

// DefaultAuditColumns 默认审计列名
var DefaultAuditColumns = AuditColumns{
	CreatedBy: "created_by",
	UpdatedBy: "updated_by",
	UpdatedAt: "updated_at",
}

// auditPresence 审计列在目标表中的存在情况
type auditPresence struct {
	createdBy bool
	updatedBy bool
	updatedAt bool
}

func detectAudit(cs *ColumnSet, ac AuditColumns) auditPresence {
	return auditPresence{
		createdBy: ac.CreatedBy != "" && cs.Has(ac.CreatedBy),
		updatedBy: ac.UpdatedBy != "" && cs.Has(ac.UpdatedBy),
		updatedAt: ac.UpdatedAt != "" && cs.Has(ac.UpdatedAt),
	}
}

// Field 记录中的一个 (列名, 值)
type Field struct {
	Name  string
	Value Value
}

// Record 一行待写入的数据，字段有序；同名字段以最后一次为准
type Record []Field

// Get 获取字段值
func (r Record) Get(name string) (Value, bool) {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i].Name == name {
			return r[i].Value, true
		}
	}
	return Value{}, false
}

// RecordsFromRows 将列名 + 行元组转换为 Record 列表
func RecordsFromRows(columns []string, rows [][]Value) ([]Record, error) {
	records := make([]Record, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, invalidArgumentf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		rec := make(Record, len(columns))
		for j, col := range columns {
			rec[j] = Field{Name: col, Value: row[j]}
		}
		records[i] = rec
	}
	return records, nil
}
