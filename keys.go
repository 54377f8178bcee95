package upsertsql

// ParseKeyColumns 规范化冲突检测键：接受单个列名或有序列名列表
func ParseKeyColumns(keyColumns any) ([]string, error) {
	var keys []string
	switch k := keyColumns.(type) {
	case string:
		keys = []string{k}
	case []string:
		keys = append(make([]string, 0, len(k)), k...)
	default:
		return nil, invalidArgumentf("key columns should be a list of column names or a single column name, got %T", keyColumns)
	}

	if len(keys) == 0 {
		return nil, invalidArgumentf("key columns cannot be empty")
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for i, k := range keys {
		if k == "" {
			return nil, invalidArgumentf("key column %d is empty", i)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}
