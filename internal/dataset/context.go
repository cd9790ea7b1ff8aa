package dataset

// Context 是数据集的元信息快照，写入 Agent 记忆并用于构造系统提示词。
type Context struct {
	Filename string
	Rows     int
	Cols     int
	// Columns 保持表头顺序。
	Columns []string
	Types   map[string]Type
	Missing map[string]int
}

// ColumnsOf 按表头顺序返回给定类型的列名。
func (c *Context) ColumnsOf(t Type) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, name := range c.Columns {
		if c.Types[name] == t {
			out = append(out, name)
		}
	}
	return out
}

// TotalMissing 返回所有列缺失值之和。
func (c *Context) TotalMissing() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, m := range c.Missing {
		n += m
	}
	return n
}

// Clone 返回深拷贝。
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		Filename: c.Filename,
		Rows:     c.Rows,
		Cols:     c.Cols,
		Columns:  append([]string(nil), c.Columns...),
		Types:    make(map[string]Type, len(c.Types)),
		Missing:  make(map[string]int, len(c.Missing)),
	}
	for k, v := range c.Types {
		out.Types[k] = v
	}
	for k, v := range c.Missing {
		out.Missing[k] = v
	}
	return out
}
