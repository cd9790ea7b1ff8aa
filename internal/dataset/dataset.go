package dataset

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Type 是列的类型标签。
type Type string

const (
	Numeric     Type = "numeric"
	Categorical Type = "categorical"
	Other       Type = "other"
)

const statsCacheSize = 256

// Column 为一列数据。Dataset 加载后只读。
type Column struct {
	Name string
	Type Type

	raw     []string
	missing []bool
	// numbers 仅在 Numeric 列上填充，缺失值为 NaN。
	numbers []float64
	nMiss   int
}

// Len 返回行数。
func (c *Column) Len() int { return len(c.raw) }

// Missing 返回缺失值个数。
func (c *Column) Missing() int { return c.nMiss }

// Value 返回第 i 行的原始文本；缺失时 ok 为 false。
func (c *Column) Value(i int) (string, bool) {
	if c.missing[i] {
		return "", false
	}
	return c.raw[i], true
}

// Float 返回第 i 行的数值；非数值列或缺失时 ok 为 false。
func (c *Column) Float(i int) (float64, bool) {
	if c.numbers == nil || c.missing[i] {
		return math.NaN(), false
	}
	return c.numbers[i], true
}

// Floats 返回所有非缺失的数值（按行序）。
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.numbers))
	for i, v := range c.numbers {
		if !c.missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Dataset 是加载后的表格数据。加载成功后不再修改，可并发读取。
type Dataset struct {
	Name string
	Path string

	columns []*Column
	index   map[string]int
	rows    int

	stats  *lru.Cache[string, Stats]
	counts *lru.Cache[string, []ValueCount]
}

// New 由表头和记录构造数据集。短记录补缺失值，长记录报错。
func New(name string, header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("dataset %s: no columns", name)
	}
	ds := &Dataset{
		Name:  name,
		index: make(map[string]int, len(header)),
		rows:  len(records),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := ds.index[h]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate column %q", name, h)
		}
		ds.index[h] = i
		ds.columns = append(ds.columns, &Column{
			Name:    h,
			raw:     make([]string, len(records)),
			missing: make([]bool, len(records)),
		})
	}
	for r, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("dataset %s: row %d has %d fields, expected %d", name, r+1, len(rec), len(header))
		}
		for i, col := range ds.columns {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			col.raw[r] = v
			if isMissing(v) {
				col.missing[r] = true
				col.nMiss++
			}
		}
	}
	for _, col := range ds.columns {
		inferType(col)
	}

	var err error
	if ds.stats, err = lru.New[string, Stats](statsCacheSize); err != nil {
		return nil, err
	}
	if ds.counts, err = lru.New[string, []ValueCount](statsCacheSize); err != nil {
		return nil, err
	}
	return ds, nil
}

func (d *Dataset) Rows() int { return d.rows }
func (d *Dataset) Cols() int { return len(d.columns) }

// Columns 按表头顺序返回所有列。
func (d *Dataset) Columns() []*Column { return d.columns }

func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// ColumnsOf 按表头顺序返回给定类型的列名。
func (d *Dataset) ColumnsOf(t Type) []string {
	var out []string
	for _, c := range d.columns {
		if c.Type == t {
			out = append(out, c.Name)
		}
	}
	return out
}

func (d *Dataset) NumericColumns() []string     { return d.ColumnsOf(Numeric) }
func (d *Dataset) CategoricalColumns() []string { return d.ColumnsOf(Categorical) }

// Context 生成当前数据集的上下文快照。
func (d *Dataset) Context() *Context {
	c := &Context{
		Filename: d.Name,
		Rows:     d.rows,
		Cols:     len(d.columns),
		Columns:  d.ColumnNames(),
		Types:    make(map[string]Type, len(d.columns)),
		Missing:  make(map[string]int, len(d.columns)),
	}
	for _, col := range d.columns {
		c.Types[col.Name] = col.Type
		c.Missing[col.Name] = col.nMiss
	}
	return c
}

// Suggest 返回与 name 最接近的列名（最多 3 个），用于 "column not found" 提示。
func (d *Dataset) Suggest(name string) []string {
	type cand struct {
		name string
		dist int
	}
	lower := strings.ToLower(name)
	var cands []cand
	for _, c := range d.columns {
		cl := strings.ToLower(c.Name)
		if cl == lower {
			return []string{c.Name}
		}
		dist := levenshtein.Distance(lower, cl, nil)
		limit := len([]rune(cl)) / 3
		if limit < 2 {
			limit = 2
		}
		if dist <= limit || strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			cands = append(cands, cand{c.Name, dist})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	var out []string
	for i := 0; i < len(cands) && i < 3; i++ {
		out = append(out, cands[i].name)
	}
	return out
}

// MemoryUsage 估算数据集在内存中的字节数（数值列 8 字节/值，其它按字符串长度加对象开销）。
func (d *Dataset) MemoryUsage() uint64 {
	const objectOverhead = 49
	total := uint64(128)
	for _, c := range d.columns {
		if c.Type == Numeric {
			total += uint64(8 * len(c.raw))
			continue
		}
		for _, v := range c.raw {
			total += objectOverhead + uint64(len(v))
		}
	}
	return total
}

// DuplicateRows 返回与之前某一行完全相同的行数。
func (d *Dataset) DuplicateRows() int {
	seen := make(map[string]struct{}, d.rows)
	dups := 0
	var b strings.Builder
	for r := 0; r < d.rows; r++ {
		b.Reset()
		for _, c := range d.columns {
			if c.missing[r] {
				b.WriteString("\x00")
			} else {
				b.WriteString(c.raw[r])
			}
			b.WriteByte(0x1f)
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

func baseName(path string) string {
	return filepath.Base(path)
}
