package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// 常见的缺失值写法，读入时都按缺失处理。
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#NA": {}, "NA/NA": {},
}

var boolTokens = map[string]struct{}{
	"true": {}, "false": {}, "True": {}, "False": {}, "TRUE": {}, "FALSE": {},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load 读取带表头的分隔文本文件。分隔符从表头行推断（逗号、分号或制表符）。
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(baseName(path), f)
	if err != nil {
		return nil, err
	}
	ds.Path = path
	return ds, nil
}

// Read 从 r 读取数据集，name 作为文件名展示。
func Read(name string, r io.Reader) (*Dataset, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	firstLine := peekLine(br)
	if strings.TrimSpace(firstLine) == "" {
		return nil, fmt.Errorf("read dataset %s: empty file or missing header", name)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(firstLine)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset %s header: %w", name, err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", name, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(header) > 1 {
			continue
		}
		records = append(records, rec)
	}
	return New(name, header, records)
}

// peekLine 返回首行内容但不消费输入。
func peekLine(br *bufio.Reader) string {
	buf, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		return strings.TrimSuffix(string(buf[:i]), "\r")
	}
	return string(buf)
}

func detectDelimiter(line string) rune {
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func isMissing(v string) bool {
	_, ok := missingTokens[strings.TrimSpace(v)]
	return ok
}

// inferType 给列打类型标签：全部可解析为浮点数为 numeric，全部是布尔字面量为 other，其余为 categorical。
// 全部缺失的列视为 numeric。
func inferType(c *Column) {
	numbers := make([]float64, len(c.raw))
	numeric, boolean := true, true
	for i, v := range c.raw {
		if c.missing[i] {
			numbers[i] = nan
			continue
		}
		t := strings.TrimSpace(v)
		if _, ok := boolTokens[t]; !ok {
			boolean = false
		}
		if numeric {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				numeric = false
				continue
			}
			numbers[i] = f
		}
	}
	switch {
	case numeric:
		c.Type = Numeric
		c.numbers = numbers
	case boolean:
		c.Type = Other
	default:
		c.Type = Categorical
	}
}
