package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Code-trac/aito-dep/utils/randengine"
	"github.com/samber/lo"
)

// MockGenerator 模拟车辆数生成器
// 功能：有预设行时循环返回各行，否则返回[0, maxRandom]内的随机车辆数
// 说明：SetRows等修改与Next可能来自不同goroutine，所有方法均加锁
type MockGenerator struct {
	rows      [][]int
	i         int
	maxRandom int
	generator *randengine.Engine
	mtx       sync.Mutex
}

// NewMockGenerator 创建模拟车辆数生成器
// 参数：rows-预设行（可以为空），maxRandom-随机车辆数上限，seed-随机数种子
func NewMockGenerator(rows [][]int, maxRandom int, seed uint64) *MockGenerator {
	return &MockGenerator{
		rows:      copyRows(rows),
		maxRandom: maxRandom,
		generator: randengine.New(seed),
	}
}

// Next 返回下一行车辆数
// 参数：numLanes-车道数，仅在随机模式下决定返回的长度
func (g *MockGenerator) Next(numLanes int) []int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if len(g.rows) > 0 {
		out := g.rows[g.i%len(g.rows)]
		g.i++
		return append([]int(nil), out...)
	}
	return lo.Times(numLanes, func(_ int) int {
		return g.generator.IntRange(0, g.maxRandom)
	})
}

// Current 最近一次Next返回的行，没有预设行时返回nil
func (g *MockGenerator) Current() []int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if len(g.rows) == 0 {
		return nil
	}
	return append([]int(nil), g.rows[mod(g.i-1, len(g.rows))]...)
}

// Peek 查看之后第offset行（0为下一次Next返回的行），没有预设行时返回nil
func (g *MockGenerator) Peek(offset int) []int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if len(g.rows) == 0 {
		return nil
	}
	return append([]int(nil), g.rows[mod(g.i+offset, len(g.rows))]...)
}

// Reset 回到第一行
func (g *MockGenerator) Reset() {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.i = 0
}

// SetRows 替换预设行并回到第一行
func (g *MockGenerator) SetRows(rows [][]int) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.rows = copyRows(rows)
	g.i = 0
}

// Rows 预设行数
func (g *MockGenerator) Rows() int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return len(g.rows)
}

// SetMaxRandom 修改随机车辆数上限
func (g *MockGenerator) SetMaxRandom(m int) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.maxRandom = m
}

// LoadCSVFile 从CSV文件加载预设行
func (g *MockGenerator) LoadCSVFile(path string, laneCols ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return g.LoadCSV(f, laneCols...)
}

// LoadCSV 从CSV加载预设行
// 功能：读取带表头的CSV，每行转换为逐车道车辆数
// 参数：r-CSV数据，laneCols-指定使用的列名（为空时自动选择）
// 算法说明：
// 1. 未指定列时，使用所有以"lane"开头（不区分大小写）的列
// 2. 没有这样的列时，使用所有值均为数字的列
// 3. 数值向零取整
func (g *MockGenerator) LoadCSV(r io.Reader, laneCols ...string) error {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return errors.New("empty csv")
	}
	header, body := records[0], records[1:]

	var cols []int
	if len(laneCols) > 0 {
		for _, name := range laneCols {
			idx := lo.IndexOf(header, name)
			if idx < 0 {
				return fmt.Errorf("csv column %q not found", name)
			}
			cols = append(cols, idx)
		}
	} else {
		for i, name := range header {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "lane") {
				cols = append(cols, i)
			}
		}
		if len(cols) == 0 {
			for i := range header {
				if lo.EveryBy(body, func(rec []string) bool {
					_, err := parseCount(rec[i])
					return err == nil
				}) {
					cols = append(cols, i)
				}
			}
		}
	}
	if len(cols) == 0 {
		return errors.New("csv has no lane columns")
	}

	rows := make([][]int, 0, len(body))
	for line, rec := range body {
		row := make([]int, len(cols))
		for j, c := range cols {
			v, err := parseCount(rec[c])
			if err != nil {
				return fmt.Errorf("csv line %d column %q: %w", line+2, header[c], err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	g.SetRows(rows)
	return nil
}

func parseCount(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func copyRows(rows [][]int) [][]int {
	return lo.Map(rows, func(r []int, _ int) []int {
		return append([]int(nil), r...)
	})
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
