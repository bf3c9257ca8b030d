package netemu

import (
	"fmt"
	"strings"
)

// Params 命令参数的标签联合。只有本包内的类型实现它，
// 调用方用 type switch 区分具体形状。
type Params interface {
	Kind() Kind
	// Args 以十六进制字符串渲染参数，用于 JSON 输出
	Args() map[string]any
	String() string
	sealed()
}

// Hex 以大写、0x 前缀、按字段自然宽度补零的形式渲染整数
func Hex(v uint64, width int) string {
	return fmt.Sprintf("0x%0*X", width*2, v)
}

// NoParams 无参数命令
type NoParams struct {
	Message string
}

func (NoParams) Kind() Kind { return KindNone }
func (p NoParams) Args() map[string]any {
	return map[string]any{"message": p.Message}
}
func (p NoParams) String() string { return p.Message }
func (NoParams) sealed()          {}

// ScalarField 一个小端标量字段
type ScalarField struct {
	Name  string
	Width int // 字节数 2|4|8
	Value uint64
}

// Scalars 1~2 个标量字段
type Scalars struct {
	Fields []ScalarField
}

func (Scalars) Kind() Kind { return KindScalar }
func (p Scalars) Args() map[string]any {
	args := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		args[f.Name] = Hex(f.Value, f.Width)
	}
	return args
}
func (p Scalars) String() string {
	parts := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		parts = append(parts, f.Name+"="+Hex(f.Value, f.Width))
	}
	return strings.Join(parts, " ")
}
func (Scalars) sealed() {}

// FixedWords 固定个数的 32 位字
type FixedWords struct {
	Words []uint32
}

func (FixedWords) Kind() Kind { return KindFixedWords }
func (p FixedWords) Args() map[string]any {
	return map[string]any{"words": hexWords(p.Words)}
}
func (p FixedWords) String() string { return "[" + strings.Join(hexWords(p.Words), " ") + "]" }
func (FixedWords) sealed()          {}

// Record 计数型数组中的一条记录，每个元素为一个 32 位字
type Record []uint32

// CountedRecords 32 位计数前缀的记录数组
type CountedRecords struct {
	// Declared 数据中声明的条数，可能大于实际解码的条数
	Declared uint32
	Fields   []string
	Records  []Record
}

func (CountedRecords) Kind() Kind { return KindCountedRecords }
func (p CountedRecords) Args() map[string]any {
	records := make([]map[string]string, 0, len(p.Records))
	for _, r := range p.Records {
		m := make(map[string]string, len(r))
		for i, w := range r {
			m[p.fieldName(i)] = Hex(uint64(w), 4)
		}
		records = append(records, m)
	}
	return map[string]any{"count": Hex(uint64(p.Declared), 4), "records": records}
}
func (p CountedRecords) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "count=%s", Hex(uint64(p.Declared), 4))
	for _, r := range p.Records {
		b.WriteString(" {")
		for i, w := range r {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(p.fieldName(i) + ":" + Hex(uint64(w), 4))
		}
		b.WriteByte('}')
	}
	return b.String()
}
func (p CountedRecords) fieldName(i int) string {
	if i < len(p.Fields) {
		return p.Fields[i]
	}
	return fmt.Sprintf("word%d", i)
}
func (CountedRecords) sealed() {}

// ModePatch 位压缩的补丁记录：首字高 4 位为模式，低 28 位为地址
type ModePatch struct {
	Mode        uint8
	Address     uint32
	Original    uint32
	Replacement uint32
}

const (
	modeShift   = 28
	addressMask = 0x0FFFFFFF
)

// UnpackModeWord 拆分模式字
func UnpackModeWord(w uint32) (mode uint8, address uint32) {
	return uint8(w >> modeShift), w & addressMask
}

// ModePatches 带模式的补丁记录数组
type ModePatches struct {
	Declared uint32
	Patches  []ModePatch
}

func (ModePatches) Kind() Kind { return KindModePatches }
func (p ModePatches) Args() map[string]any {
	patches := make([]map[string]string, 0, len(p.Patches))
	for _, mp := range p.Patches {
		patches = append(patches, map[string]string{
			"mode":        Hex(uint64(mp.Mode), 1),
			"address":     Hex(uint64(mp.Address), 4),
			"original":    fmt.Sprintf("%08X", mp.Original),
			"replacement": fmt.Sprintf("%08X", mp.Replacement),
		})
	}
	return map[string]any{"count": Hex(uint64(p.Declared), 4), "patches": patches}
}
func (p ModePatches) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "count=%s", Hex(uint64(p.Declared), 4))
	for _, mp := range p.Patches {
		fmt.Fprintf(&b, " {mode:%s address:%s %08X->%08X}",
			Hex(uint64(mp.Mode), 1), Hex(uint64(mp.Address), 4), mp.Original, mp.Replacement)
	}
	return b.String()
}
func (ModePatches) sealed() {}

// WordPair 一对 32 位字
type WordPair struct {
	First  uint32
	Second uint32
}

// WordPairs 不定长的字对列表
type WordPairs struct {
	Pairs []WordPair
}

func (WordPairs) Kind() Kind { return KindWordPairs }
func (p WordPairs) Args() map[string]any {
	pairs := make([][2]string, 0, len(p.Pairs))
	for _, wp := range p.Pairs {
		pairs = append(pairs, [2]string{Hex(uint64(wp.First), 4), Hex(uint64(wp.Second), 4)})
	}
	return map[string]any{"pairs": pairs}
}
func (p WordPairs) String() string {
	parts := make([]string, 0, len(p.Pairs))
	for _, wp := range p.Pairs {
		parts = append(parts, Hex(uint64(wp.First), 4)+"="+Hex(uint64(wp.Second), 4))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
func (WordPairs) sealed() {}

// UnknownParams 表中不存在的命令
type UnknownParams struct {
	Description string
}

func (UnknownParams) Kind() Kind { return KindUnknown }
func (p UnknownParams) Args() map[string]any {
	return map[string]any{"description": p.Description}
}
func (p UnknownParams) String() string { return p.Description }
func (UnknownParams) sealed()          {}

func hexWords(words []uint32) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, Hex(uint64(w), 4))
	}
	return out
}
