package netemu

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind 参数块的结构形状
type Kind uint8

const (
	KindNone           Kind = iota // 无参数
	KindScalar                     // 1~2 个 2/4/8 字节小端整数
	KindFixedWords                 // 固定 K 个 32 位字
	KindCountedRecords             // 32 位计数 + 定长记录
	KindModePatches                // 32 位计数 + 12 字节位压缩补丁记录
	KindWordPairs                  // 不定长字对，直到终止模式
	KindUnknown                    // 表中不存在的命令
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindScalar:
		return "scalar"
	case KindFixedWords:
		return "fixed-words"
	case KindCountedRecords:
		return "counted-records"
	case KindModePatches:
		return "mode-patches"
	case KindWordPairs:
		return "word-pairs"
	default:
		return "unknown"
	}
}

// Layout 描述某个命令的参数块布局。解码时按 Kind 分支，而不是通过接口分派。
type Layout struct {
	Kind Kind
	// Widths KindScalar 时每个字段的字节宽度 (2|4|8)
	Widths []int
	// Words KindFixedWords 时为字数 K；KindCountedRecords 时为每条记录的字数 (1..3)
	Words int
	// Cap 计数型记录最多解码的条数，0 表示不限制
	Cap int
	// Fields 标量或记录字段的名称
	Fields []string
	// Message KindNone 时的说明文字
	Message string
}

// CommandDescriptor 命令表中的一项
type CommandDescriptor struct {
	Opcode      byte
	Name        string
	Description string
	Layout      Layout
}

const (
	OpcodeEEPatch   byte = 0x0A
	OpcodeWatch     byte = 0x17
	OpcodeModePatch byte = 0x2C
	OpcodeRevision  byte = 0x3D

	// MaxOpcode 合法命令字的上限
	MaxOpcode byte = 0x50
)

var patchFields = []string{"offset", "original", "replacement"}

func scalar(names ...string) func(widths ...int) Layout {
	return func(widths ...int) Layout {
		return Layout{Kind: KindScalar, Widths: widths, Fields: names}
	}
}

func fixed(k int) Layout { return Layout{Kind: KindFixedWords, Words: k} }

func counted(limit int, fields ...string) Layout {
	return Layout{Kind: KindCountedRecords, Words: len(fields), Cap: limit, Fields: fields}
}

func flag(msg string) Layout { return Layout{Kind: KindNone, Message: msg} }

// layouts 与 catalog.yaml 中的条目一一对应
var layouts = map[byte]Layout{
	0x01: scalar("scale")(4),
	0x02: scalar("scale")(4),
	0x03: scalar("scale")(4),
	0x04: scalar("mode", "threshold")(2, 2),
	0x05: scalar("flags")(4),
	0x06: scalar("width", "height")(2, 2),
	0x07: counted(32, "address", "cycles"),
	0x08: flag("MFIFO emulation enabled"),
	0x09: flag("Interlaced output disabled"),
	0x0A: counted(0, patchFields...),
	0x0B: counted(32, patchFields...),
	0x0C: counted(47, "address"),
	0x0D: scalar("size")(4),
	0x0E: scalar("port", "type")(2, 2),
	0x0F: fixed(8),
	0x10: scalar("size")(8),
	0x11: scalar("delay")(4),
	0x12: scalar("speed")(4),
	0x13: flag("MPEG playback skipped"),
	0x14: flag("Sound synchronisation disabled"),
	0x15: counted(32, "address", "value"),
	0x16: scalar("mode")(4),
	0x17: {Kind: KindWordPairs, Fields: []string{"address", "value"}},
	0x18: scalar("rounding", "clamping")(2, 2),
	0x19: scalar("vu0", "vu1")(2, 2),
	0x1A: flag("GS half pixel offset applied"),
	0x1B: flag("Negative FPU division hack enabled"),
	0x1C: fixed(4),
	0x1D: fixed(4),
	0x1E: flag("Disc preload disabled"),
	0x1F: scalar("ports")(4),
	0x20: counted(32, "address"),
	0x21: scalar("offset")(8),
	0x22: scalar("vendor", "product")(2, 2),
	0x23: flag("GS scissor clamped"),
	0x24: fixed(8),
	0x25: scalar("delay")(4),
	0x27: flag("Progressive scan forced"),
	0x28: counted(47, "address"),
	0x2A: scalar("delay")(4),
	0x2C: {Kind: KindModePatches, Words: 3, Cap: 32, Fields: []string{"mode", "address", "original", "replacement"}},
	0x30: flag("Upscale sprite fix enabled"),
	0x33: counted(32, "from", "to"),
	0x35: scalar("numerator", "denominator")(2, 2),
	0x3C: scalar("flags")(4),
	0x3D: scalar("revision")(2),
	0x40: flag("Network adapter enabled"),
	0x44: counted(32, "module"),
	0x48: flag("PAL titles run at 60Hz"),
	0x50: flag("End of configuration"),
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Commands []struct {
		Opcode      string `yaml:"opcode"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"commands"`
}

// Catalog 只读的命令注册表，进程启动时构建一次，之后在各次解码间共享
type Catalog struct {
	entries map[byte]CommandDescriptor
	opcodes []byte
}

// NewCatalog 由内嵌的 catalog.yaml 与 layouts 构建命令表
func NewCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog 解析命令名称表并与参数布局合并，名称与布局必须一一对应
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析命令表失败: %w", err)
	}

	c := &Catalog{entries: make(map[byte]CommandDescriptor, len(file.Commands))}
	for _, cmd := range file.Commands {
		v, err := strconv.ParseUint(cmd.Opcode, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("命令 %s 的 opcode %q 无效: %w", cmd.Name, cmd.Opcode, err)
		}
		op := byte(v)
		if op == 0 || op > MaxOpcode {
			return nil, fmt.Errorf("命令 %s 的 opcode 0x%02X 超出范围", cmd.Name, op)
		}
		if _, dup := c.entries[op]; dup {
			return nil, fmt.Errorf("opcode 0x%02X 重复定义", op)
		}
		layout, ok := layouts[op]
		if !ok {
			return nil, fmt.Errorf("opcode 0x%02X (%s) 没有参数布局", op, cmd.Name)
		}
		c.entries[op] = CommandDescriptor{
			Opcode:      op,
			Name:        cmd.Name,
			Description: cmd.Description,
			Layout:      layout,
		}
		c.opcodes = append(c.opcodes, op)
	}
	for op := range layouts {
		if _, ok := c.entries[op]; !ok {
			return nil, fmt.Errorf("opcode 0x%02X 有参数布局但缺少名称", op)
		}
	}
	sort.Slice(c.opcodes, func(i, j int) bool { return c.opcodes[i] < c.opcodes[j] })
	return c, nil
}

// MustCatalog 同 NewCatalog，失败时 panic；内嵌表有误属于编程错误
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup 按 opcode 查找命令
func (c *Catalog) Lookup(op byte) (CommandDescriptor, bool) {
	d, ok := c.entries[op]
	return d, ok
}

// Contains 判断 opcode 是否在允许列表中
func (c *Catalog) Contains(op byte) bool {
	_, ok := c.entries[op]
	return ok
}

// Opcodes 升序返回全部 opcode
func (c *Catalog) Opcodes() []byte {
	out := make([]byte, len(c.opcodes))
	copy(out, c.opcodes)
	return out
}

// Descriptors 按 opcode 升序返回全部命令
func (c *Catalog) Descriptors() []CommandDescriptor {
	out := make([]CommandDescriptor, 0, len(c.opcodes))
	for _, op := range c.opcodes {
		out = append(out, c.entries[op])
	}
	return out
}

// Name 返回命令名，未知命令返回 "UNKNOWN"
func (c *Catalog) Name(op byte) string {
	if d, ok := c.entries[op]; ok {
		return d.Name
	}
	return "UNKNOWN"
}
