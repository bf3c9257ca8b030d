package netemu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrTruncatedRecord 剩余字节不足以解码已匹配的命令，该次出现被丢弃
	ErrTruncatedRecord = errors.New("truncated record")
	// ErrEmptyBuffer 输入为空，在扫描前拒绝
	ErrEmptyBuffer = errors.New("empty buffer")
	// ErrBufferTooLarge 输入超过允许的最大字节数
	ErrBufferTooLarge = errors.New("buffer too large")
	// ErrNoOccurrences 扫描没有找到任何命令，报告为空而不是失败
	ErrNoOccurrences = errors.New("no occurrences found")
)

const (
	wordSize = 4
	// opcode 字之后紧跟参数块
	paramStart = wordSize
	// 不定长字对最多收集的条数
	maxWordPairs = 256
	// UnknownDescription 未知命令的统一描述
	UnknownDescription = "Unknown command"
)

// Decoder 按命令表解码参数块。命令表在构造时注入，解码过程不修改任何共享状态。
type Decoder struct {
	catalog *Catalog
	log     *zap.Logger
}

// NewDecoder 创建解码器，log 为 nil 时使用 Nop logger
func NewDecoder(catalog *Catalog, log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{catalog: catalog, log: log}
}

// Catalog 返回解码器使用的命令表
func (d *Decoder) Catalog() *Catalog { return d.catalog }

// Decode 解码 offset 处 (opcode 字起始位置) 的命令参数，
// 返回参数与消耗的总字节数 (含 opcode 字)。
func (d *Decoder) Decode(opcode byte, buf []byte, offset int) (Params, int, error) {
	if offset < 0 || offset+wordSize > len(buf) {
		return nil, 0, fmt.Errorf("opcode 0x%02X at 0x%08X: %w", opcode, offset, ErrTruncatedRecord)
	}
	desc, ok := d.catalog.Lookup(opcode)
	if !ok {
		return UnknownParams{Description: UnknownDescription}, wordSize, nil
	}

	field := offset + paramStart
	layout := desc.Layout
	var (
		params Params
		end    int
		err    error
	)
	switch layout.Kind {
	case KindNone:
		params, end = NoParams{Message: layout.Message}, field
	case KindScalar:
		params, end, err = decodeScalars(buf, field, layout)
	case KindFixedWords:
		params, end, err = decodeFixedWords(buf, field, layout.Words)
	case KindCountedRecords:
		params, end, err = decodeCountedRecords(buf, field, layout)
	case KindModePatches:
		params, end, err = decodeModePatches(buf, field, layout.Cap)
	case KindWordPairs:
		params, end = decodeWordPairs(buf, field)
	default:
		return UnknownParams{Description: UnknownDescription}, wordSize, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("opcode 0x%02X (%s) at 0x%08X: %w", opcode, desc.Name, offset, err)
	}
	return params, end - offset, nil
}

func readUint(buf []byte, at, width int) uint64 {
	switch width {
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf[at:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf[at:]))
	default:
		return binary.LittleEndian.Uint64(buf[at:])
	}
}

func readWord(buf []byte, at int) uint32 {
	return binary.LittleEndian.Uint32(buf[at:])
}

// fits 判断 [at, at+n) 是否落在 buf 内
func fits(buf []byte, at, n int) bool {
	return at >= 0 && n >= 0 && at <= len(buf)-n
}

func decodeScalars(buf []byte, at int, layout Layout) (Params, int, error) {
	total := 0
	for _, w := range layout.Widths {
		total += w
	}
	if !fits(buf, at, total) {
		return nil, 0, fmt.Errorf("需要 %d 字节 (cursor: %d, total: %d): %w", total, at, len(buf), ErrTruncatedRecord)
	}
	fields := make([]ScalarField, 0, len(layout.Widths))
	for i, w := range layout.Widths {
		name := fmt.Sprintf("value%d", i)
		if i < len(layout.Fields) {
			name = layout.Fields[i]
		}
		fields = append(fields, ScalarField{Name: name, Width: w, Value: readUint(buf, at, w)})
		at += w
	}
	return Scalars{Fields: fields}, at, nil
}

func decodeFixedWords(buf []byte, at, k int) (Params, int, error) {
	if !fits(buf, at, k*wordSize) {
		return nil, 0, fmt.Errorf("需要 %d 个字 (cursor: %d, total: %d): %w", k, at, len(buf), ErrTruncatedRecord)
	}
	words := make([]uint32, k)
	for i := range words {
		words[i] = readWord(buf, at)
		at += wordSize
	}
	return FixedWords{Words: words}, at, nil
}

// recordLimit 计算实际要解码的条数：声明值先按上限截断，
// 再由缓冲区剩余长度约束，保证不会越界读取
func recordLimit(declared uint32, limit int, remaining, recordSize int) int {
	n := uint64(declared)
	if limit > 0 && n > uint64(limit) {
		n = uint64(limit)
	}
	if fit := uint64(remaining / recordSize); n > fit {
		n = fit
	}
	return int(n)
}

func decodeCountedRecords(buf []byte, at int, layout Layout) (Params, int, error) {
	if !fits(buf, at, wordSize) {
		return nil, 0, fmt.Errorf("缺少计数字 (cursor: %d, total: %d): %w", at, len(buf), ErrTruncatedRecord)
	}
	declared := readWord(buf, at)
	at += wordSize

	words := layout.Words
	if words <= 0 {
		words = 1
	}
	size := words * wordSize
	n := recordLimit(declared, layout.Cap, len(buf)-at, size)
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r := make(Record, words)
		for j := range r {
			r[j] = readWord(buf, at+j*wordSize)
		}
		records = append(records, r)
		at += size
	}
	return CountedRecords{Declared: declared, Fields: layout.Fields, Records: records}, at, nil
}

func decodeModePatches(buf []byte, at, limit int) (Params, int, error) {
	if !fits(buf, at, wordSize) {
		return nil, 0, fmt.Errorf("缺少计数字 (cursor: %d, total: %d): %w", at, len(buf), ErrTruncatedRecord)
	}
	declared := readWord(buf, at)
	at += wordSize

	const size = 3 * wordSize
	n := recordLimit(declared, limit, len(buf)-at, size)
	patches := make([]ModePatch, 0, n)
	for i := 0; i < n; i++ {
		mode, addr := UnpackModeWord(readWord(buf, at))
		patches = append(patches, ModePatch{
			Mode:        mode,
			Address:     addr,
			Original:    readWord(buf, at+wordSize),
			Replacement: readWord(buf, at+2*wordSize),
		})
		at += size
	}
	return ModePatches{Declared: declared, Patches: patches}, at, nil
}

// isPairListTerminator 不定长字对列表的终止条件。
// 格式本身没有声明长度，遇到全零字对即认为列表结束；终止字对不计入参数块，
// 因此它同时会被当作段边界。
func isPairListTerminator(first, second uint32) bool {
	return first == 0 && second == 0
}

func decodeWordPairs(buf []byte, at int) (Params, int) {
	pairs := make([]WordPair, 0)
	for len(pairs) < maxWordPairs && fits(buf, at, 2*wordSize) {
		first := readWord(buf, at)
		second := readWord(buf, at+wordSize)
		if isPairListTerminator(first, second) {
			break
		}
		pairs = append(pairs, WordPair{First: first, Second: second})
		at += 2 * wordSize
	}
	return WordPairs{Pairs: pairs}, at
}
