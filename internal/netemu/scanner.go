package netemu

import (
	"iter"

	"go.uber.org/zap"
)

// Candidate 扫描得到的一个候选位置。Boundary 为 true 时表示四个连续零字节，
// 只作为段边界信号，不会被解码。
type Candidate struct {
	Opcode   byte
	Offset   int
	Boundary bool
}

// isCommandWord 命令字以 32 位小端存放：首字节为 opcode，其后三个字节为零
func isCommandWord(buf []byte, i int) bool {
	return i >= 0 && i+wordSize <= len(buf) && buf[i+1] == 0 && buf[i+2] == 0 && buf[i+3] == 0
}

// IsBoundary 判断 i 处是否为四个连续零字节
func IsBoundary(buf []byte, i int) bool {
	return isCommandWord(buf, i) && buf[i] == 0
}

// Candidates 按偏移升序惰性地产生所有候选位置。
// 不做重叠去重：每个满足条件的位置都会产出。
func (c *Catalog) Candidates(buf []byte) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for i := 0; i+wordSize <= len(buf); i++ {
			if !isCommandWord(buf, i) {
				continue
			}
			op := buf[i]
			var cand Candidate
			switch {
			case op == 0:
				cand = Candidate{Offset: i, Boundary: true}
			case c.Contains(op):
				cand = Candidate{Opcode: op, Offset: i}
			default:
				continue
			}
			if !yield(cand) {
				return
			}
		}
	}
}

// Occurrence 一次解码成功的命令出现
type Occurrence struct {
	Opcode byte
	Offset uint32
	// Length 参数块连同 opcode 字一共消耗的字节数
	Length int
	Params Params
}

// End 参数块之后第一个字节的偏移
func (o Occurrence) End() int { return int(o.Offset) + o.Length }

// Stats 一次扫描的统计
type Stats struct {
	Candidates  int `json:"candidates"`
	Boundaries  int `json:"boundaries"`
	Occurrences int `json:"occurrences"`
	Truncated   int `json:"truncated"`
	Sections    int `json:"sections"`
}

// Scan 解码每一个命令候选位置，不考虑参数块之间的重叠。
// 截断的出现被丢弃并记录日志。
func (d *Decoder) Scan(buf []byte) ([]Occurrence, Stats) {
	var (
		out   []Occurrence
		stats Stats
	)
	for cand := range d.catalog.Candidates(buf) {
		stats.Candidates++
		if cand.Boundary {
			stats.Boundaries++
			continue
		}
		occ, ok := d.occurrence(buf, cand, &stats)
		if ok {
			out = append(out, occ)
		}
	}
	return out, stats
}

func (d *Decoder) occurrence(buf []byte, cand Candidate, stats *Stats) (Occurrence, bool) {
	params, n, err := d.Decode(cand.Opcode, buf, cand.Offset)
	if err != nil {
		stats.Truncated++
		d.log.Debug("丢弃截断的命令", zap.Int("offset", cand.Offset), zap.Error(err))
		return Occurrence{}, false
	}
	stats.Occurrences++
	return Occurrence{Opcode: cand.Opcode, Offset: uint32(cand.Offset), Length: n, Params: params}, true
}
