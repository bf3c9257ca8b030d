package netemu

import "go.uber.org/zap"

// Section 一段连续的命令出现，由零字边界或版本标记 (0x3D) 分隔
type Section struct {
	Occurrences []Occurrence
	// EndOffset 段的结束偏移：边界起点、下一个 0x3D 之前的一个字节，或缓冲区最后一个字节
	EndOffset int
}

// grouper 两个状态：empty (current 为空) 与 accumulating
type grouper struct {
	sections []Section
	current  []Occurrence
}

func (g *grouper) accumulating() bool { return len(g.current) > 0 }

func (g *grouper) flush(end int) {
	if !g.accumulating() {
		return
	}
	g.sections = append(g.sections, Section{Occurrences: g.current, EndOffset: end})
	g.current = nil
}

func (g *grouper) add(occ Occurrence) {
	g.current = append(g.current, occ)
}

// Sections 扫描缓冲区并把命令出现分组。
// 落在上一条已接受命令参数块内部的候选 (命令或零字边界) 会被跳过。
// 空缓冲区返回空列表。
func (d *Decoder) Sections(buf []byte) ([]Section, Stats) {
	var (
		g        grouper
		stats    Stats
		blockEnd int // 上一条已接受命令参数块的结束位置 (不含)
	)
	for cand := range d.catalog.Candidates(buf) {
		stats.Candidates++
		if cand.Offset < blockEnd {
			continue
		}
		if cand.Boundary {
			stats.Boundaries++
			g.flush(cand.Offset)
			continue
		}

		occ, ok := d.occurrence(buf, cand, &stats)
		if !ok {
			continue
		}
		blockEnd = occ.End()
		if occ.Opcode == OpcodeRevision {
			g.flush(cand.Offset - 1)
		}
		g.add(occ)
	}
	g.flush(len(buf) - 1)

	stats.Sections = len(g.sections)
	d.log.Debug("分段完成",
		zap.Int("bytes", len(buf)),
		zap.Int("sections", stats.Sections),
		zap.Int("occurrences", stats.Occurrences),
		zap.Int("truncated", stats.Truncated))
	return g.sections, stats
}

// Flatten 按顺序展开所有段中的命令出现
func Flatten(sections []Section) []Occurrence {
	var out []Occurrence
	for _, s := range sections {
		out = append(out, s.Occurrences...)
	}
	return out
}
