package report

import (
	"fmt"
	"strings"

	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
)

// DefaultMaxPatches 单个报告最多输出的补丁数
const DefaultMaxPatches = 31

const separator = "//-----------------------------------"

// UnresolvedHash 未查到 hash 时在文本中显示的内容
const UnresolvedHash = "unresolved"

// unresolvedHashBytes 未查到 hash 时写入二进制头部的占位
const unresolvedHashBytes = "00 00 00"

// Patch 报告中的一条补丁，同时保留两种字节序
type Patch struct {
	Occurrence int // 所属 0x0A 出现的序号，从 1 开始
	Index      int // 在所属出现内的序号，从 1 开始
	Little     netemu.PatchRecord
	Big        netemu.PatchRecord
}

// Report 一个游戏配置的补丁报告
type Report struct {
	Title   string
	Game    gamedb.GameHashInfo
	Groups  []netemu.PatchOccurrenceGroup
	Patches []Patch
	// Total 截断前的补丁总数
	Total int
}

// Build 按出现顺序收集补丁，超过 maxPatches 的部分被丢弃
func Build(title string, game gamedb.GameHashInfo, groups []netemu.PatchOccurrenceGroup, maxPatches int) *Report {
	if maxPatches <= 0 {
		maxPatches = DefaultMaxPatches
	}
	r := &Report{Title: title, Game: game, Groups: groups}
	for _, g := range groups {
		for i, rec := range g.Records {
			r.Total++
			if len(r.Patches) >= maxPatches {
				continue
			}
			r.Patches = append(r.Patches, Patch{
				Occurrence: g.Index,
				Index:      i + 1,
				Little:     rec,
				Big:        rec.BigEndian(),
			})
		}
	}
	return r
}

// Truncated 是否有补丁因数量上限被丢弃
func (r *Report) Truncated() bool { return r.Total > len(r.Patches) }

// hashText 注释中显示的 hash
func (r *Report) hashText() string {
	if !r.Game.Resolved() {
		return UnresolvedHash
	}
	return r.Game.FormattedHash()
}

// hashBytes 二进制头部中的 hash 字节
func (r *Report) hashBytes() string {
	if !r.Game.Resolved() {
		return unresolvedHashBytes
	}
	return r.Game.FormattedHash()
}

func (r *Report) patchesOf(occurrence int) []Patch {
	var out []Patch
	for _, p := range r.Patches {
		if p.Occurrence == occurrence {
			out = append(out, p)
		}
	}
	return out
}

func writeRecord(b *strings.Builder, title string, rec netemu.PatchRecord) {
	fmt.Fprintf(b, "    %s:\n", title)
	fmt.Fprintf(b, "    Offset: %s\n", rec.Offset)
	fmt.Fprintf(b, "    Original Opcode: %s\n", rec.OriginalOpcode)
	fmt.Fprintf(b, "    Replace Opcode: %s\n", rec.ReplaceOpcode)
}

// Extracted 补丁明细：每个 0x0A 出现及其补丁的两种字节序
func (r *Report) Extracted() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extracted Patches: %s\n\n", r.Title)
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "%s:\n\n", g.Label())
		for _, p := range r.patchesOf(g.Index) {
			fmt.Fprintf(&b, "  Patch: %d\n", p.Index)
			writeRecord(&b, "Little Endian", p.Little)
			b.WriteString("\n")
			writeRecord(&b, "Big Endian", p.Big)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// PnachLine 单条补丁的 PNACH 行
func PnachLine(p Patch) string {
	return fmt.Sprintf("patch=1,EE,%s,word,%s", p.Big.Offset, p.Big.ReplaceOpcode)
}

// Pnach PNACH 段
func (r *Report) Pnach() string {
	var b strings.Builder
	b.WriteString(separator + "\n\n")
	b.WriteString("// NetEmu to PNACH:\n")
	fmt.Fprintf(&b, "// Game Title: %s\n\n", r.Title)
	for _, p := range r.Patches {
		b.WriteString(PnachLine(p))
		b.WriteString("\n")
	}
	return b.String()
}

// HeaderLine 0x2C 命令的二进制头部 (十六进制文本)，计数为实际输出的补丁数
func (r *Report) HeaderLine() string {
	return fmt.Sprintf(
		"00 00 00 %s 00 34 11 78 00 00 00 01 00 00 00 2C 00 00 00 00 00 00 00 00 00 34 11 90 00 00 00 %02X 00 00 00 00",
		r.hashBytes(), len(r.Patches))
}

// ModePatchLine 单条补丁对应的 0x2C 记录 (十六进制文本)
func ModePatchLine(p Patch) string {
	return fmt.Sprintf("%s 00000000 %s 00000000 %s 00000000", p.Big.Offset, p.Big.OriginalOpcode, p.Big.ReplaceOpcode)
}

// HexStream 写入 .bin 的十六进制文本：头部加每条补丁一行
func (r *Report) HexStream() string {
	var b strings.Builder
	b.WriteString(r.HeaderLine())
	b.WriteString("\n")
	for _, p := range r.Patches {
		b.WriteString(ModePatchLine(p))
		b.WriteString("\n")
	}
	return b.String()
}

// GxEmu 0x2C 段
func (r *Report) GxEmu() string {
	var b strings.Builder
	b.WriteString(separator + "\n\n")
	b.WriteString("// NetEmu to GxEmu (0x2C Command):\n")
	fmt.Fprintf(&b, "// Game Title: %s -> Hash: %s\n\n", r.Title, r.hashText())
	b.WriteString(r.HexStream())
	return b.String()
}

// Text 完整的文本报告
func (r *Report) Text() string {
	return r.Extracted() + r.Pnach() + "\n" + r.GxEmu()
}
