package netemu

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// PatchRecord 一条 EE 补丁，三个字段均为存储字节序 (小端) 的 8 位大写十六进制
type PatchRecord struct {
	Offset         string
	OriginalOpcode string
	ReplaceOpcode  string
}

// BigEndian 返回字节序翻转后的补丁
func (p PatchRecord) BigEndian() PatchRecord {
	return PatchRecord{
		Offset:         mustFlip(p.Offset),
		OriginalOpcode: mustFlip(p.OriginalOpcode),
		ReplaceOpcode:  mustFlip(p.ReplaceOpcode),
	}
}

// 补丁字段由本包按 4 字节生成，长度必然为 8
func mustFlip(s string) string {
	be, err := ToBigEndian(s)
	if err != nil {
		return s
	}
	return be
}

// PatchRecordFromBytes 由 12 字节记录构造补丁
func PatchRecordFromBytes(rec []byte) PatchRecord {
	return PatchRecord{
		Offset:         strings.ToUpper(hex.EncodeToString(rec[0:4])),
		OriginalOpcode: strings.ToUpper(hex.EncodeToString(rec[4:8])),
		ReplaceOpcode:  strings.ToUpper(hex.EncodeToString(rec[8:12])),
	}
}

// PatchRecordFromWords 由已解码的三个字还原出存储字节序的补丁
func PatchRecordFromWords(offset, original, replacement uint32) PatchRecord {
	var rec [12]byte
	binary.LittleEndian.PutUint32(rec[0:], offset)
	binary.LittleEndian.PutUint32(rec[4:], original)
	binary.LittleEndian.PutUint32(rec[8:], replacement)
	return PatchRecordFromBytes(rec[:])
}

// PatchOccurrenceGroup 一次 0x0A 出现及其补丁
type PatchOccurrenceGroup struct {
	Index   int // 从 1 开始
	Offset  int
	Records []PatchRecord
}

// Label 报告中使用的出现标题
func (g PatchOccurrenceGroup) Label() string {
	return fmt.Sprintf("Occurrence: %d (0x%02X)", g.Index, OpcodeEEPatch)
}

const (
	legacyRecordStart = 8
	legacyRecordSize  = 12
)

// IsLegacyPatchCount 旧启发式中可接受的补丁条数
func IsLegacyPatchCount(n int) bool {
	return n >= 1 && n <= 9
}

// legacyPatchCount 旧启发式把 0x0A 之后第 3、4 个字节之和当作补丁条数
func legacyPatchCount(buf []byte, i int) (int, bool) {
	if i+4 >= len(buf) || buf[i] != OpcodeEEPatch {
		return 0, false
	}
	n := int(buf[i+3]) + int(buf[i+4])
	return n, IsLegacyPatchCount(n)
}

// FindLegacyPatchCommand 查找第一个满足旧启发式的 0x0A，找到即停止
func FindLegacyPatchCommand(buf []byte) (offset, count int, ok bool) {
	for i := range buf {
		if n, hit := legacyPatchCount(buf, i); hit {
			return i, n, true
		}
	}
	return -1, 0, false
}

// ExtractPatches 旧的 0x0A 补丁提取路径。只使用缓冲区中第一个命中的位置；
// 放不下的记录被丢弃。没有命中时返回 nil。
func ExtractPatches(buf []byte) []PatchOccurrenceGroup {
	at, count, ok := FindLegacyPatchCommand(buf)
	if !ok {
		return nil
	}
	start := at + legacyRecordStart
	records := make([]PatchRecord, 0, count)
	for i := 0; i < count; i++ {
		rec := start + i*legacyRecordSize
		if !fits(buf, rec, legacyRecordSize) {
			break
		}
		records = append(records, PatchRecordFromBytes(buf[rec:rec+legacyRecordSize]))
	}
	return []PatchOccurrenceGroup{{Index: 1, Offset: at, Records: records}}
}

// PatchGroupsFromSections 由通用解码得到的 0x0A 出现构造补丁分组，
// 与 ExtractPatches 是两种独立的策略
func PatchGroupsFromSections(sections []Section) []PatchOccurrenceGroup {
	var groups []PatchOccurrenceGroup
	for _, occ := range Flatten(sections) {
		if occ.Opcode != OpcodeEEPatch {
			continue
		}
		cr, ok := occ.Params.(CountedRecords)
		if !ok {
			continue
		}
		records := make([]PatchRecord, 0, len(cr.Records))
		for _, r := range cr.Records {
			if len(r) < 3 {
				continue
			}
			records = append(records, PatchRecordFromWords(r[0], r[1], r[2]))
		}
		groups = append(groups, PatchOccurrenceGroup{
			Index:   len(groups) + 1,
			Offset:  int(occ.Offset),
			Records: records,
		})
	}
	return groups
}
