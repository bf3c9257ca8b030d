package report

import (
	"fmt"

	"ps2cfg/internal/netemu"
)

// PatchValues 单条补丁的 JSON 值
type PatchValues struct {
	Occurrences string         `json:"Occurrences"`
	Patches     PatchJSONField `json:"Patches"`
}

// PatchJSONField 存储字节序的补丁字段
type PatchJSONField struct {
	Offset         string `json:"Offset"`
	OriginalOpcode string `json:"OriginalOpcode"`
	ReplaceOpcode  string `json:"ReplaceOpcode"`
}

type PatchInfos struct {
	Values PatchValues `json:"Values"`
}

// PatchEntry /api/v1/patches 返回的单条补丁
type PatchEntry struct {
	GameTitle    string     `json:"GameTitle"`
	HashGameCode string     `json:"HashGameCode"`
	Infos        PatchInfos `json:"Infos"`
}

// Entries 以 JSON 形式列出报告中的补丁，Occurrences 中的序号是补丁在报告内的全局序号
func (r *Report) Entries() []PatchEntry {
	entries := make([]PatchEntry, 0, len(r.Patches))
	for i, p := range r.Patches {
		entries = append(entries, PatchEntry{
			GameTitle:    r.Title,
			HashGameCode: r.hashText(),
			Infos: PatchInfos{Values: PatchValues{
				Occurrences: fmt.Sprintf("%d -> (0x%02X) --> (0x%02X)", i+1, netemu.OpcodeEEPatch, netemu.OpcodeModePatch),
				Patches: PatchJSONField{
					Offset:         p.Little.Offset,
					OriginalOpcode: p.Little.OriginalOpcode,
					ReplaceOpcode:  p.Little.ReplaceOpcode,
				},
			}},
		})
	}
	return entries
}

// CommandDoc 一次命令出现
type CommandDoc struct {
	Command       string         `json:"command"`
	Name          string         `json:"name"`
	FoundAtOffset string         `json:"foundAtOffset"`
	Length        int            `json:"length"`
	Args          map[string]any `json:"args"`
}

// SectionDoc 一个配置段
type SectionDoc struct {
	Index     int          `json:"index"`
	EndOffset string       `json:"endOffset"`
	Commands  []CommandDoc `json:"commands"`
}

// SectionsDocument /api/v1/decode 和 cli decode 的输出
type SectionsDocument struct {
	GameID   string       `json:"gameId,omitempty"`
	Filter   string       `json:"filter,omitempty"`
	Stats    netemu.Stats `json:"stats"`
	Sections []SectionDoc `json:"sections"`
}

// Sections 把段列表转为 JSON 文档
func Sections(c *netemu.Catalog, gameID string, sections []netemu.Section, stats netemu.Stats) SectionsDocument {
	doc := SectionsDocument{GameID: gameID, Stats: stats, Sections: make([]SectionDoc, 0, len(sections))}
	for i, s := range sections {
		sd := SectionDoc{
			Index:     i + 1,
			EndOffset: netemu.Hex(uint64(s.EndOffset), 4),
			Commands:  make([]CommandDoc, 0, len(s.Occurrences)),
		}
		for _, occ := range s.Occurrences {
			sd.Commands = append(sd.Commands, CommandDoc{
				Command:       netemu.Hex(uint64(occ.Opcode), 1),
				Name:          c.Name(occ.Opcode),
				FoundAtOffset: netemu.Hex(uint64(occ.Offset), 4),
				Length:        occ.Length,
				Args:          occ.Params.Args(),
			})
		}
		doc.Sections = append(doc.Sections, sd)
	}
	return doc
}
