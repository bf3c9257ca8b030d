package report

import (
	"fmt"
	"strings"

	"ps2cfg/internal/netemu"
)

// SectionsText 段列表的可读文本，用于命令行输出
func SectionsText(c *netemu.Catalog, sections []netemu.Section) string {
	var b strings.Builder
	for i, s := range sections {
		fmt.Fprintf(&b, "Section %d (end %s):\n", i+1, netemu.Hex(uint64(s.EndOffset), 4))
		for _, occ := range s.Occurrences {
			fmt.Fprintf(&b, "  %s %-18s @ %s  %s\n",
				netemu.Hex(uint64(occ.Opcode), 1), c.Name(occ.Opcode),
				netemu.Hex(uint64(occ.Offset), 4), occ.Params.String())
		}
	}
	return b.String()
}
