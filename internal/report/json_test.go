package report

import (
	"encoding/json"
	"testing"

	"ps2cfg/internal/netemu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sample = []byte{
	0x3D, 0, 0, 0, 0x05, 0, 0, 0, 0, 0,
	0x0A, 0, 0, 0, 0x01, 0, 0, 0,
	0x10, 0, 0, 0, 0x11, 0, 0, 0, 0x12, 0, 0, 0,
}

func TestSectionsDocument(t *testing.T) {
	d := netemu.NewDecoder(netemu.MustCatalog(), zap.NewNop())
	sections, stats := d.Sections(sample)

	doc := Sections(d.Catalog(), "SLUS_123.45", sections, stats)
	require.Len(t, doc.Sections, 2)

	first := doc.Sections[0]
	assert.Equal(t, "0x00000006", first.EndOffset)
	require.Len(t, first.Commands, 1)
	assert.Equal(t, "0x3D", first.Commands[0].Command)
	assert.Equal(t, "REVISION", first.Commands[0].Name)
	assert.Equal(t, "0x00000000", first.Commands[0].FoundAtOffset)

	patch := doc.Sections[1].Commands[0]
	assert.Equal(t, "0x0A", patch.Command)
	assert.Equal(t, "0x0000000A", patch.FoundAtOffset)
	assert.Equal(t, 20, patch.Length)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"foundAtOffset":"0x0000000A"`)
	assert.Contains(t, string(raw), `"gameId":"SLUS_123.45"`)
	assert.Contains(t, string(raw), `"sections":2`)
}

func TestSectionsText(t *testing.T) {
	d := netemu.NewDecoder(netemu.MustCatalog(), zap.NewNop())
	sections, _ := d.Sections(sample)

	text := SectionsText(d.Catalog(), sections)
	assert.Contains(t, text, "Section 1 (end 0x00000006):")
	assert.Contains(t, text, "0x0A")
	assert.Contains(t, text, "Section 2")
}
