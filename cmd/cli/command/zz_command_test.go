package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ps2cfg/internal/converter"
	"ps2cfg/internal/report"

	. "github.com/smartystreets/goconvey/convey"
)

var revisionThenPatch = []byte{
	0x3D, 0, 0, 0, 0x05, 0, 0, 0, 0, 0,
	0x0A, 0, 0, 0, 0x01, 0, 0, 0,
	0x10, 0, 0, 0, 0x11, 0, 0, 0, 0x12, 0, 0, 0,
}

// workspace 临时配置目录、配置文件和游戏对照表
func workspace(t *testing.T) (configDir, input, tsv string) {
	dir := t.TempDir()
	configDir = filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := fmt.Sprintf("gamedb:\n  type: sqlite\n  path: %s\n", filepath.Join(dir, "games.db"))
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	input = filepath.Join(dir, "SLUS_123.45.CONFIG")
	if err := os.WriteFile(input, revisionThenPatch, 0o644); err != nil {
		t.Fatal(err)
	}
	tsv = filepath.Join(dir, "games.tsv")
	if err := os.WriteFile(tsv, []byte("SLUS_123.45\tSLUS-12345\t0x1A2B3C4D\tTest Game\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return configDir, input, tsv
}

func execute(args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	Convey("命令行", t, func() {
		configDir, input, tsv := workspace(t)

		Convey("opcodes 列出命令表", func() {
			out, err := execute("opcodes")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "OPCODE")
			So(out, ShouldContainSubstring, "0x0A")
			So(out, ShouldContainSubstring, "0x3D")
		})

		Convey("decode 文本输出", func() {
			out, err := execute("decode", "-c", configDir, "--format", "text", input)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Section 1")
			So(out, ShouldContainSubstring, "Section 2")
		})

		Convey("decode JSON 与过滤", func() {
			out, err := execute("decode", "-c", configDir, "--filter", `Name == "REVISION"`, input)
			So(err, ShouldBeNil)
			var doc report.SectionsDocument
			So(json.Unmarshal([]byte(out), &doc), ShouldBeNil)
			So(doc.GameID, ShouldEqual, "SLUS_123.45")
			So(doc.Sections, ShouldHaveLength, 1)
		})

		Convey("未知的输出格式", func() {
			_, err := execute("decode", "-c", configDir, "--format", "xml", input)
			So(err, ShouldNotBeNil)
		})

		Convey("导入对照表后补丁带 hash", func() {
			out, err := execute("importdb", "-c", configDir, tsv)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "imported 1 rows, skipped 0\n")

			out, err = execute("patches", "-c", configDir, "--format", "json", input)
			So(err, ShouldBeNil)
			var entries []report.PatchEntry
			So(json.Unmarshal([]byte(out), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].HashGameCode, ShouldEqual, "2B 3C 4D")

			out, err = execute("patches", "-c", configDir, input)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "patch=1,EE,00000010,word,00000012")
		})

		Convey("patches --out 生成 zip", func() {
			outDir := t.TempDir()
			out, err := execute("patches", "-c", configDir, "--strategy", "catalog", "--out", outDir, input)
			So(err, ShouldBeNil)
			zipPath := filepath.Join(outDir, "SLUS_123.45.CONFIG.zip")
			So(out, ShouldStartWith, zipPath)
			So(out, ShouldContainSubstring, "hash unresolved")
			_, err = os.Stat(zipPath)
			So(err, ShouldBeNil)
		})

		Convey("convert 未配置程序", func() {
			_, err := execute("convert", "-c", configDir)
			So(errors.Is(err, converter.ErrNotConfigured), ShouldBeTrue)
		})
	})
}
