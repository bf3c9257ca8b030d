package gamedb

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ps2cfg/internal/pkg"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleTSV = "SLUS_123.45\tSLUS-12345\t0x1A2B3C4D\tTest\tGame\n" +
	"\n" +
	"SCES_500.51\tSCES-50051\t439041101\tOther Game\r\n" +
	"broken line\n"

func openTemp(t *testing.T) *SQLStore {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestSQLStore(t *testing.T) {
	Convey("sqlite 游戏对照表", t, func() {
		ctx := context.Background()
		store := openTemp(t)

		exists, err := store.HasTable(ctx)
		So(err, ShouldBeNil)
		So(exists, ShouldBeFalse)

		res, err := ImportTSV(ctx, store, strings.NewReader(sampleTSV), false, zap.NewNop())
		So(err, ShouldBeNil)
		So(res, ShouldResemble, ImportResult{Rows: 2, Skipped: 1})

		Convey("按 gameID 或 altGameID 查找", func() {
			g, err := store.Find(ctx, "SLUS_123.45", "SLUS_123.45")
			So(err, ShouldBeNil)
			So(g, ShouldNotBeNil)
			So(g.Name, ShouldEqual, "Test Game")

			g, err = store.Find(ctx, "SCES-50051", "SCES-50051")
			So(err, ShouldBeNil)
			So(g, ShouldNotBeNil)
			So(g.GameID, ShouldEqual, "SCES_500.51")

			g, err = store.Find(ctx, "NOPE", "NOPE")
			So(err, ShouldBeNil)
			So(g, ShouldBeNil)
		})

		Convey("重复导入时更新已有行", func() {
			_, err := ImportTSV(ctx, store, strings.NewReader("SLUS_123.45\tSLUS-12345\t0x1\tRenamed\n"), false, zap.NewNop())
			So(err, ShouldBeNil)
			g, _ := store.Find(ctx, "SLUS_123.45", "")
			So(g.Name, ShouldEqual, "Renamed")
			other, _ := store.Find(ctx, "SCES_500.51", "")
			So(other, ShouldNotBeNil)
		})

		Convey("replace 时先删除旧表", func() {
			_, err := ImportTSV(ctx, store, strings.NewReader("SLES_999.99\t\t0x10\tOnly\n"), true, zap.NewNop())
			So(err, ShouldBeNil)
			old, _ := store.Find(ctx, "SLUS_123.45", "")
			So(old, ShouldBeNil)
		})

		Convey("没有上传记录时返回空列表", func() {
			recent, err := store.RecentUploads(ctx, 10)
			So(err, ShouldBeNil)
			So(recent, ShouldNotBeNil)
			So(recent, ShouldBeEmpty)
		})

		Convey("上传记录", func() {
			rec := UploadRecord{ID: "u-1", FileName: "SLUS_123.45.CONFIG", GameID: "SLUS_123.45", Patches: 2, CreatedAt: time.Now()}
			So(rec.SetSummary(map[string]int{"sections": 2}), ShouldBeNil)
			So(store.RecordUpload(ctx, rec), ShouldBeNil)

			recent, err := store.RecentUploads(ctx, 10)
			So(err, ShouldBeNil)
			So(recent, ShouldHaveLength, 1)
			So(string(recent[0].Summary), ShouldEqual, `{"sections":2}`)
		})
	})
}

func TestResolver(t *testing.T) {
	Convey("hash 解析", t, func() {
		ctx := context.Background()
		store := openTemp(t)
		_, err := ImportTSV(ctx, store, strings.NewReader(sampleTSV+"SLPM_000.01\t\tzzz\tBad Hash\n"), false, zap.NewNop())
		So(err, ShouldBeNil)

		core, logs := observer.New(zap.WarnLevel)
		r := NewResolver(store, zap.New(core))

		info, err := r.Lookup(ctx, "SLUS_123.45")
		So(err, ShouldBeNil)
		So(info.Resolved(), ShouldBeTrue)
		So(info.FormattedHash(), ShouldEqual, "2B 3C 4D")

		info, err = r.Lookup(ctx, "SCES_500.51")
		So(err, ShouldBeNil)
		So(*info.Hash, ShouldEqual, uint64(439041101))

		info, err = r.Lookup(ctx, "SLPM_000.01")
		So(err, ShouldBeNil)
		So(info.Resolved(), ShouldBeFalse)
		So(info.Name, ShouldEqual, "Bad Hash")

		info, err = r.Lookup(ctx, "MISSING")
		So(err, ShouldBeNil)
		So(info.Resolved(), ShouldBeFalse)
		So(info.FormattedHash(), ShouldEqual, "")
		So(logs.Len(), ShouldEqual, 2)
	})
}

func TestGameIDFromFilename(t *testing.T) {
	Convey("文件名去掉 .CONFIG", t, func() {
		So(GameIDFromFilename("SLUS_123.45.CONFIG"), ShouldEqual, "SLUS_123.45")
		So(GameIDFromFilename(".CONFIG"), ShouldEqual, "")
		So(GameIDFromFilename("a"), ShouldEqual, "")
	})
}

func TestOpenUnknownBackend(t *testing.T) {
	Convey("不支持的后端", t, func() {
		_, err := Open(context.Background(), pkg.GameDBConfig{Type: "oracle"})
		So(errors.Is(err, ErrUnknownBackend), ShouldBeTrue)
	})
}

func TestParseTSVNameTabs(t *testing.T) {
	Convey("名称中的多个制表符合并为空格", t, func() {
		games, skipped, err := ParseTSV(strings.NewReader("SLUS_1\tSLUS-1\t0x1\tA\tB\tC\n"))
		So(err, ShouldBeNil)
		So(skipped, ShouldEqual, 0)
		So(games, ShouldHaveLength, 1)
		So(games[0].Name, ShouldEqual, "A B C")
	})
}
