package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"ps2cfg/internal/artifact"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/notify"
	"ps2cfg/internal/pkg"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var revisionThenPatch = []byte{
	0x3D, 0, 0, 0, 0x05, 0, 0, 0, 0, 0,
	0x0A, 0, 0, 0, 0x01, 0, 0, 0,
	0x10, 0, 0, 0, 0x11, 0, 0, 0, 0x12, 0, 0, 0,
}

type fakeLookup struct {
	mock.Mock
}

func (f *fakeLookup) Lookup(ctx context.Context, gameID string) (gamedb.GameHashInfo, error) {
	args := f.Called(ctx, gameID)
	return args.Get(0).(gamedb.GameHashInfo), args.Error(1)
}

type fakeRecorder struct {
	records []gamedb.UploadRecord
}

func (f *fakeRecorder) RecordUpload(_ context.Context, rec gamedb.UploadRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestService(t *testing.T, lookup gamedb.Lookup, rec UploadRecorder) *PatchService {
	return New(Deps{
		Decoder:  netemu.NewDecoder(netemu.MustCatalog(), zap.NewNop()),
		Lookup:   lookup,
		Recorder: rec,
		Writer:   artifact.NewWriter(t.TempDir()),
		Metrics:  pkg.NewMetrics(),
		Config:   pkg.DecoderConfig{MaxBufferBytes: 1024, MaxPatches: 31},
	})
}

func TestProcessFile(t *testing.T) {
	Convey("处理上传的配置文件", t, func() {
		hash := uint64(0x1A2B3C4D)
		lookup := &fakeLookup{}
		lookup.On("Lookup", mock.Anything, "SLUS_123.45").
			Return(gamedb.GameHashInfo{GameID: "SLUS_123.45", Hash: &hash, Name: "Test Game"}, nil)
		rec := &fakeRecorder{}
		s := newTestService(t, lookup, rec)

		Convey("legacy 策略生成 zip 与记录", func() {
			res, err := s.ProcessFile(context.Background(), "SLUS_123.45.CONFIG", revisionThenPatch, StrategyLegacy)
			So(err, ShouldBeNil)
			So(res.GameID, ShouldEqual, "SLUS_123.45")
			So(res.Hash, ShouldEqual, "2B 3C 4D")
			So(res.Resolved, ShouldBeTrue)
			So(res.Patches, ShouldEqual, 1)
			So(res.DownloadName, ShouldEqual, "SLUS_123.45.CONFIG.zip")

			_, err = os.Stat(res.Bundle.ZipPath)
			So(err, ShouldBeNil)
			bin, err := os.ReadFile(res.Bundle.BinaryPath)
			So(err, ShouldBeNil)
			// 3 字节前缀、3 字节 hash、32 字节头部，再加一条 24 字节的 0x2C 记录
			So(len(bin), ShouldEqual, 3+3+32+24)

			So(rec.records, ShouldHaveLength, 1)
			So(rec.records[0].ID, ShouldEqual, res.ID)
			lookup.AssertExpectations(t)
		})

		Convey("catalog 策略给出同样的补丁", func() {
			res, err := s.ProcessFile(context.Background(), "SLUS_123.45.CONFIG", revisionThenPatch, StrategyCatalog)
			So(err, ShouldBeNil)
			So(res.Patches, ShouldEqual, 1)
			So(res.Stats.Sections, ShouldEqual, 2)
			So(res.Report.Patches[0].Big.ReplaceOpcode, ShouldEqual, "00000012")
		})

		Convey("空缓冲区被拒绝", func() {
			_, err := s.ProcessFile(context.Background(), "SLUS_123.45.CONFIG", nil, StrategyLegacy)
			So(errors.Is(err, netemu.ErrEmptyBuffer), ShouldBeTrue)
		})

		Convey("超过上限的缓冲区被拒绝", func() {
			_, err := s.ProcessFile(context.Background(), "SLUS_123.45.CONFIG", make([]byte, 2048), StrategyLegacy)
			So(errors.Is(err, netemu.ErrBufferTooLarge), ShouldBeTrue)
		})
	})
}

func TestLookupFailureKeepsReport(t *testing.T) {
	Convey("hash 查询失败时报告继续生成", t, func() {
		lookup := &fakeLookup{}
		lookup.On("Lookup", mock.Anything, mock.Anything).Return(gamedb.GameHashInfo{}, errors.New("db closed"))
		s := newTestService(t, lookup, nil)

		entries, err := s.BuildJSON(context.Background(), "SCES_500.51.CONFIG", revisionThenPatch, StrategyLegacy)
		So(err, ShouldBeNil)
		So(entries, ShouldHaveLength, 1)
		So(entries[0].HashGameCode, ShouldEqual, "unresolved")
		So(entries[0].GameTitle, ShouldEqual, "SCES_500.51.CONFIG")
	})
}

func TestDecode(t *testing.T) {
	Convey("段解码与过滤", t, func() {
		s := newTestService(t, nil, nil)

		doc, err := s.Decode(context.Background(), "SLUS_123.45", revisionThenPatch, "")
		So(err, ShouldBeNil)
		So(doc.Sections, ShouldHaveLength, 2)

		doc, err = s.Decode(context.Background(), "SLUS_123.45", revisionThenPatch, `Name == "REVISION"`)
		So(err, ShouldBeNil)
		So(doc.Sections, ShouldHaveLength, 1)
		So(doc.Filter, ShouldEqual, `Name == "REVISION"`)

		doc, err = s.Decode(context.Background(), "", []byte{0, 0, 0, 0}, "")
		So(err, ShouldBeNil)
		So(doc.Sections, ShouldBeEmpty)

		_, err = s.Decode(context.Background(), "", revisionThenPatch, "Opcode +")
		So(err, ShouldNotBeNil)
	})
}

func TestParseStrategy(t *testing.T) {
	Convey("策略名称", t, func() {
		st, err := ParseStrategy("")
		So(err, ShouldBeNil)
		So(st, ShouldEqual, StrategyLegacy)
		st, err = ParseStrategy(" Catalog ")
		So(err, ShouldBeNil)
		So(st, ShouldEqual, StrategyCatalog)
		_, err = ParseStrategy("magic")
		So(errors.Is(err, ErrUnknownStrategy), ShouldBeTrue)
	})
}

func TestNotifyOnProcess(t *testing.T) {
	Convey("处理完成后发布事件", t, func() {
		s := newTestService(t, nil, nil)
		pub := &capturePublisher{events: make(chan notify.Event, 1)}
		s.Hub = notify.NewHubWith(zap.NewNop(), pub)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Hub.Start(ctx)

		_, err := s.ProcessFile(ctx, "SLUS_123.45.CONFIG", revisionThenPatch, StrategyCatalog)
		So(err, ShouldBeNil)
		ev := <-pub.events
		So(ev.GameID, ShouldEqual, "SLUS_123.45")
		So(ev.Patches, ShouldEqual, 1)
		So(ev.Sections, ShouldEqual, 2)
	})
}

type capturePublisher struct {
	events chan notify.Event
}

func (c *capturePublisher) GetType() string { return "capture" }
func (c *capturePublisher) Publish(_ context.Context, ev notify.Event) error {
	c.events <- ev
	return nil
}
func (c *capturePublisher) Close() error { return nil }
