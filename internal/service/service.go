package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ps2cfg/internal/artifact"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/notify"
	"ps2cfg/internal/pkg"
	"ps2cfg/internal/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Strategy 0x0A 补丁的提取方式
type Strategy string

const (
	// StrategyLegacy 只取第一个满足启发式的 0x0A
	StrategyLegacy Strategy = "legacy"
	// StrategyCatalog 使用通用解码得到的所有 0x0A 出现
	StrategyCatalog Strategy = "catalog"
)

var ErrUnknownStrategy = errors.New("unknown patch strategy")

// ParseStrategy 空串视为 legacy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyLegacy:
		return StrategyLegacy, nil
	case StrategyCatalog:
		return StrategyCatalog, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
	}
}

// UploadRecorder 保存上传记录，可以为 nil
type UploadRecorder interface {
	RecordUpload(ctx context.Context, rec gamedb.UploadRecord) error
}

// Deps PatchService 的依赖
type Deps struct {
	Decoder  *netemu.Decoder
	Lookup   gamedb.Lookup
	Recorder UploadRecorder
	Writer   *artifact.Writer
	Hub      *notify.Hub
	Metrics  *pkg.Metrics
	Config   pkg.DecoderConfig
	Log      *zap.Logger
}

// PatchService 解码、生成报告和产物
type PatchService struct {
	Deps
}

func New(deps Deps) *PatchService {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = pkg.GetMetrics()
	}
	return &PatchService{Deps: deps}
}

// CheckBuffer 零长度或超过上限的缓冲区在扫描前被拒绝
func (s *PatchService) CheckBuffer(buf []byte) error {
	if len(buf) == 0 {
		return netemu.ErrEmptyBuffer
	}
	if s.Config.MaxBufferBytes > 0 && len(buf) > s.Config.MaxBufferBytes {
		return fmt.Errorf("%w: %d > %d", netemu.ErrBufferTooLarge, len(buf), s.Config.MaxBufferBytes)
	}
	return nil
}

// Filtered 解码为段并应用过滤器，filter 为 expr 表达式，可以为空
func (s *PatchService) Filtered(buf []byte, filter string) ([]netemu.Section, netemu.Stats, error) {
	if err := s.CheckBuffer(buf); err != nil {
		return nil, netemu.Stats{}, err
	}
	f, err := netemu.CompileFilter(filter)
	if err != nil {
		return nil, netemu.Stats{}, err
	}

	start := time.Now()
	sections, stats := s.Decoder.Sections(buf)
	s.Metrics.ObserveDecode("sections", stats.Occurrences, stats.Truncated, time.Since(start))

	kept, err := f.Apply(s.Decoder.Catalog(), sections)
	if err != nil {
		return nil, stats, err
	}
	return kept, stats, nil
}

// Decode 解码为段文档
func (s *PatchService) Decode(ctx context.Context, gameID string, buf []byte, filter string) (report.SectionsDocument, error) {
	sections, stats, err := s.Filtered(buf, filter)
	if err != nil {
		return report.SectionsDocument{}, err
	}
	if stats.Sections == 0 {
		s.Log.Info("no command occurrences found", zap.String("gameID", gameID), zap.Error(netemu.ErrNoOccurrences))
	}
	doc := report.Sections(s.Decoder.Catalog(), gameID, sections, stats)
	doc.Filter = filter
	return doc, nil
}

// Groups 按策略提取 0x0A 补丁分组
func (s *PatchService) Groups(buf []byte, strategy Strategy) ([]netemu.PatchOccurrenceGroup, netemu.Stats) {
	start := time.Now()
	var (
		groups []netemu.PatchOccurrenceGroup
		stats  netemu.Stats
	)
	switch strategy {
	case StrategyCatalog:
		var sections []netemu.Section
		sections, stats = s.Decoder.Sections(buf)
		groups = netemu.PatchGroupsFromSections(sections)
	default:
		groups = netemu.ExtractPatches(buf)
		stats.Occurrences = len(groups)
	}
	s.Metrics.ObserveDecode(string(strategy), stats.Occurrences, stats.Truncated, time.Since(start))
	return groups, stats
}

// lookup 查询失败时继续生成报告，hash 显示为未解析
func (s *PatchService) lookup(ctx context.Context, gameID string) gamedb.GameHashInfo {
	info := gamedb.GameHashInfo{GameID: gameID}
	if s.Lookup == nil || gameID == "" {
		return info
	}
	found, err := s.Lookup.Lookup(ctx, gameID)
	if err != nil {
		s.Log.Warn("hash lookup failed", zap.String("gameID", gameID), zap.Error(err))
		return info
	}
	return found
}

// BuildReport 按上传文件名生成报告，标题为原始文件名
func (s *PatchService) BuildReport(ctx context.Context, fileName string, buf []byte, strategy Strategy) (*report.Report, netemu.Stats, error) {
	if err := s.CheckBuffer(buf); err != nil {
		return nil, netemu.Stats{}, err
	}
	gameID := gamedb.GameIDFromFilename(fileName)
	groups, stats := s.Groups(buf, strategy)
	r := report.Build(fileName, s.lookup(ctx, gameID), groups, s.Config.MaxPatches)
	if r.Truncated() {
		s.Log.Warn("补丁数超过上限，多余部分被丢弃", zap.String("file", fileName), zap.Int("total", r.Total), zap.Int("kept", len(r.Patches)))
	}
	return r, stats, nil
}

// BuildJSON /api/v1/patches 的结果
func (s *PatchService) BuildJSON(ctx context.Context, fileName string, buf []byte, strategy Strategy) ([]report.PatchEntry, error) {
	r, _, err := s.BuildReport(ctx, fileName, buf, strategy)
	if err != nil {
		return nil, err
	}
	return r.Entries(), nil
}

// Result 一次上传处理的结果
type Result struct {
	ID           string          `json:"id"`
	GameID       string          `json:"gameId"`
	Hash         string          `json:"hash"`
	Resolved     bool            `json:"resolved"`
	Patches      int             `json:"patches"`
	Total        int             `json:"total"`
	Stats        netemu.Stats    `json:"stats"`
	DownloadName string          `json:"downloadName"`
	Bundle       artifact.Bundle `json:"-"`
	Report       *report.Report  `json:"-"`
}

// ProcessFile 生成报告文本和 .bin，打包为 <fileName>.zip
func (s *PatchService) ProcessFile(ctx context.Context, fileName string, buf []byte, strategy Strategy) (res *Result, err error) {
	defer func() {
		if err != nil {
			s.Metrics.IncUpload("error")
		} else {
			s.Metrics.IncUpload("ok")
		}
	}()

	r, stats, err := s.BuildReport(ctx, fileName, buf, strategy)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	bundle, err := s.Writer.Write("converted_"+id, fileName, r.Text(), r.HexStream())
	if err != nil {
		return nil, fmt.Errorf("写入产物失败: %w", err)
	}

	res = &Result{
		ID:           id,
		GameID:       r.Game.GameID,
		Hash:         r.Game.FormattedHash(),
		Resolved:     r.Game.Resolved(),
		Patches:      len(r.Patches),
		Total:        r.Total,
		Stats:        stats,
		DownloadName: fileName + ".zip",
		Bundle:       bundle,
		Report:       r,
	}
	s.record(ctx, fileName, strategy, res)
	s.Hub.Notify(notify.Event{
		GameID:      res.GameID,
		Hash:        res.Hash,
		Strategy:    string(strategy),
		Sections:    stats.Sections,
		Occurrences: stats.Occurrences,
		Patches:     res.Patches,
		Ts:          time.Now(),
	})
	s.Log.Info("配置处理完成", zap.String("file", fileName), zap.String("gameID", res.GameID), zap.Int("patches", res.Patches))
	return res, nil
}

func (s *PatchService) record(ctx context.Context, fileName string, strategy Strategy, res *Result) {
	if s.Recorder == nil {
		return
	}
	rec := gamedb.UploadRecord{
		ID:        res.ID,
		FileName:  fileName,
		GameID:    res.GameID,
		Resolved:  res.Resolved,
		Patches:   res.Patches,
		CreatedAt: time.Now(),
	}
	if err := rec.SetSummary(map[string]any{"strategy": strategy, "stats": res.Stats, "total": res.Total}); err != nil {
		s.Log.Warn("序列化上传摘要失败", zap.Error(err))
	}
	if err := s.Recorder.RecordUpload(ctx, rec); err != nil {
		s.Log.Warn("保存上传记录失败", zap.String("id", res.ID), zap.Error(err))
	}
}
