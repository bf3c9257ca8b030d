package gamedb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ps2cfg/internal/netemu"
	"ps2cfg/internal/pkg"

	"go.uber.org/zap"
)

// ErrUnknownBackend 配置了不支持的数据库类型
var ErrUnknownBackend = errors.New("unknown gamedb backend")

// Game 游戏 ID 与 hash 对照表中的一行
type Game struct {
	GameID    string `gorm:"column:gameID;primaryKey" bson:"gameID" json:"gameId"`
	AltGameID string `gorm:"column:altGameID;index:idx_altGameID" bson:"altGameID" json:"altGameId"`
	Hash      string `gorm:"column:hash" bson:"hash" json:"hash"`
	Name      string `gorm:"column:name" bson:"name" json:"name"`
}

// TableName gorm 表名
func (Game) TableName() string { return "games" }

// GameHashInfo 按游戏 ID 查到的 hash 信息，Hash 为 nil 表示未找到
type GameHashInfo struct {
	GameID string
	Hash   *uint64
	Name   string
}

// Resolved 是否查到了 hash
func (g GameHashInfo) Resolved() bool { return g.Hash != nil }

// FormattedHash 按字节分组的 hash，未查到时返回空串
func (g GameHashInfo) FormattedHash() string {
	if g.Hash == nil {
		return ""
	}
	return netemu.FormatHash(*g.Hash)
}

// Store 游戏对照表的存储
type Store interface {
	// Find 按 gameID 或 altGameID 查找一行，altGameID 为空时只匹配 gameID。找不到时返回 nil, nil
	Find(ctx context.Context, gameID, altGameID string) (*Game, error)
	Upsert(ctx context.Context, games []Game) error
	HasTable(ctx context.Context) (bool, error)
	DropTable(ctx context.Context) error
	RecordUpload(ctx context.Context, rec UploadRecord) error
	RecentUploads(ctx context.Context, limit int) ([]UploadRecord, error)
	Close(ctx context.Context) error
}

// Lookup 解码报告使用的 hash 查询
type Lookup interface {
	Lookup(ctx context.Context, gameID string) (GameHashInfo, error)
}

// Resolver 基于 Store 的 Lookup 实现
type Resolver struct {
	store Store
	log   *zap.Logger
}

func NewResolver(store Store, log *zap.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Lookup 查询失败或 hash 无法解析时返回未解析的结果，不中断报告生成
func (r *Resolver) Lookup(ctx context.Context, gameID string) (GameHashInfo, error) {
	info := GameHashInfo{GameID: gameID}
	game, err := r.store.Find(ctx, gameID, gameID)
	if err != nil {
		return info, fmt.Errorf("查询游戏 %s 失败: %w", gameID, err)
	}
	if game == nil {
		r.log.Warn("game hash not found", zap.String("gameID", gameID))
		return info, nil
	}
	info.Name = game.Name
	hash, err := netemu.ParseHash(game.Hash)
	if err != nil {
		r.log.Warn("invalid game hash", zap.String("gameID", gameID), zap.String("hash", game.Hash), zap.Error(err))
		return info, nil
	}
	info.Hash = &hash
	return info, nil
}

// configSuffixLen 上传文件名末尾的 ".CONFIG"
const configSuffixLen = 7

// GameIDFromFilename 去掉文件名末尾 7 个字符 (".CONFIG") 得到游戏 ID
func GameIDFromFilename(name string) string {
	name = strings.TrimSpace(name)
	if len(name) <= configSuffixLen {
		return ""
	}
	return name[:len(name)-configSuffixLen]
}

// Open 按配置打开存储
func Open(ctx context.Context, cfg pkg.GameDBConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		store, err = OpenSQLite(cfg.Path)
	case "mysql":
		store, err = OpenMySQL(cfg.URI)
	case "mongo", "mongodb":
		store, err = OpenMongo(ctx, cfg.URI, cfg.Database)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
