package gamedb

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// upsertBatchSize 导入时每批写入的行数
const upsertBatchSize = 250

// SQLStore 基于 gorm 的存储，支持 sqlite 和 mysql
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLite 打开 sqlite 文件，path 为 ":memory:" 时使用内存库
func OpenSQLite(path string) (*SQLStore, error) {
	return openSQL(sqlite.Open(path))
}

// OpenMySQL 使用 DSN 打开 mysql
func OpenMySQL(dsn string) (*SQLStore, error) {
	return openSQL(mysql.Open(dsn))
}

func openSQL(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("打开游戏数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&UploadRecord{}); err != nil {
		return nil, fmt.Errorf("初始化上传记录表失败: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Find(ctx context.Context, gameID, altGameID string) (*Game, error) {
	var game Game
	q := s.db.WithContext(ctx).Where("gameID = ?", gameID)
	if altGameID != "" {
		q = q.Or("altGameID = ?", altGameID)
	}
	err := q.Take(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game, nil
}

func (s *SQLStore) Upsert(ctx context.Context, games []Game) error {
	if len(games) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&Game{}); err != nil {
		return fmt.Errorf("创建 games 表失败: %w", err)
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gameID"}},
		DoUpdates: clause.AssignmentColumns([]string{"altGameID", "hash", "name"}),
	}).CreateInBatches(games, upsertBatchSize).Error
}

func (s *SQLStore) HasTable(ctx context.Context) (bool, error) {
	return s.db.WithContext(ctx).Migrator().HasTable(&Game{}), nil
}

func (s *SQLStore) DropTable(ctx context.Context) error {
	return s.db.WithContext(ctx).Migrator().DropTable(&Game{})
}

func (s *SQLStore) RecordUpload(ctx context.Context, rec UploadRecord) error {
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *SQLStore) RecentUploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	var out []UploadRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	if out == nil {
		out = []UploadRecord{}
	}
	return out, nil
}

func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
