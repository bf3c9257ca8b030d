package gamedb

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// UploadRecord 一次上传处理的记录，Summary 保存当时的解码统计
type UploadRecord struct {
	ID        string         `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	FileName  string         `gorm:"size:255" bson:"fileName" json:"fileName"`
	GameID    string         `gorm:"size:64;index" bson:"gameID" json:"gameId"`
	Resolved  bool           `bson:"resolved" json:"resolved"`
	Patches   int            `bson:"patches" json:"patches"`
	Summary   datatypes.JSON `bson:"summary" json:"summary"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
}

// TableName gorm 表名
func (UploadRecord) TableName() string { return "uploads" }

// SetSummary 序列化统计信息
func (r *UploadRecord) SetSummary(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Summary = datatypes.JSON(raw)
	return nil
}
