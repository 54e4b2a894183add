package db

import (
	"time"

	"gorm.io/datatypes"
)

// HistoryItem 是用户同步上来的一条浏览记录，同一用户下 URL 唯一。
type HistoryItem struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_history_user_url"`
	URL           string    `gorm:"size:2048;not null;uniqueIndex:idx_history_user_url"`
	Title         string    `gorm:"size:512"`
	VisitCount    int       `gorm:"not null;default:1"`
	LastVisitTime time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定自定义表名。
func (HistoryItem) TableName() string {
	return "history_items"
}

// HistoryAnalysis 缓存用户最近一次的分析报告。
type HistoryAnalysis struct {
	ID                uint           `gorm:"primaryKey"`
	UserID            uint           `gorm:"uniqueIndex;not null"`
	Payload           datatypes.JSON `gorm:"not null"`
	AnalysisTimestamp time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定自定义表名。
func (HistoryAnalysis) TableName() string {
	return "history_analyses"
}
