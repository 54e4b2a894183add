package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twinlog/internal/analysis"
	"github.com/twinlog/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	syncLookupChunk     = 500
	defaultRecentEvents = 100
	maxRecentEvents     = 1000
)

// HistoryService 基于 gorm 持久化浏览历史与缓存报告。
type HistoryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHistoryService 构造 HistoryService。
func NewHistoryService(gdb *gorm.DB) *HistoryService {
	return &HistoryService{db: gdb, now: time.Now}
}

var _ HistoryStore = (*HistoryService)(nil)

// ListEvents 按写入顺序返回全部记录。
func (s *HistoryService) ListEvents(ctx context.Context, userID uint) ([]analysis.VisitEvent, error) {
	var items []db.HistoryItem
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return toVisitEvents(items), nil
}

// RecentEvents 返回最近访问的记录。
func (s *HistoryService) RecentEvents(ctx context.Context, userID uint, limit int) ([]analysis.VisitEvent, error) {
	limit = clampRecentLimit(limit)

	var items []db.HistoryItem
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_visit_time DESC, id DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	return toVisitEvents(items), nil
}

// SyncEvents 合并同步记录：新 URL 插入，已有 URL 取较大的访问次数和访问时间。
func (s *HistoryService) SyncEvents(ctx context.Context, userID uint, events []analysis.VisitEvent) (SyncResult, error) {
	result := SyncResult{Received: len(events)}
	merged, skipped := mergeEvents(events, s.now())
	result.Skipped = skipped
	if len(merged) == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := loadExisting(tx, userID, merged)
		if err != nil {
			return err
		}

		var inserts []db.HistoryItem
		for _, event := range merged {
			item, ok := existing[event.URL]
			if !ok {
				inserts = append(inserts, db.HistoryItem{
					UserID:        userID,
					URL:           event.URL,
					Title:         event.Title,
					VisitCount:    event.VisitCount,
					LastVisitTime: event.LastVisitTime,
				})
				continue
			}

			updated := mergeVisit(fromHistoryItem(*item), event)
			if err := tx.Model(item).Updates(map[string]interface{}{
				"title":           updated.Title,
				"visit_count":     updated.VisitCount,
				"last_visit_time": updated.LastVisitTime,
			}).Error; err != nil {
				return fmt.Errorf("update history item: %w", err)
			}
			result.Updated++
		}

		if len(inserts) > 0 {
			if err := tx.CreateInBatches(inserts, syncLookupChunk).Error; err != nil {
				return fmt.Errorf("insert history items: %w", err)
			}
			result.Inserted = len(inserts)
		}
		return nil
	})
	if err != nil {
		return SyncResult{Received: len(events)}, err
	}
	return result, nil
}

func loadExisting(tx *gorm.DB, userID uint, events []analysis.VisitEvent) (map[string]*db.HistoryItem, error) {
	existing := make(map[string]*db.HistoryItem, len(events))
	for start := 0; start < len(events); start += syncLookupChunk {
		end := start + syncLookupChunk
		if end > len(events) {
			end = len(events)
		}
		urls := make([]string, 0, end-start)
		for _, event := range events[start:end] {
			urls = append(urls, event.URL)
		}

		var items []db.HistoryItem
		if err := tx.Where("user_id = ? AND url IN ?", userID, urls).Find(&items).Error; err != nil {
			return nil, fmt.Errorf("load existing history: %w", err)
		}
		for i := range items {
			item := items[i]
			existing[item.URL] = &item
		}
	}
	return existing, nil
}

// DeleteAll 删除用户的全部记录与缓存报告。
func (s *HistoryService) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&db.HistoryItem{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("user_id = ?", userID).Delete(&db.HistoryAnalysis{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	return deleted, nil
}

// LoadAnalysis 读取缓存报告。
func (s *HistoryService) LoadAnalysis(ctx context.Context, userID uint) (*CachedAnalysis, error) {
	var record db.HistoryAnalysis
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}

	var report analysis.Report
	if err := json.Unmarshal(record.Payload, &report); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &CachedAnalysis{Report: report, Timestamp: record.AnalysisTimestamp}, nil
}

// SaveAnalysis 覆盖写入缓存报告。
func (s *HistoryService) SaveAnalysis(ctx context.Context, userID uint, report analysis.Report, ts time.Time) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	record := db.HistoryAnalysis{
		UserID:            userID,
		Payload:           datatypes.JSON(payload),
		AnalysisTimestamp: ts,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":            record.Payload,
			"analysis_timestamp": ts,
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func toVisitEvents(items []db.HistoryItem) []analysis.VisitEvent {
	events := make([]analysis.VisitEvent, 0, len(items))
	for _, item := range items {
		events = append(events, fromHistoryItem(item))
	}
	return events
}

func fromHistoryItem(item db.HistoryItem) analysis.VisitEvent {
	return analysis.VisitEvent{
		URL:           item.URL,
		Title:         item.Title,
		VisitCount:    item.VisitCount,
		LastVisitTime: item.LastVisitTime,
	}
}

func clampRecentLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentEvents
	}
	if limit > maxRecentEvents {
		return maxRecentEvents
	}
	return limit
}
