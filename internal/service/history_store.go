package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/twinlog/internal/analysis"
)

// ErrNoHistoryData 表示用户尚未同步任何浏览记录。
var ErrNoHistoryData = errors.New("no browsing history for user")

// ErrEmptyURL 表示同步记录缺少 URL。
var ErrEmptyURL = errors.New("history item url is required")

// CachedAnalysis 是持久化的分析报告及其生成时间。
type CachedAnalysis struct {
	Report    analysis.Report
	Timestamp time.Time
}

// SyncResult 汇总一次同步的写入情况。
type SyncResult struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// HistoryStore 定义浏览历史与缓存报告的持久化能力。
type HistoryStore interface {
	// ListEvents 按写入顺序返回用户的全部记录。
	ListEvents(ctx context.Context, userID uint) ([]analysis.VisitEvent, error)
	// RecentEvents 按访问时间倒序返回最近 limit 条记录。
	RecentEvents(ctx context.Context, userID uint, limit int) ([]analysis.VisitEvent, error)
	// SyncEvents 合并客户端同步的记录，同一 URL 取较大的访问次数与访问时间。
	SyncEvents(ctx context.Context, userID uint, events []analysis.VisitEvent) (SyncResult, error)
	// DeleteAll 清空用户记录并使缓存报告失效。
	DeleteAll(ctx context.Context, userID uint) (int64, error)
	// LoadAnalysis 返回缓存报告，不存在时返回 nil, nil。
	LoadAnalysis(ctx context.Context, userID uint) (*CachedAnalysis, error)
	// SaveAnalysis 覆盖写入缓存报告。
	SaveAnalysis(ctx context.Context, userID uint, report analysis.Report, ts time.Time) error
}

var titlePolicy = bluemonday.StrictPolicy()

// normalizeEvent 清洗单条同步记录，URL 为空时返回 ErrEmptyURL。
func normalizeEvent(event analysis.VisitEvent, now time.Time) (analysis.VisitEvent, error) {
	event.URL = strings.TrimSpace(event.URL)
	if event.URL == "" {
		return event, ErrEmptyURL
	}

	title := html.UnescapeString(titlePolicy.Sanitize(event.Title))
	title = strings.TrimSpace(title)
	if title == "" {
		title = analysis.DefaultTitle
	}
	event.Title = truncateRunes(title, 512)

	if event.VisitCount < 1 {
		event.VisitCount = 1
	}
	if event.LastVisitTime.IsZero() {
		event.LastVisitTime = now
	}
	event.LastVisitTime = event.LastVisitTime.UTC()
	return event, nil
}

// mergeEvents 在同一批次内按 URL 去重，保持首次出现的顺序。
func mergeEvents(events []analysis.VisitEvent, now time.Time) ([]analysis.VisitEvent, int) {
	merged := make([]analysis.VisitEvent, 0, len(events))
	index := make(map[string]int, len(events))
	skipped := 0
	for _, raw := range events {
		event, err := normalizeEvent(raw, now)
		if err != nil {
			skipped++
			continue
		}
		if i, ok := index[event.URL]; ok {
			merged[i] = mergeVisit(merged[i], event)
			continue
		}
		index[event.URL] = len(merged)
		merged = append(merged, event)
	}
	return merged, skipped
}

// mergeVisit 合并同一 URL 的两条记录。
func mergeVisit(existing, incoming analysis.VisitEvent) analysis.VisitEvent {
	if incoming.VisitCount > existing.VisitCount {
		existing.VisitCount = incoming.VisitCount
	}
	if incoming.LastVisitTime.After(existing.LastVisitTime) {
		existing.LastVisitTime = incoming.LastVisitTime
	}
	if incoming.Title != "" && incoming.Title != analysis.DefaultTitle {
		existing.Title = incoming.Title
	}
	return existing
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit])
}
