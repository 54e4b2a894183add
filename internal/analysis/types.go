package analysis

import (
	"errors"
	"time"
)

// DefaultTitle 在同步记录缺少标题时使用。
const DefaultTitle = "Untitled"

var (
	// ErrClassifierUnavailable 表示外部分类能力不可用（网络、配额、未配置 Key）。
	ErrClassifierUnavailable = errors.New("topic classifier unavailable")
	// ErrUnparseableResponse 表示分类结果无法解析为约定的 JSON 结构。
	ErrUnparseableResponse = errors.New("unparseable classifier response")
	// ErrMalformedURL 表示单条记录的 URL 无法解析出主机名。
	ErrMalformedURL = errors.New("malformed url")
)

// VisitEvent 是一条浏览历史记录。
type VisitEvent struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	VisitCount    int       `json:"visitCount"`
	LastVisitTime time.Time `json:"lastVisitTime"`
}

// Session 是按不活跃阈值切分出的一段连续浏览。
type Session struct {
	StartTime       time.Time    `json:"startTime"`
	EndTime         time.Time    `json:"endTime"`
	DurationMinutes float64      `json:"durationMinutes"`
	Items           []VisitEvent `json:"items"`
}

// DailyCount 是时间线上的单日访问量。
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimeDistribution 汇总按小时、星期和日期的访问分布。
type TimeDistribution struct {
	HourlyDistribution  [24]int      `json:"hourlyDistribution"`
	WeekdayDistribution [7]int       `json:"weekdayDistribution"`
	Timeline            []DailyCount `json:"timeline"`
	PeakHour            int          `json:"peakHour"`
	PeakDay             string       `json:"peakDay"`
	Error               string       `json:"error,omitempty"`
}

// DomainStat 描述单个域名的加权访问量。
type DomainStat struct {
	Domain     string  `json:"domain"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DomainFrequency 是域名维度的统计结果。
type DomainFrequency struct {
	TopDomains         []DomainStat `json:"topDomains"`
	TotalUniqueDomains int          `json:"totalUniqueDomains"`
	DiversityRatio     float64      `json:"diversityRatio"`
	Error              string       `json:"error,omitempty"`
}

// ContentTypeStats 是内容类型分类结果。
type ContentTypeStats struct {
	Distribution       map[string]float64      `json:"contentTypeDistribution"`
	Counts             map[string]int          `json:"contentTypeCounts"`
	PrimaryContentType string                  `json:"primaryContentType"`
	DiversityScore     string                  `json:"diversityScore"`
	TopDomainsByType   map[string][]DomainStat `json:"topDomainsByType"`
	Error              string                  `json:"error,omitempty"`
}

// CategorizedItem 是单条记录的主题分类。
type CategorizedItem struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// TopicAnalysis 是主题分类结果，AI 与规则回退两种来源结构一致。
type TopicAnalysis struct {
	CategorizedItems   []CategorizedItem  `json:"categorizedItems"`
	TopicDistribution  map[string]float64 `json:"topicDistribution"`
	PrimaryInterests   []string           `json:"primaryInterests"`
	SecondaryInterests []string           `json:"secondaryInterests"`
	Summary            string             `json:"summary"`
	Source             string             `json:"source"`
	Error              string             `json:"error,omitempty"`
}

// Pathway 是会话内两个域名之间的跳转次数。
type Pathway struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// SessionSummary 是会话的精简描述，不包含具体记录。
type SessionSummary struct {
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes float64   `json:"durationMinutes"`
	PageCount       int       `json:"pageCount"`
}

// WeekSplit 对比工作日与周末的访问占比和高峰小时，无数据时高峰为 -1。
type WeekSplit struct {
	WeekdayPercentage float64 `json:"weekdayPercentage"`
	WeekendPercentage float64 `json:"weekendPercentage"`
	WeekdayPeakHour   int     `json:"weekdayPeakHour"`
	WeekendPeakHour   int     `json:"weekendPeakHour"`
}

// BehaviorPatterns 汇总会话与回访行为指标。
type BehaviorPatterns struct {
	SessionCount              int              `json:"sessionCount"`
	AvgSessionDurationMinutes float64          `json:"avgSessionDurationMinutes"`
	AvgSessionDepth           float64          `json:"avgSessionDepth"`
	AvgDailyVisits            float64          `json:"avgDailyVisits"`
	ReturningVisitRate        float64          `json:"returningVisitRate"`
	TopReturningDomains       []DomainStat     `json:"topReturningDomains"`
	WeekdayWeekend            WeekSplit        `json:"weekdayWeekend"`
	CommonPathways            []Pathway        `json:"commonPathways"`
	RecentSessions            []SessionSummary `json:"recentSessions"`
	Error                     string           `json:"error,omitempty"`
}

// BehaviorDetails 是模型给出的行为画像，失败时只携带 Error。
type BehaviorDetails struct {
	Preferences      []string `json:"preferences,omitempty"`
	WellbeingNotes   string   `json:"wellbeingNotes,omitempty"`
	LearningBehavior string   `json:"learningBehavior,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Narrative        string   `json:"narrative,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Report 是一次完整分析的合并结果。
type Report struct {
	ID               string            `json:"id"`
	GeneratedAt      time.Time         `json:"generatedAt"`
	EventCount       int               `json:"eventCount"`
	TimeDistribution *TimeDistribution `json:"timeDistribution"`
	DomainFrequency  *DomainFrequency  `json:"domainFrequency"`
	TopicCategories  *TopicAnalysis    `json:"topicCategories"`
	ContentTypes     *ContentTypeStats `json:"contentTypes"`
	BehaviorPatterns *BehaviorPatterns `json:"behaviorPatterns"`
	BehaviorDetails  *BehaviorDetails  `json:"behaviorDetails"`
}
