package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twinlog/internal/analysis"
	"golang.org/x/sync/errgroup"
)

// DefaultAnalysisCacheTTL 是缓存报告的有效期。
const DefaultAnalysisCacheTTL = time.Hour

// ErrSectionFailed 表示某个统计任务执行失败，仅影响报告中的对应部分。
var ErrSectionFailed = errors.New("analysis section failed")

// AnalysisResult 是对外返回的报告及缓存信息。
type AnalysisResult struct {
	Analysis          analysis.Report `json:"analysis"`
	FromCache         bool            `json:"fromCache"`
	AnalysisTimestamp time.Time       `json:"analysisTimestamp"`
}

// AnalysisOptions 控制缓存窗口、会话切分阈值与统计所用时区。
type AnalysisOptions struct {
	CacheTTL       time.Duration
	SessionTimeout time.Duration
	Location       *time.Location
}

// HistoryAnalysisService 负责读取快照、并发执行各项统计并维护缓存报告。
type HistoryAnalysisService struct {
	store          HistoryStore
	classifier     analysis.TopicClassifier
	logger         zerolog.Logger
	now            func() time.Time
	cacheTTL       time.Duration
	sessionTimeout time.Duration
	loc            *time.Location
}

// NewHistoryAnalysisService 构造 HistoryAnalysisService，classifier 为 nil 时始终使用关键词回退。
func NewHistoryAnalysisService(store HistoryStore, classifier analysis.TopicClassifier, logger zerolog.Logger, opts AnalysisOptions) *HistoryAnalysisService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultAnalysisCacheTTL
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = analysis.DefaultSessionTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &HistoryAnalysisService{
		store:          store,
		classifier:     classifier,
		logger:         logger,
		now:            time.Now,
		cacheTTL:       opts.CacheTTL,
		sessionTimeout: opts.SessionTimeout,
		loc:            opts.Location,
	}
}

// SetClock 替换时间来源，主要用于测试。
func (s *HistoryAnalysisService) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// GetAnalysis 返回用户的分析报告：缓存有效且未强制刷新时直接返回缓存，否则重新计算并写回缓存。
func (s *HistoryAnalysisService) GetAnalysis(ctx context.Context, userID uint, forceRefresh bool) (AnalysisResult, error) {
	events, err := s.store.ListEvents(ctx, userID)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("load history snapshot: %w", err)
	}
	if len(events) == 0 {
		return AnalysisResult{}, ErrNoHistoryData
	}

	log := s.logger.With().Uint("user_id", userID).Logger()

	cached, err := s.store.LoadAnalysis(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("load cached analysis failed, recomputing")
		cached = nil
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	if !forceRefresh && cached != nil && now.Sub(cached.Timestamp) < s.cacheTTL {
		log.Debug().Time("analysis_timestamp", cached.Timestamp).Msg("serving cached analysis")
		return AnalysisResult{Analysis: cached.Report, FromCache: true, AnalysisTimestamp: cached.Timestamp}, nil
	}

	ts := now
	if cached != nil && !ts.After(cached.Timestamp) {
		ts = cached.Timestamp.Add(time.Millisecond)
	}

	report := s.BuildReport(ctx, events)
	report.GeneratedAt = ts

	if err := s.store.SaveAnalysis(ctx, userID, report, ts); err != nil {
		log.Warn().Err(err).Msg("save analysis failed")
	}

	log.Info().
		Int("events", len(events)).
		Bool("force_refresh", forceRefresh).
		Str("topic_source", topicSource(report)).
		Msg("analysis computed")

	return AnalysisResult{Analysis: report, FromCache: false, AnalysisTimestamp: ts}, nil
}

// BuildReport 对同一份快照并发执行全部统计任务并合并结果，不读写缓存。
func (s *HistoryAnalysisService) BuildReport(ctx context.Context, events []analysis.VisitEvent) analysis.Report {
	snapshot := append([]analysis.VisitEvent(nil), events...)
	sessions := analysis.SegmentSessions(snapshot, s.sessionTimeout)

	report := analysis.Report{
		ID:          uuid.NewString(),
		GeneratedAt: s.now().UTC(),
		EventCount:  len(snapshot),
	}

	var g errgroup.Group

	s.runSection(&g, "timeDistribution", func() error {
		dist := analysis.AnalyzeTimeDistribution(snapshot, s.loc)
		report.TimeDistribution = &dist
		return nil
	}, func(msg string) {
		report.TimeDistribution = &analysis.TimeDistribution{Error: msg}
	})

	s.runSection(&g, "domainFrequency", func() error {
		freq := analysis.AnalyzeDomainFrequency(snapshot, analysis.DefaultTopDomains)
		report.DomainFrequency = &freq
		return nil
	}, func(msg string) {
		report.DomainFrequency = &analysis.DomainFrequency{Error: msg}
	})

	s.runSection(&g, "contentTypes", func() error {
		stats := analysis.AnalyzeContentTypes(snapshot)
		report.ContentTypes = &stats
		return nil
	}, func(msg string) {
		report.ContentTypes = &analysis.ContentTypeStats{Error: msg}
	})

	s.runSection(&g, "topicCategories", func() error {
		topics, reason := analysis.ClassifyTopics(ctx, s.classifier, snapshot, s.loc)
		if reason != nil {
			s.logger.Info().Err(reason).Msg("topic classifier unavailable, using keyword fallback")
		}
		report.TopicCategories = &topics
		return nil
	}, func(msg string) {
		report.TopicCategories = &analysis.TopicAnalysis{Error: msg}
	})

	s.runSection(&g, "behaviorPatterns", func() error {
		patterns := analysis.AnalyzeBehaviorPatterns(snapshot, sessions, s.loc)
		report.BehaviorPatterns = &patterns
		return nil
	}, func(msg string) {
		report.BehaviorPatterns = &analysis.BehaviorPatterns{Error: msg}
	})

	s.runSection(&g, "behaviorDetails", func() error {
		details := analysis.DescribeBehavior(ctx, s.classifier, snapshot)
		report.BehaviorDetails = &details
		return nil
	}, func(msg string) {
		report.BehaviorDetails = &analysis.BehaviorDetails{Error: msg}
	})

	_ = g.Wait()
	return report
}

// runSection 在独立 goroutine 中执行任务，错误与 panic 只写入该部分的 Error 字段。
func (s *HistoryAnalysisService) runSection(g *errgroup.Group, name string, task func() error, fail func(msg string)) {
	g.Go(func() error {
		if err := runGuarded(task); err != nil {
			s.logger.Warn().Err(err).Str("section", name).Msg("analysis section failed")
			fail(err.Error())
		}
		return nil
	})
}

func runGuarded(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrSectionFailed, r)
		}
	}()
	if err := task(); err != nil {
		return fmt.Errorf("%w: %v", ErrSectionFailed, err)
	}
	return nil
}

func topicSource(report analysis.Report) string {
	if report.TopicCategories == nil {
		return ""
	}
	return report.TopicCategories.Source
}
