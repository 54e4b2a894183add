package analysis

import (
	"sort"
	"time"
)

const (
	fallbackMatchConfidence = 0.6
	fallbackOtherConfidence = 0.1
)

// FallbackTopicAnalysis 使用关键词表对最近的记录分类，并生成模板化摘要，不依赖网络。
func FallbackTopicAnalysis(events []VisitEvent, loc *time.Location) TopicAnalysis {
	sample := mostRecent(events, ClassifierSampleSize)

	counts := make(map[string]int)
	items := make([]CategorizedItem, 0, len(sample))
	for _, event := range sample {
		category, matched := ClassifyTopic(event.URL, event.Title)
		confidence := fallbackOtherConfidence
		if matched {
			confidence = fallbackMatchConfidence
		}
		counts[category]++
		items = append(items, CategorizedItem{
			URL:        event.URL,
			Title:      event.Title,
			Category:   category,
			Confidence: confidence,
		})
	}

	distribution := make(map[string]float64, len(counts))
	for category, count := range counts {
		distribution[category] = percentage(count, len(sample))
	}

	ranked := rankFallbackCategories(counts)
	primary, secondary := splitInterests(ranked)

	top := ""
	if len(ranked) > 0 {
		top = ranked[0]
	}

	return TopicAnalysis{
		CategorizedItems:   items,
		TopicDistribution:  distribution,
		PrimaryInterests:   primary,
		SecondaryInterests: secondary,
		Summary:            BuildNarrative(narrativeInputFor(events, loc, top)),
		Source:             SourceFallback,
	}
}

// rankFallbackCategories 按命中数降序排列，并列时保持关键词表顺序。
func rankFallbackCategories(counts map[string]int) []string {
	ranked := make([]string, 0, len(TopicKeywordTable))
	for _, row := range TopicKeywordTable {
		if counts[row.Category] > 0 {
			ranked = append(ranked, row.Category)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked
}

func narrativeInputFor(events []VisitEvent, loc *time.Location, topCategory string) NarrativeInput {
	input := NarrativeInput{TopCategory: topCategory}
	if len(events) == 0 {
		return input
	}

	domains := AnalyzeDomainFrequency(events, 1)
	dist := AnalyzeTimeDistribution(events, loc)

	oldest, newest := events[0].LastVisitTime, events[0].LastVisitTime
	for _, event := range events {
		input.TotalVisits += visitWeight(event)
		if event.LastVisitTime.Before(oldest) {
			oldest = event.LastVisitTime
		}
		if event.LastVisitTime.After(newest) {
			newest = event.LastVisitTime
		}
	}

	input.UniqueDomains = domains.TotalUniqueDomains
	input.DaySpan = int(newest.Sub(oldest).Hours() / 24)
	input.PeakHour = dist.PeakHour
	input.PeakDay = dist.PeakDay
	return input
}
