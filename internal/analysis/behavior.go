package analysis

import (
	"sort"
	"time"
)

const (
	topReturningDomains = 5
	topPathways         = 5
	recentSessionCount  = 5
)

// AnalyzeBehaviorPatterns 基于会话切分结果计算会话、回访与工作日/周末指标。
func AnalyzeBehaviorPatterns(events []VisitEvent, sessions []Session, loc *time.Location) BehaviorPatterns {
	if loc == nil {
		loc = time.Local
	}

	patterns := BehaviorPatterns{
		SessionCount:        len(sessions),
		TopReturningDomains: []DomainStat{},
		CommonPathways:      []Pathway{},
		RecentSessions:      []SessionSummary{},
		WeekdayWeekend:      WeekSplit{WeekdayPeakHour: -1, WeekendPeakHour: -1},
	}
	if len(events) == 0 {
		return patterns
	}

	if len(sessions) > 0 {
		totalMinutes := 0.0
		for _, s := range sessions {
			totalMinutes += s.DurationMinutes
		}
		patterns.AvgSessionDurationMinutes = round2(totalMinutes / float64(len(sessions)))
		patterns.AvgSessionDepth = round2(float64(len(events)) / float64(len(sessions)))
	}

	days := make(map[string]struct{})
	var weekdayHours, weekendHours [24]int
	weekdayTotal, weekendTotal := 0, 0
	for _, event := range events {
		local := event.LastVisitTime.In(loc)
		days[local.Format(dateLayout)] = struct{}{}
		if isWeekend(local.Weekday()) {
			weekendHours[local.Hour()]++
			weekendTotal++
		} else {
			weekdayHours[local.Hour()]++
			weekdayTotal++
		}
	}
	patterns.AvgDailyVisits = round2(float64(len(events)) / float64(len(days)))

	patterns.WeekdayWeekend.WeekdayPercentage = percentage(weekdayTotal, len(events))
	patterns.WeekdayWeekend.WeekendPercentage = percentage(weekendTotal, len(events))
	if weekdayTotal > 0 {
		patterns.WeekdayWeekend.WeekdayPeakHour = argMax(weekdayHours[:])
	}
	if weekendTotal > 0 {
		patterns.WeekdayWeekend.WeekendPeakHour = argMax(weekendHours[:])
	}

	patterns.ReturningVisitRate, patterns.TopReturningDomains = returningDomains(events)
	patterns.CommonPathways = commonPathways(sessions)
	patterns.RecentSessions = recentSessions(sessions)
	return patterns
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// returningDomains 返回加权访问超过一次的域名占比及其排行。
func returningDomains(events []VisitEvent) (float64, []DomainStat) {
	counts := make(map[string]int)
	total := 0
	for _, event := range events {
		host, err := ExtractHost(event.URL)
		if err != nil {
			continue
		}
		counts[host] += visitWeight(event)
		total += visitWeight(event)
	}

	returning := make([]DomainStat, 0)
	for _, stat := range rankDomains(counts, total) {
		if stat.Count > 1 {
			returning = append(returning, stat)
		}
	}

	rate := percentage(len(returning), len(counts))
	if len(returning) > topReturningDomains {
		returning = returning[:topReturningDomains]
	}
	return rate, returning
}

type transition struct {
	from, to string
}

// commonPathways 统计会话内相邻两条记录的跨域跳转。
func commonPathways(sessions []Session) []Pathway {
	counts := make(map[transition]int)
	for _, s := range sessions {
		prev := ""
		for _, item := range s.Items {
			host, err := ExtractHost(item.URL)
			if err != nil {
				continue
			}
			if prev != "" && prev != host {
				counts[transition{from: prev, to: host}]++
			}
			prev = host
		}
	}

	pathways := make([]Pathway, 0, len(counts))
	for t, count := range counts {
		pathways = append(pathways, Pathway{From: t.from, To: t.to, Count: count})
	}
	sort.Slice(pathways, func(i, j int) bool {
		if pathways[i].Count != pathways[j].Count {
			return pathways[i].Count > pathways[j].Count
		}
		if pathways[i].From != pathways[j].From {
			return pathways[i].From < pathways[j].From
		}
		return pathways[i].To < pathways[j].To
	})
	if len(pathways) > topPathways {
		pathways = pathways[:topPathways]
	}
	return pathways
}

func recentSessions(sessions []Session) []SessionSummary {
	summaries := make([]SessionSummary, 0, recentSessionCount)
	for i := len(sessions) - 1; i >= 0 && len(summaries) < recentSessionCount; i-- {
		s := sessions[i]
		summaries = append(summaries, SessionSummary{
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			DurationMinutes: round2(s.DurationMinutes),
			PageCount:       len(s.Items),
		})
	}
	return summaries
}
