package analysis

import (
	"sort"
	"time"
)

// DefaultSessionTimeout 是切分会话的不活跃阈值。
const DefaultSessionTimeout = 30 * time.Minute

// SegmentSessions 按 LastVisitTime 升序排列记录，相邻间隔超过 timeout 时开启新会话。
func SegmentSessions(events []VisitEvent, timeout time.Duration) []Session {
	if len(events) == 0 {
		return []Session{}
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	sorted := sortedByTime(events)

	sessions := make([]Session, 0, 8)
	current := Session{StartTime: sorted[0].LastVisitTime, Items: []VisitEvent{sorted[0]}}
	for _, event := range sorted[1:] {
		last := current.Items[len(current.Items)-1].LastVisitTime
		if event.LastVisitTime.Sub(last) > timeout {
			sessions = append(sessions, closeSession(current))
			current = Session{StartTime: event.LastVisitTime}
		}
		current.Items = append(current.Items, event)
	}
	sessions = append(sessions, closeSession(current))

	return sessions
}

func closeSession(s Session) Session {
	s.EndTime = s.Items[len(s.Items)-1].LastVisitTime
	s.DurationMinutes = s.EndTime.Sub(s.StartTime).Minutes()
	return s
}

// sortedByTime 返回按时间升序排列的副本，不修改入参。
func sortedByTime(events []VisitEvent) []VisitEvent {
	sorted := make([]VisitEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastVisitTime.Before(sorted[j].LastVisitTime)
	})
	return sorted
}

// mostRecent 返回按时间降序排列的前 limit 条记录。
func mostRecent(events []VisitEvent, limit int) []VisitEvent {
	sorted := make([]VisitEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastVisitTime.After(sorted[j].LastVisitTime)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
