package analysis

import (
	"math"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// AnalyzeTimeDistribution 统计小时、星期分布与按日期的时间线，loc 为空时使用本地时区。
func AnalyzeTimeDistribution(events []VisitEvent, loc *time.Location) TimeDistribution {
	if loc == nil {
		loc = time.Local
	}

	var dist TimeDistribution
	daily := make(map[string]int)
	for _, event := range events {
		local := event.LastVisitTime.In(loc)
		dist.HourlyDistribution[local.Hour()]++
		dist.WeekdayDistribution[int(local.Weekday())]++
		daily[local.Format(dateLayout)]++
	}

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	dist.Timeline = make([]DailyCount, 0, len(dates))
	for _, date := range dates {
		dist.Timeline = append(dist.Timeline, DailyCount{Date: date, Count: daily[date]})
	}

	dist.PeakHour = argMax(dist.HourlyDistribution[:])
	dist.PeakDay = time.Weekday(argMax(dist.WeekdayDistribution[:])).String()
	return dist
}

// argMax 返回最大值所在下标，并列时取最小下标。
func argMax(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}
