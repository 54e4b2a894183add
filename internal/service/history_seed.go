package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/twinlog/internal/analysis"
)

type seedSite struct {
	base   string
	title  string
	weight int
}

var seedSites = []seedSite{
	{base: "https://www.youtube.com/watch?v=", title: "Video", weight: 6},
	{base: "https://github.com/golang/go/issues/", title: "Go issue", weight: 5},
	{base: "https://stackoverflow.com/questions/", title: "Programming question", weight: 4},
	{base: "https://news.ycombinator.com/item?id=", title: "Hacker News thread", weight: 3},
	{base: "https://www.reddit.com/r/golang/comments/", title: "Reddit discussion", weight: 3},
	{base: "https://en.wikipedia.org/wiki/Article_", title: "Wikipedia article", weight: 2},
	{base: "https://www.amazon.com/dp/B0", title: "Product page", weight: 2},
	{base: "https://mail.google.com/mail/u/0/#inbox/", title: "Inbox", weight: 2},
	{base: "https://www.bbc.com/news/world-", title: "World news", weight: 2},
	{base: "https://www.coursera.org/learn/course-", title: "Online course", weight: 1},
}

// GenerateSyntheticHistory 生成 n 条分布在 end 之前若干天内的模拟浏览记录，用于演示与测试。
func GenerateSyntheticHistory(rng *rand.Rand, n int, end time.Time, days int) []analysis.VisitEvent {
	if n <= 0 {
		return nil
	}
	if days <= 0 {
		days = 14
	}

	totalWeight := 0
	for _, site := range seedSites {
		totalWeight += site.weight
	}

	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	cursor := start
	step := time.Duration(days) * 24 * time.Hour / time.Duration(n)

	events := make([]analysis.VisitEvent, 0, n)
	for i := 0; i < n; i++ {
		site := pickSeedSite(rng, totalWeight)
		jitter := time.Duration(rng.Int63n(int64(step) + 1))
		cursor = cursor.Add(jitter)
		if cursor.After(end) {
			cursor = end
		}

		id := rng.Intn(10000)
		events = append(events, analysis.VisitEvent{
			URL:           fmt.Sprintf("%s%d", site.base, id),
			Title:         fmt.Sprintf("%s #%d", site.title, id),
			VisitCount:    1 + rng.Intn(5),
			LastVisitTime: cursor.UTC(),
		})
	}
	return events
}

func pickSeedSite(rng *rand.Rand, totalWeight int) seedSite {
	roll := rng.Intn(totalWeight)
	for _, site := range seedSites {
		if roll < site.weight {
			return site
		}
		roll -= site.weight
	}
	return seedSites[0]
}
