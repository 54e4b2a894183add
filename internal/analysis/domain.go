package analysis

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultTopDomains 是域名排行默认保留的条数。
const DefaultTopDomains = 10

// ExtractHost 解析 URL 的主机名（小写），无法解析或没有主机时返回 ErrMalformedURL。
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrMalformedURL, rawURL)
	}
	return host, nil
}

// AnalyzeDomainFrequency 按 VisitCount 加权统计域名，跳过无法解析的 URL。
func AnalyzeDomainFrequency(events []VisitEvent, topN int) DomainFrequency {
	if topN <= 0 {
		topN = DefaultTopDomains
	}

	counts := make(map[string]int)
	total := 0
	for _, event := range events {
		host, err := ExtractHost(event.URL)
		if err != nil {
			continue
		}
		weight := visitWeight(event)
		counts[host] += weight
		total += weight
	}

	ranked := rankDomains(counts, total)
	result := DomainFrequency{
		TotalUniqueDomains: len(counts),
		TopDomains:         ranked,
	}
	if len(ranked) > topN {
		result.TopDomains = ranked[:topN]
	}
	if len(events) > 0 {
		result.DiversityRatio = round4(float64(len(counts)) / float64(len(events)))
	}
	return result
}

// rankDomains 按计数降序排列，计数相同时按域名字典序。
func rankDomains(counts map[string]int, total int) []DomainStat {
	ranked := make([]DomainStat, 0, len(counts))
	for domain, count := range counts {
		ranked = append(ranked, DomainStat{Domain: domain, Count: count, Percentage: percentage(count, total)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Domain < ranked[j].Domain
	})
	return ranked
}

func visitWeight(event VisitEvent) int {
	if event.VisitCount < 1 {
		return 1
	}
	return event.VisitCount
}
