package analysis

import (
	"fmt"
	"math"
)

const topDomainsPerType = 3

// ContentTypeNames 返回表中定义的类型加上 Other，顺序即优先级。
func ContentTypeNames() []string {
	names := make([]string, 0, len(ContentTypeTable)+1)
	for _, row := range ContentTypeTable {
		names = append(names, row.Type)
	}
	return append(names, ContentOther)
}

// AnalyzeContentTypes 对每条记录做内容类型分类，并计算分布与多样性得分。
func AnalyzeContentTypes(events []VisitEvent) ContentTypeStats {
	names := ContentTypeNames()
	counts := make(map[string]int, len(names))
	domainsByType := make(map[string]map[string]int, len(names))
	for _, name := range names {
		counts[name] = 0
		domainsByType[name] = make(map[string]int)
	}

	total := 0
	for _, event := range events {
		contentType, host, err := ClassifyContentType(event.URL)
		if err != nil {
			continue
		}
		counts[contentType]++
		domainsByType[contentType][host]++
		total++
	}

	stats := ContentTypeStats{
		Distribution:     make(map[string]float64, len(names)),
		Counts:           counts,
		TopDomainsByType: make(map[string][]DomainStat),
		DiversityScore:   DiversityScore(counts, total),
	}

	best := ""
	for _, name := range names {
		stats.Distribution[name] = percentage(counts[name], total)
		if counts[name] > 0 && (best == "" || counts[name] > counts[best]) {
			best = name
		}
		if len(domainsByType[name]) == 0 {
			continue
		}
		ranked := rankDomains(domainsByType[name], counts[name])
		if len(ranked) > topDomainsPerType {
			ranked = ranked[:topDomainsPerType]
		}
		stats.TopDomainsByType[name] = ranked
	}
	stats.PrimaryContentType = best
	return stats
}

// DiversityScore 计算归一化香农熵（0-100），分母为 log2(定义类型数 + 1)。
func DiversityScore(counts map[string]int, total int) string {
	if total <= 0 {
		return "0.00"
	}
	entropy := 0.0
	for _, name := range ContentTypeNames() {
		count := counts[name]
		if count <= 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	maxEntropy := math.Log2(float64(len(ContentTypeTable) + 1))
	score := entropy / maxEntropy * 100
	score = math.Max(0, math.Min(100, score))
	return fmt.Sprintf("%.2f", score)
}
