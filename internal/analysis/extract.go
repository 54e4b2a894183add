package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON 依次尝试：整体解析、去除代码块围栏、截取首个 { 到最后一个 } 之间的内容。
func ExtractJSON(raw string, dst any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: empty response", ErrUnparseableResponse)
	}

	if json.Unmarshal([]byte(trimmed), dst) == nil {
		return nil
	}

	if match := fencedBlockPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		if json.Unmarshal([]byte(strings.TrimSpace(match[1])), dst) == nil {
			return nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), dst); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: no JSON object found", ErrUnparseableResponse)
}

// ParseTopicAnalysis 提取并校验模型返回的主题分类结果，不合格时返回 ErrUnparseableResponse。
func ParseTopicAnalysis(raw string) (TopicAnalysis, error) {
	var parsed TopicAnalysis
	if err := ExtractJSON(raw, &parsed); err != nil {
		return TopicAnalysis{}, err
	}

	parsed.Summary = strings.TrimSpace(parsed.Summary)
	if parsed.Summary == "" {
		return TopicAnalysis{}, fmt.Errorf("%w: summary is missing", ErrUnparseableResponse)
	}

	distribution := make(map[string]float64, len(parsed.TopicDistribution))
	for category, pct := range parsed.TopicDistribution {
		category = strings.TrimSpace(category)
		if category == "" || pct < 0 {
			continue
		}
		distribution[category] = round2(pct)
	}
	if len(distribution) == 0 {
		return TopicAnalysis{}, fmt.Errorf("%w: topic distribution is empty", ErrUnparseableResponse)
	}
	parsed.TopicDistribution = distribution

	items := make([]CategorizedItem, 0, len(parsed.CategorizedItems))
	for _, item := range parsed.CategorizedItems {
		item.Category = strings.TrimSpace(item.Category)
		if item.Category == "" || strings.TrimSpace(item.URL) == "" {
			continue
		}
		item.Confidence = normalizeConfidence(item.Confidence)
		items = append(items, item)
	}
	parsed.CategorizedItems = items

	if len(parsed.PrimaryInterests) == 0 {
		ranked := rankCategories(distribution)
		parsed.PrimaryInterests, parsed.SecondaryInterests = splitInterests(ranked)
	}
	if parsed.SecondaryInterests == nil {
		parsed.SecondaryInterests = []string{}
	}

	parsed.Source = SourceAI
	parsed.Error = ""
	return parsed, nil
}

// ParseBehaviorDetails 提取并校验行为画像，至少需要叙述、关键词或偏好之一。
func ParseBehaviorDetails(raw string) (BehaviorDetails, error) {
	var parsed BehaviorDetails
	if err := ExtractJSON(raw, &parsed); err != nil {
		return BehaviorDetails{}, err
	}

	parsed.Narrative = strings.TrimSpace(parsed.Narrative)
	parsed.Keywords = compactStrings(parsed.Keywords)
	parsed.Preferences = compactStrings(parsed.Preferences)
	if parsed.Narrative == "" && len(parsed.Keywords) == 0 && len(parsed.Preferences) == 0 {
		return BehaviorDetails{}, fmt.Errorf("%w: behavior details are empty", ErrUnparseableResponse)
	}
	parsed.Error = ""
	return parsed, nil
}

// normalizeConfidence 兼容 0-1 与 0-100 两种写法。
func normalizeConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1 && v <= 100:
		return round2(v / 100)
	case v > 100:
		return 1
	}
	return v
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// rankCategories 按占比降序排列类别，忽略 Other。
func rankCategories(distribution map[string]float64) []string {
	ranked := make([]string, 0, len(distribution))
	for category, pct := range distribution {
		if category == TopicOther || pct <= 0 {
			continue
		}
		ranked = append(ranked, category)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if distribution[ranked[i]] != distribution[ranked[j]] {
			return distribution[ranked[i]] > distribution[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// splitInterests 取前两项为主要兴趣，随后三项为次要兴趣。
func splitInterests(ranked []string) ([]string, []string) {
	primary := make([]string, 0, 2)
	secondary := make([]string, 0, 3)
	for i, category := range ranked {
		switch {
		case i < 2:
			primary = append(primary, category)
		case i < 5:
			secondary = append(secondary, category)
		}
	}
	return primary, secondary
}
