package analysis

import (
	"fmt"
	"strings"
)

// NarrativeInput 是模板化摘要所需的统计数据。
type NarrativeInput struct {
	TotalVisits   int
	UniqueDomains int
	DaySpan       int
	PeakHour      int
	PeakDay       string
	TopCategory   string
}

const noClearPatternSentence = "There is no clear pattern in the topics you browse yet; your visits are spread across sites that do not fit a single interest."

var categorySentences = map[string]string{
	TopicTechnology:    "You spend much of your time on technology: developer tools, documentation and programming resources.",
	TopicNews:          "You keep up with current events and follow news sources closely.",
	TopicSocialMedia:   "Social platforms take a large share of your browsing, keeping you connected with others.",
	TopicEntertainment: "Entertainment such as video, music and games is a major part of your browsing.",
	TopicShopping:      "You browse online stores often, comparing products and deals.",
	TopicEducation:     "You actively look for learning material, courses and reference content.",
	TopicFinance:       "Finance topics like markets, banking and investing draw regular attention.",
	TopicHealth:        "Health and fitness content is a recurring interest in your browsing.",
}

// BuildNarrative 生成确定性的摘要文本，不调用任何外部能力。
func BuildNarrative(in NarrativeInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Over %s you made %d visits across %d unique domains.",
		describeSpan(in.DaySpan), in.TotalVisits, in.UniqueDomains)
	if in.TotalVisits > 0 {
		fmt.Fprintf(&b, " You are most active around %s, and %s is your busiest day.",
			formatHour(in.PeakHour), in.PeakDay)
	}

	sentence, ok := categorySentences[in.TopCategory]
	if !ok {
		sentence = noClearPatternSentence
	}
	b.WriteString(" ")
	b.WriteString(sentence)
	return b.String()
}

func describeSpan(days int) string {
	switch {
	case days <= 0:
		return "less than a day"
	case days == 1:
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func formatHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
