package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// ClassifierSampleSize 是提交给外部分类能力的最近记录条数。
	ClassifierSampleSize = 50

	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// ClassifierItem 是提交给分类能力的精简记录。
type ClassifierItem struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	VisitCount int    `json:"visitCount,omitempty"`
}

// TopicClassifier 是外部（LLM）文本分类能力，返回未经处理的模型文本。
type TopicClassifier interface {
	Classify(ctx context.Context, items []ClassifierItem, instructions string) (string, error)
}

const topicInstructions = `Categorize each browsing history item into one of: Technology, News, Social Media, Entertainment, Shopping, Education, Finance, Health, Other.
Return JSON only, no prose, with this shape:
{"categorizedItems":[{"url":"","title":"","category":"","confidence":0.0}],
 "topicDistribution":{"<category>":<percentage>},
 "primaryInterests":["<category>"],
 "secondaryInterests":["<category>"],
 "summary":"<two or three sentences describing the user's interests>"}`

const behaviorInstructions = `Analyze the browsing behavior behind these history items (url, title, visitCount).
Return JSON only, no prose, with this shape:
{"preferences":["<content or site preference>"],
 "wellbeingNotes":"<observations about browsing habits and digital wellbeing>",
 "learningBehavior":"<assessment of how the user learns and researches>",
 "keywords":["<keyword>"],
 "narrative":"<a short paragraph describing the user>"}`

// ClassifyTopics 优先调用外部分类能力，失败或结果不可解析时回退到关键词规则。
// 返回的 error 仅说明回退原因，结果始终可用。
func ClassifyTopics(ctx context.Context, classifier TopicClassifier, events []VisitEvent, loc *time.Location) (TopicAnalysis, error) {
	if classifier == nil {
		return FallbackTopicAnalysis(events, loc), fmt.Errorf("%w: no classifier configured", ErrClassifierUnavailable)
	}

	raw, err := classifier.Classify(ctx, classifierItems(events, false), topicInstructions)
	if err != nil {
		if !errors.Is(err, ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
		return FallbackTopicAnalysis(events, loc), err
	}

	parsed, err := ParseTopicAnalysis(raw)
	if err != nil {
		return FallbackTopicAnalysis(events, loc), err
	}
	return parsed, nil
}

// DescribeBehavior 请求更详细的行为画像，失败时返回只包含 Error 的结果。
func DescribeBehavior(ctx context.Context, classifier TopicClassifier, events []VisitEvent) BehaviorDetails {
	if classifier == nil {
		return BehaviorDetails{Error: ErrClassifierUnavailable.Error()}
	}

	raw, err := classifier.Classify(ctx, classifierItems(events, true), behaviorInstructions)
	if err != nil {
		return BehaviorDetails{Error: fmt.Sprintf("behavior analysis failed: %v", err)}
	}

	details, err := ParseBehaviorDetails(raw)
	if err != nil {
		return BehaviorDetails{Error: fmt.Sprintf("behavior analysis failed: %v", err)}
	}
	return details
}

func classifierItems(events []VisitEvent, withVisitCount bool) []ClassifierItem {
	recent := mostRecent(events, ClassifierSampleSize)
	items := make([]ClassifierItem, 0, len(recent))
	for _, event := range recent {
		item := ClassifierItem{URL: event.URL, Title: event.Title}
		if withVisitCount {
			item.VisitCount = visitWeight(event)
		}
		items = append(items, item)
	}
	return items
}
