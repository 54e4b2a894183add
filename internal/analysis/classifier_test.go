package analysis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTopicJSON = `{"categorizedItems":[{"url":"https://github.com/a","title":"repo","category":"Technology","confidence":90}],
"topicDistribution":{"Technology":70,"Education":30},
"summary":"Mostly programming."}`

type stubClassifier struct {
	response string
	err      error
	calls    atomic.Int32
	lastSize int
}

func (s *stubClassifier) Classify(_ context.Context, items []ClassifierItem, _ string) (string, error) {
	s.calls.Add(1)
	s.lastSize = len(items)
	return s.response, s.err
}

func TestExtractJSONVariants(t *testing.T) {
	cases := map[string]string{
		"direct": `{"summary":"ok"}`,
		"fenced": "```json\n{\"summary\":\"ok\"}\n```",
		"prose":  "Sure! Here is the analysis: {\"summary\":\"ok\"} Let me know if you need more.",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var out struct {
				Summary string `json:"summary"`
			}
			require.NoError(t, ExtractJSON(raw, &out))
			assert.Equal(t, "ok", out.Summary)
		})
	}
}

func TestExtractJSONRejectsGarbage(t *testing.T) {
	var out map[string]any
	for _, raw := range []string{"", "no json here", "{broken", "} backwards {"} {
		err := ExtractJSON(raw, &out)
		assert.ErrorIs(t, err, ErrUnparseableResponse, raw)
	}
}

func TestParseTopicAnalysisValidates(t *testing.T) {
	parsed, err := ParseTopicAnalysis("```\n" + validTopicJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, SourceAI, parsed.Source)
	assert.Equal(t, []string{TopicTechnology, TopicEducation}, parsed.PrimaryInterests)
	require.Len(t, parsed.CategorizedItems, 1)
	assert.Equal(t, 0.9, parsed.CategorizedItems[0].Confidence)

	_, err = ParseTopicAnalysis(`{"topicDistribution":{"Technology":100}}`)
	assert.ErrorIs(t, err, ErrUnparseableResponse)

	_, err = ParseTopicAnalysis(`{"summary":"x","topicDistribution":{}}`)
	assert.ErrorIs(t, err, ErrUnparseableResponse)
}

func TestClassifyTopicsUsesClassifierOutput(t *testing.T) {
	stub := &stubClassifier{response: "Here you go:\n" + validTopicJSON}
	events := manyEvents(80)

	result, err := ClassifyTopics(context.Background(), stub, events, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, SourceAI, result.Source)
	assert.Equal(t, "Mostly programming.", result.Summary)
	assert.Equal(t, ClassifierSampleSize, stub.lastSize)
}

func TestClassifyTopicsFallsBackOnFailure(t *testing.T) {
	events := []VisitEvent{
		{URL: "https://github.com/golang/go", Title: "Go", VisitCount: 2, LastVisitTime: baseTime},
		{URL: "https://www.netflix.com/browse", Title: "Netflix", VisitCount: 1, LastVisitTime: baseTime.Add(time.Hour)},
		{URL: "https://stackoverflow.com/q/1", Title: "Question", VisitCount: 1, LastVisitTime: baseTime.Add(2 * time.Hour)},
	}

	unavailable := &stubClassifier{err: errors.New("429 too many requests")}
	result, err := ClassifyTopics(context.Background(), unavailable, events, time.UTC)
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, []string{TopicTechnology, TopicEntertainment}, result.PrimaryInterests)

	garbage := &stubClassifier{response: "I cannot help with that."}
	result, err = ClassifyTopics(context.Background(), garbage, events, time.UTC)
	assert.ErrorIs(t, err, ErrUnparseableResponse)
	assert.Equal(t, SourceFallback, result.Source)
	assert.NotEmpty(t, result.Summary)

	result, err = ClassifyTopics(context.Background(), nil, events, time.UTC)
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
	assert.Equal(t, SourceFallback, result.Source)
}

func TestFallbackTopicAnalysisNoClearPattern(t *testing.T) {
	events := []VisitEvent{
		{URL: "https://example.org/one", Title: "Hello", VisitCount: 1, LastVisitTime: baseTime},
		{URL: "https://example.org/two", Title: "World", VisitCount: 1, LastVisitTime: baseTime.Add(49 * time.Hour)},
	}

	result := FallbackTopicAnalysis(events, time.UTC)
	assert.Empty(t, result.PrimaryInterests)
	assert.Equal(t, 100.0, result.TopicDistribution[TopicOther])
	assert.Contains(t, strings.ToLower(result.Summary), "no clear pattern")
	assert.Contains(t, result.Summary, "2 days")
}

func TestFallbackTopicAnalysisRanking(t *testing.T) {
	var events []VisitEvent
	add := func(url string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, VisitEvent{URL: url, Title: "", VisitCount: 1, LastVisitTime: baseTime.Add(time.Duration(len(events)) * time.Minute)})
		}
	}
	add("https://bank.example/login", 1)
	add("https://news.example/today", 4)
	add("https://fitness.example/plan", 3)
	add("https://shop.example/cart", 3)
	add("https://github.com/x", 2)
	add("https://coursera.org/c", 2)

	result := FallbackTopicAnalysis(events, time.UTC)
	assert.Equal(t, []string{TopicNews, TopicShopping}, result.PrimaryInterests)
	assert.Equal(t, []string{TopicHealth, TopicTechnology, TopicEducation}, result.SecondaryInterests)
	assert.Contains(t, result.Summary, "news")
}

func TestDescribeBehavior(t *testing.T) {
	events := manyEvents(3)

	ok := &stubClassifier{response: `{"keywords":["go"],"narrative":"A curious developer."}`}
	details := DescribeBehavior(context.Background(), ok, events)
	assert.Empty(t, details.Error)
	assert.Equal(t, "A curious developer.", details.Narrative)

	failing := &stubClassifier{err: ErrClassifierUnavailable}
	details = DescribeBehavior(context.Background(), failing, events)
	assert.NotEmpty(t, details.Error)
	assert.Empty(t, details.Narrative)

	empty := &stubClassifier{response: `{}`}
	details = DescribeBehavior(context.Background(), empty, events)
	assert.Contains(t, details.Error, ErrUnparseableResponse.Error())
}

func manyEvents(n int) []VisitEvent {
	events := make([]VisitEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, VisitEvent{
			URL:           "https://github.com/repo/" + strings.Repeat("a", i%5+1),
			Title:         "repo",
			VisitCount:    1,
			LastVisitTime: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
	return events
}

func TestClassifyTopicMatchesWordStarts(t *testing.T) {
	cases := []struct {
		url, title, want string
	}{
		{"https://www.bbc.com/news/capital-markets-slump", "Capital markets slump", TopicNews},
		{"https://www.healthline.com/find-a-therapist", "Find a therapist", TopicHealth},
		{"https://www.nytimes.com/2024/05/06/us/rapid-response", "Rapid response", TopicNews},
		{"https://developer.example.com/api/v1", "API reference", TopicTechnology},
		{"https://techcrunch.com/startups", "Startups", TopicTechnology},
		{"https://shop.example/barcode-scanner", "Barcode scanner", TopicShopping},
	}
	for _, tc := range cases {
		got, matched := ClassifyTopic(tc.url, tc.title)
		assert.True(t, matched, tc.url)
		assert.Equal(t, tc.want, got, tc.url)
	}

	got, matched := ClassifyTopic("https://example.org/rapid", "Capital of France")
	assert.False(t, matched)
	assert.Equal(t, TopicOther, got)
}
