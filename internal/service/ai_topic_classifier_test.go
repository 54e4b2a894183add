package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/twinlog/internal/analysis"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newClassifierFixture(t *testing.T, settings AISettings) (*SystemSettingService, *AITopicClassifier) {
	t.Helper()
	system := NewSystemSettingService(openServiceTestDB(t))
	if _, err := system.UpdateSettings(context.Background(), settings); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	system.SetBaseURL(AIProviderOpenAI, "https://openai.test/v1")
	system.SetBaseURL(AIProviderGemini, "https://gemini.test/v1beta/openai")
	return system, NewAITopicClassifier(system, zerolog.Nop())
}

func TestAITopicClassifierReturnsModelText(t *testing.T) {
	_, classifier := newClassifierFixture(t, AISettings{AIProvider: AIProviderOpenAI, OpenAIAPIKey: "sk-test"})

	classifier.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %s", got)
		}

		var payload chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != defaultOpenAIModel {
			t.Fatalf("unexpected model %s", payload.Model)
		}
		if len(payload.Messages) != 2 || !strings.Contains(payload.Messages[1].Content, "https://github.com/golang/go") {
			t.Fatalf("expected history items in prompt, got %+v", payload.Messages)
		}
		if !strings.HasPrefix(payload.Messages[1].Content, "Return JSON") {
			t.Fatalf("expected instructions first, got %q", payload.Messages[1].Content)
		}

		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":" {\"summary\":\"ok\"} "}}]}`), nil
	}})

	raw, err := classifier.Classify(context.Background(), []analysis.ClassifierItem{
		{URL: "https://github.com/golang/go", Title: "Go"},
	}, "Return JSON only.")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if raw != `{"summary":"ok"}` {
		t.Fatalf("unexpected raw text %q", raw)
	}
}

func TestAITopicClassifierMapsFailuresToUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler func(*http.Request) (*http.Response, error)
	}{
		{name: "rate limited", handler: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"quota exceeded"}}`), nil
		}},
		{name: "server error", handler: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, "bad gateway"), nil
		}},
		{name: "transport", handler: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, classifier := newClassifierFixture(t, AISettings{AIProvider: AIProviderOpenAI, OpenAIAPIKey: "sk-test"})
			classifier.SetHTTPClient(fakeHTTPClient{handler: tc.handler})

			_, err := classifier.Classify(context.Background(), nil, "Return JSON only.")
			if !errors.Is(err, analysis.ErrClassifierUnavailable) {
				t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
			}
		})
	}
}

func TestAITopicClassifierMissingKey(t *testing.T) {
	_, classifier := newClassifierFixture(t, AISettings{AIProvider: AIProviderDeepSeek})
	classifier.SetHTTPClient(fakeHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		t.Fatalf("no request expected without api key")
		return nil, nil
	}})

	_, err := classifier.Classify(context.Background(), nil, "x")
	if !errors.Is(err, analysis.ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestAITopicClassifierUsesGeminiEndpoint(t *testing.T) {
	_, classifier := newClassifierFixture(t, AISettings{AIProvider: AIProviderGemini, GeminiAPIKey: "gm-key"})
	classifier.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "gemini.test" || r.URL.Path != "/v1beta/openai/chat/completions" {
			t.Fatalf("unexpected gemini endpoint %s", r.URL.String())
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gm-key" {
			t.Fatalf("unexpected authorization header %s", got)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`), nil
	}})

	if _, err := classifier.Classify(context.Background(), nil, "x"); err != nil {
		t.Fatalf("classify failed: %v", err)
	}
}

func TestAIChatClientUsesExtendedTimeout(t *testing.T) {
	client := newAIChatClient(nil, zerolog.Nop())

	httpClient, ok := client.http.(*http.Client)
	if !ok {
		t.Fatalf("expected *http.Client, got %T", client.http)
	}
	if httpClient.Timeout < 5*time.Minute {
		t.Fatalf("default timeout should be at least 5m, got %v", httpClient.Timeout)
	}

	client.SetHTTPClient(nil)
	httpClient, ok = client.http.(*http.Client)
	if !ok || httpClient.Timeout < 5*time.Minute {
		t.Fatalf("reset client should keep extended timeout, got %#v", client.http)
	}
}

func TestClassifierFallsBackEndToEnd(t *testing.T) {
	_, classifier := newClassifierFixture(t, AISettings{AIProvider: AIProviderOpenAI, OpenAIAPIKey: "sk-test"})
	classifier.SetHTTPClient(fakeHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`), nil
	}})

	events := []analysis.VisitEvent{
		{URL: "https://github.com/golang/go", Title: "Go", VisitCount: 1, LastVisitTime: syncBase},
	}
	topics, reason := analysis.ClassifyTopics(context.Background(), classifier, events, time.UTC)
	if !errors.Is(reason, analysis.ErrClassifierUnavailable) {
		t.Fatalf("expected unavailable reason, got %v", reason)
	}
	if topics.Source != analysis.SourceFallback || len(topics.PrimaryInterests) == 0 {
		t.Fatalf("expected fallback topics, got %+v", topics)
	}
}
