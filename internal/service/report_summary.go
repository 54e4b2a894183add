package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/twinlog/internal/analysis"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	summaryMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	summarySanitizer = bluemonday.UGCPolicy()
)

// SummaryMarkdown 把报告中的叙述内容整理为 Markdown。
func SummaryMarkdown(report analysis.Report) string {
	var b strings.Builder

	if topics := report.TopicCategories; topics != nil && topics.Error == "" {
		b.WriteString("## Interests\n\n")
		b.WriteString(strings.TrimSpace(topics.Summary))
		b.WriteString("\n\n")
		if len(topics.PrimaryInterests) > 0 {
			fmt.Fprintf(&b, "- **Primary:** %s\n", strings.Join(topics.PrimaryInterests, ", "))
		}
		if len(topics.SecondaryInterests) > 0 {
			fmt.Fprintf(&b, "- **Secondary:** %s\n", strings.Join(topics.SecondaryInterests, ", "))
		}
		b.WriteString("\n")
	}

	if ct := report.ContentTypes; ct != nil && ct.Error == "" && ct.PrimaryContentType != "" {
		fmt.Fprintf(&b, "Most of your browsing is **%s** (diversity score %s).\n\n", ct.PrimaryContentType, ct.DiversityScore)
	}

	if details := report.BehaviorDetails; details != nil && details.Error == "" {
		if narrative := strings.TrimSpace(details.Narrative); narrative != "" {
			b.WriteString("## About you\n\n")
			b.WriteString(narrative)
			b.WriteString("\n\n")
		}
		if len(details.Keywords) > 0 {
			fmt.Fprintf(&b, "_Keywords: %s_\n", strings.Join(details.Keywords, ", "))
		}
	}

	return strings.TrimSpace(b.String())
}

// RenderSummaryHTML 将摘要 Markdown 渲染为经过清洗的 HTML。
func RenderSummaryHTML(report analysis.Report) (string, error) {
	var buf bytes.Buffer
	if err := summaryMarkdown.Convert([]byte(SummaryMarkdown(report)), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return string(summarySanitizer.SanitizeBytes(buf.Bytes())), nil
}
