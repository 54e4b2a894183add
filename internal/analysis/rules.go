package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

// Content type names.
const (
	ContentVideo     = "Video"
	ContentSocial    = "Social Media"
	ContentShopping  = "Shopping"
	ContentNews      = "News & Articles"
	ContentEmail     = "Email & Communication"
	ContentReference = "Reference & Learning"
	ContentOther     = "Other"
)

// Topic category names used by the fallback classifier.
const (
	TopicTechnology    = "Technology"
	TopicNews          = "News"
	TopicSocialMedia   = "Social Media"
	TopicEntertainment = "Entertainment"
	TopicShopping      = "Shopping"
	TopicEducation     = "Education"
	TopicFinance       = "Finance"
	TopicHealth        = "Health"
	TopicOther         = "Other"
)

// MatchRule 匹配一条已小写的 URL 及其主机名。
type MatchRule struct {
	DomainContains string
	URLPattern     *regexp.Regexp
}

// Matches reports whether the rule hits. Exactly one of the two fields is set.
func (r MatchRule) Matches(lowerURL, host string) bool {
	if r.URLPattern != nil {
		return r.URLPattern.MatchString(lowerURL)
	}
	return r.DomainContains != "" && strings.Contains(host, r.DomainContains)
}

// ContentTypeRule 是内容类型表中的一行。
type ContentTypeRule struct {
	Type  string
	Rules []MatchRule
}

func domain(s string) MatchRule { return MatchRule{DomainContains: s} }

func pattern(expr string) MatchRule { return MatchRule{URLPattern: regexp.MustCompile(expr)} }

// ContentTypeTable 按优先级排列，先匹配的类型胜出。
var ContentTypeTable = []ContentTypeRule{
	{Type: ContentVideo, Rules: []MatchRule{
		domain("youtube.com"), domain("youtu.be"), domain("vimeo.com"), domain("twitch.tv"),
		domain("netflix.com"), domain("bilibili.com"), domain("dailymotion.com"),
		pattern(`/watch\?v=`), pattern(`/videos?/`),
	}},
	{Type: ContentSocial, Rules: []MatchRule{
		domain("facebook.com"), domain("twitter.com"), domain("instagram.com"), domain("linkedin.com"),
		domain("reddit.com"), domain("tiktok.com"), domain("weibo.com"), domain("mastodon."),
		pattern(`^https?://(www\.)?x\.com/`),
	}},
	{Type: ContentShopping, Rules: []MatchRule{
		domain("amazon."), domain("ebay."), domain("etsy.com"), domain("aliexpress.com"),
		domain("taobao.com"), domain("walmart.com"), domain("shopify.com"),
		pattern(`/(cart|checkout)(/|\?|$)`), pattern(`/products?/`),
	}},
	{Type: ContentNews, Rules: []MatchRule{
		domain("cnn.com"), domain("bbc."), domain("nytimes.com"), domain("theguardian.com"),
		domain("reuters.com"), domain("medium.com"), domain("news.ycombinator.com"), domain("substack.com"),
		pattern(`/news/`), pattern(`/articles?/`), pattern(`/\d{4}/\d{2}/\d{2}/`),
	}},
	{Type: ContentEmail, Rules: []MatchRule{
		domain("mail.google.com"), domain("outlook."), domain("slack.com"), domain("discord.com"),
		domain("teams.microsoft.com"), domain("web.whatsapp.com"), domain("zoom.us"), domain("mail.yahoo.com"),
		pattern(`/(mail|inbox)(/|\?|$)`),
	}},
	{Type: ContentReference, Rules: []MatchRule{
		domain("wikipedia.org"), domain("stackoverflow.com"), domain("github.com"), domain("coursera.org"),
		domain("udemy.com"), domain("khanacademy.org"), domain("developer.mozilla.org"), domain("docs."),
		pattern(`/docs?/`), pattern(`/tutorials?/`), pattern(`/learn(/|$)`),
	}},
}

// TopicKeywordRule 是回退分类关键词表中的一行。
type TopicKeywordRule struct {
	Category string
	Keywords []string
}

// TopicKeywordTable 按顺序匹配 url + " " + title 的小写单词，关键词需出现在单词开头。
var TopicKeywordTable = []TopicKeywordRule{
	{Category: TopicTechnology, Keywords: []string{
		"github", "stackoverflow", "programming", "developer", "software", "javascript", "python",
		"golang", "kubernetes", "docker", "api", "tech", "linux", "code",
	}},
	{Category: TopicNews, Keywords: []string{
		"news", "cnn", "bbc", "nytimes", "reuters", "guardian", "headline", "breaking", "politics",
	}},
	{Category: TopicSocialMedia, Keywords: []string{
		"facebook", "twitter", "instagram", "linkedin", "reddit", "tiktok", "weibo", "social",
	}},
	{Category: TopicEntertainment, Keywords: []string{
		"youtube", "netflix", "twitch", "spotify", "movie", "music", "game", "bilibili", "anime", "video",
	}},
	{Category: TopicShopping, Keywords: []string{
		"amazon", "ebay", "etsy", "shop", "cart", "checkout", "deal", "price", "taobao",
	}},
	{Category: TopicEducation, Keywords: []string{
		"wikipedia", "coursera", "udemy", "khanacademy", "course", "tutorial", "learn", "university", "lecture",
	}},
	{Category: TopicFinance, Keywords: []string{
		"bank", "finance", "stock", "invest", "crypto", "bitcoin", "trading", "paypal", "budget",
	}},
	{Category: TopicHealth, Keywords: []string{
		"health", "fitness", "workout", "diet", "medical", "doctor", "nutrition", "sleep", "yoga",
	}},
}

// ClassifyContentType 返回 URL 命中的第一个内容类型，都不命中时为 Other。
func ClassifyContentType(rawURL string) (string, string, error) {
	host, err := ExtractHost(rawURL)
	if err != nil {
		return "", "", err
	}
	lowerURL := strings.ToLower(rawURL)
	for _, row := range ContentTypeTable {
		for _, rule := range row.Rules {
			if rule.Matches(lowerURL, host) {
				return row.Type, host, nil
			}
		}
	}
	return ContentOther, host, nil
}

// ClassifyTopic 返回文本命中的第一个主题类别，未命中返回 Other 与 false。
func ClassifyTopic(rawURL, title string) (string, bool) {
	words := topicWords(rawURL + " " + title)
	for _, row := range TopicKeywordTable {
		for _, keyword := range row.Keywords {
			for _, word := range words {
				if strings.HasPrefix(word, keyword) {
					return row.Category, true
				}
			}
		}
	}
	return TopicOther, false
}

// topicWords 按非字母数字字符切分小写文本。
func topicWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
