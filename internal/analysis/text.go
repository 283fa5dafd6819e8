package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/pkg/logger"
)

var (
	htmlTagPattern    = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// PrepareText flattens HTML markup and caps the text at maxChars bytes,
// cutting at a sentence boundary when one fits. maxChars <= 0 disables the cap.
func PrepareText(text string, maxChars int) string {
	if htmlTagPattern.MatchString(text) {
		if flat := flattenHTML(text); flat != "" {
			text = flat
		}
	}

	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	return truncateAtSentence(text, maxChars)
}

func flattenHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, head").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	text := whitespacePattern.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text)
}

func truncateAtSentence(text string, maxChars int) string {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Debug("Sentence segmentation failed", zap.Error(err))
		return hardCut(text, maxChars)
	}

	var b strings.Builder
	for _, sentence := range doc.Sentences() {
		s := strings.TrimSpace(sentence.Text)
		if s == "" {
			continue
		}

		extra := len(s)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra > maxChars {
			break
		}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}

	if b.Len() == 0 {
		return hardCut(text, maxChars)
	}
	return b.String()
}

// hardCut trims to at most maxChars bytes without splitting a rune.
func hardCut(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
