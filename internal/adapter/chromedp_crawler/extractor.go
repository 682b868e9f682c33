package chromedp_crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/user/crawl-tracker/pkg/utils"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// skipped elements never contribute text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "svg": true, "canvas": true, "form": true,
	"button": true, "select": true, "input": true,
}

// ExtractMarkdown converts an HTML document to markdown. With mainOnly set,
// readability first narrows the document to its main article; when that
// yields nothing the whole body is used.
func ExtractMarkdown(pageURL, htmlContent string, mainOnly bool) (title, markdown string, err error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())

	root := doc.Find("body")
	if mainOnly {
		if article, aErr := readability.FromReader(strings.NewReader(htmlContent), base); aErr == nil && strings.TrimSpace(article.Content) != "" {
			if articleDoc, dErr := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); dErr == nil {
				root = articleDoc.Find("body")
			}
			if t := strings.TrimSpace(article.Title); t != "" {
				title = t
			}
		} else {
			root.Find("nav, header, footer, aside").Remove()
		}
	}

	var b strings.Builder
	renderChildren(&b, base, root)
	return title, normalize(b.String()), nil
}

func renderChildren(b *strings.Builder, base *url.URL, s *goquery.Selection) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		renderNode(b, base, child)
	})
}

func renderNode(b *strings.Builder, base *url.URL, s *goquery.Selection) {
	name := goquery.NodeName(s)
	if name == "#text" {
		b.WriteString(spaceRun.ReplaceAllString(s.Text(), " "))
		return
	}
	if strings.HasPrefix(name, "#") || skipped[name] {
		return
	}

	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(name[1] - '0')
		text := inlineText(s)
		if text != "" {
			b.WriteString("\n\n" + strings.Repeat("#", level) + " " + text + "\n\n")
		}
	case "p", "div", "section", "article", "main", "header", "footer", "table", "figure":
		b.WriteString("\n\n")
		renderChildren(b, base, s)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "hr":
		b.WriteString("\n\n---\n\n")
	case "ul", "ol":
		b.WriteString("\n")
		renderChildren(b, base, s)
		b.WriteString("\n")
	case "li":
		b.WriteString("\n- ")
		renderChildren(b, base, s)
	case "tr":
		b.WriteString("\n")
		renderChildren(b, base, s)
	case "td", "th":
		renderChildren(b, base, s)
		b.WriteString(" ")
	case "blockquote":
		if text := inlineText(s); text != "" {
			b.WriteString("\n\n> " + text + "\n\n")
		}
	case "pre":
		b.WriteString("\n\n```\n" + strings.Trim(s.Text(), "\n") + "\n```\n\n")
	case "code":
		if text := strings.TrimSpace(s.Text()); text != "" {
			b.WriteString("`" + text + "`")
		}
	case "strong", "b":
		if text := inlineText(s); text != "" {
			b.WriteString("**" + text + "**")
		}
	case "em", "i":
		if text := inlineText(s); text != "" {
			b.WriteString("_" + text + "_")
		}
	case "a":
		text := inlineText(s)
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			b.WriteString(text)
			return
		}
		if abs, err := utils.ToAbsoluteURL(base, href); err == nil {
			href = abs
		}
		if text == "" {
			text = href
		}
		b.WriteString("[" + text + "](" + href + ")")
	case "img":
		src, ok := s.Attr("src")
		if !ok || src == "" {
			src, ok = s.Attr("data-src")
		}
		if !ok || src == "" {
			return
		}
		if abs, err := utils.ToAbsoluteURL(base, src); err == nil {
			src = abs
		}
		alt, _ := s.Attr("alt")
		b.WriteString("![" + strings.TrimSpace(alt) + "](" + src + ")")
	default:
		renderChildren(b, base, s)
	}
}

func inlineText(s *goquery.Selection) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s.Text(), " "))
}

// normalize trims every line and collapses runs of blank lines.
func normalize(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	md = strings.Join(lines, "\n")
	md = blankLines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}
