package article

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	fenceRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")
	blockTagRe = regexp.MustCompile(`(?i)<(h[1-6]|p|ul|ol|div|section|article|blockquote)\b`)
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe   = regexp.MustCompile(`(^|[^*])\*([^*\s][^*]*?)\*`)
)

var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true,
	"poster": true, "background": true, "xlink:href": true,
}

// activeAttr reports whether an attribute can run code: an event handler, or a URL
// attribute with a script or non-image data scheme.
func activeAttr(key, val string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "on") {
		return true
	}
	if !urlAttrs[key] {
		return false
	}
	// Browsers ignore whitespace and control characters inside the scheme.
	scheme := strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, strings.ToLower(val))
	switch {
	case strings.HasPrefix(scheme, "javascript:"), strings.HasPrefix(scheme, "vbscript:"):
		return true
	case strings.HasPrefix(scheme, "data:"):
		return key != "src" || !strings.HasPrefix(scheme, "data:image/")
	}
	return false
}

// Sanitize turns raw model output into a balanced HTML body. It strips code fences,
// converts markdown or plain text into headings and paragraphs, drops active content
// and re-serializes the result through an HTML parser so every element is closed.
// It returns "" when nothing readable is left.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return ""
	}
	if !blockTagRe.MatchString(s) {
		s = markdownToHTML(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	body := doc.Find("body")
	body.Find("script, style, iframe, object, embed, form, link, meta").Remove()
	body.Find("*").Each(func(_ int, sel *goquery.Selection) {
		var unsafe []string
		for _, attr := range sel.Nodes[0].Attr {
			if activeAttr(attr.Key, attr.Val) {
				unsafe = append(unsafe, attr.Key)
			}
		}
		for _, key := range unsafe {
			sel.RemoveAttr(key)
		}
	})
	// Models like to wrap the article in a container; keep only its content.
	body.ChildrenFiltered("article, main").Each(func(_ int, sel *goquery.Selection) {
		sel.ReplaceWithSelection(sel.Contents())
	})

	if strings.TrimSpace(body.Text()) == "" {
		return ""
	}
	out, err := body.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// ExtractTitle returns the text of the body's leading heading, or "".
func ExtractTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	first := doc.Find("h1, h2").First()
	return strings.Join(strings.Fields(first.Text()), " ")
}

func markdownToHTML(s string) string {
	var b strings.Builder
	var para []string
	inList := false

	flushPara := func() {
		if len(para) > 0 {
			b.WriteString("<p>" + inline(strings.Join(para, " ")) + "</p>\n")
			para = nil
		}
	}
	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flushPara()
			closeList()
		case strings.HasPrefix(line, "#"):
			flushPara()
			closeList()
			level := len(line) - len(strings.TrimLeft(line, "#"))
			if level > 3 {
				level = 3
			}
			text := strings.TrimSpace(strings.TrimLeft(line, "#"))
			tag := "h" + string(rune('0'+level))
			b.WriteString("<" + tag + ">" + inline(text) + "</" + tag + ">\n")
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flushPara()
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			b.WriteString("<li>" + inline(strings.TrimSpace(line[2:])) + "</li>\n")
		default:
			closeList()
			para = append(para, line)
		}
	}
	flushPara()
	closeList()
	return b.String()
}

func inline(s string) string {
	s = html.EscapeString(s)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	return italicRe.ReplaceAllString(s, "$1<em>$2</em>")
}
