package runner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// PageMeta as a selector expands to <name>.title, <name>.description and <name>.image.
	PageMeta = "page_meta"

	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// extractFields evaluates CSS selectors against an HTML body. A selector may end
// in "@attr" to read an attribute of the first match instead of its text.
func extractFields(body string, selectors map[string]string) (map[string]string, error) {
	if len(selectors) == 0 || strings.TrimSpace(body) == "" {
		return nil, nil
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := make(map[string]string, len(selectors))
	for name, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == PageMeta {
			meta := parseMeta(doc)
			setIfPresent(out, name+".title", meta.Title)
			setIfPresent(out, name+".description", meta.Description)
			setIfPresent(out, name+".image", meta.ImageURL)
			continue
		}

		query, attr, hasAttr := splitAttr(sel)
		node := doc.Find(query).First()
		if node.Length() == 0 {
			continue
		}
		if hasAttr {
			if val, ok := node.Attr(attr); ok {
				setIfPresent(out, name, val)
			}
			continue
		}
		setIfPresent(out, name, node.Text())
	}
	return out, nil
}

// splitAttr splits "a.link@href" into its selector and attribute. An "@" inside
// an attribute selector ("a[href*='@']") is left alone.
func splitAttr(sel string) (query, attr string, ok bool) {
	i := strings.LastIndex(sel, "@")
	if i < 0 {
		return sel, "", false
	}
	attr = strings.TrimSpace(sel[i+1:])
	if attr == "" || strings.ContainsAny(attr, `]"' `) {
		return sel, "", false
	}
	return strings.TrimSpace(sel[:i]), attr, true
}

type pageMeta struct {
	Title       string
	Description string
	ImageURL    string
}

func parseMeta(doc *goquery.Document) pageMeta {
	content := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Title: firstNonEmpty(
			content(`meta[property="og:title"]`),
			doc.Find("title").First().Text(),
		),
		Description: firstNonEmpty(
			content(`meta[property="og:description"]`),
			content(`meta[name="description"]`),
		),
		ImageURL: content(`meta[property="og:image"]`),
	}
}

func setIfPresent(out map[string]string, key, val string) {
	if val = strings.TrimSpace(val); val != "" {
		out[key] = val
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
