package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-venues/parser"
	"golang.org/x/net/html"
)

const (
	maxAddressLen  = 500
	maxCapacityLen = 200
)

var (
	addressLabelPattern = regexp.MustCompile(`(?i)address`)
	capacityPattern     = regexp.MustCompile(`(?i)capacity|pax|guests|seating`)

	addressLabelTags = map[string]bool{"dt": true, "label": true, "th": true, "strong": true, "b": true}
	addressValueTags = map[string]bool{"dd": true, "td": true, "div": true, "p": true}
	skippedTextTags  = map[string]bool{"script": true, "style": true, "noscript": true, "head": true}
)

func nodeName(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return strings.ToLower(sel.Get(0).Data)
}

// pageName returns the primary heading, falling back to the document title.
func pageName(doc *goquery.Document, suffix string) (string, bool) {
	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		heading = doc.Find("title").First()
	}
	if heading.Length() == 0 {
		return "", false
	}
	return parser.CleanName(heading.Text(), suffix), true
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	meta := doc.Find(selector).First()
	if meta.Length() == 0 {
		return "", false
	}
	content, _ := meta.Attr("content")
	return strings.TrimSpace(content), true
}

func breadcrumbCategory(doc *goquery.Document) (string, bool) {
	links := doc.Find("ol.breadcrumb a")
	if links.Length() < 2 {
		return "", false
	}
	return parser.NormalizeSpace(links.Eq(1).Text()), true
}

// contactLinks returns the tel: and mailto: targets. The last link of each
// kind wins.
func contactLinks(doc *goquery.Document) (phone, email string) {
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "tel:"):
			phone = parser.StripScheme(href, "tel:")
		case strings.HasPrefix(lower, "mailto:"):
			email = parser.StripScheme(href, "mailto:")
		}
	})
	return phone, email
}

// addressText finds the element after an "Address" label whose text names
// the country and stays under the length ceiling.
func addressText(doc *goquery.Document, country string) (string, bool) {
	country = strings.ToLower(strings.TrimSpace(country))
	var found string
	doc.Find("dt, label, th, strong, b").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !addressLabelTags[nodeName(label)] || !addressLabelPattern.MatchString(label.Text()) {
			return true
		}
		next := label.Next()
		if !addressValueTags[nodeName(next)] {
			return true
		}
		text := parser.NormalizeSpace(next.Text())
		if text == "" || len(text) >= maxAddressLen {
			return true
		}
		if country != "" && !strings.Contains(strings.ToLower(text), country) {
			return true
		}
		found = text
		return false
	})
	return found, found != ""
}

// capacityText returns the first text node using capacity vocabulary that is
// short and carries a number.
func capacityText(doc *goquery.Document) (string, bool) {
	if doc.Length() == 0 {
		return "", false
	}
	var found string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && skippedTextTags[n.Data] {
			return false
		}
		if n.Type == html.TextNode {
			text := parser.NormalizeSpace(n.Data)
			if text != "" && len(text) < maxCapacityLen && capacityPattern.MatchString(text) && parser.HasDigit(text) {
				found = text
				return true
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if walk(child) {
				return true
			}
		}
		return false
	}
	walk(doc.Get(0))
	return found, found != ""
}

// websiteLink returns the absolute target of a link labelled "Website".
func websiteLink(doc *goquery.Document) (string, bool) {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if !strings.EqualFold(parser.NormalizeSpace(link.Text()), "website") {
			return true
		}
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if !parser.IsAbsoluteURL(href) {
			return true
		}
		found = href
		return false
	})
	return found, found != ""
}
