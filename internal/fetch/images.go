package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageAttrs lists the source attributes tried in order of preference.
// Lazy-loading themes stash the real URL in data-* attributes.
var imageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "data-url"}

// ExtractImages parses the given HTML and returns absolute HTTP(S)
// image URLs, deduplicated, in document order.
func ExtractImages(htmlStr, baseURL string) []string {
	if htmlStr == "" {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	images := make([]string, 0)

	add := func(src string) {
		if resolved := resolveImageURL(base, src); resolved != "" {
			if _, ok := seen[resolved]; !ok {
				seen[resolved] = struct{}{}
				images = append(images, resolved)
			}
		}
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		add(ImageSource(sel))
	})

	// <source srcset="..."> (take the first candidate)
	doc.Find("source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		add(firstSrcsetURL(sel.AttrOr("srcset", "")))
	})

	if len(images) == 0 {
		return nil
	}
	return images
}

// ImageSource returns the best source URL found on an <img> selection,
// trying direct and lazy-loading attributes before srcset.
func ImageSource(sel *goquery.Selection) string {
	for _, attr := range imageAttrs {
		if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return firstSrcsetURL(sel.AttrOr("srcset", ""))
}

// firstSrcsetURL extracts the first URL token from a srcset value
// ("url1 1x, url2 2x").
func firstSrcsetURL(srcset string) string {
	srcset = strings.TrimSpace(srcset)
	if srcset == "" {
		return ""
	}
	parts := strings.Split(srcset, ",")
	fields := strings.Fields(strings.TrimSpace(parts[0]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func resolveImageURL(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	imgURL, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil && !imgURL.IsAbs() {
		imgURL = base.ResolveReference(imgURL)
	}
	if imgURL.Scheme != "http" && imgURL.Scheme != "https" {
		return ""
	}
	imgURL.Fragment = ""
	return imgURL.String()
}
