// Package extract pulls image URLs out of HTML markup.
//
// Extraction is a pattern scan, not a parse: it finds <img ...> tags and
// reads their src attribute, case-insensitively and with either quote
// style. Malformed or adversarial markup may yield wrong or missing entries.
package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var imgSrcPattern = regexp.MustCompile(`(?is)<img\b[^>]*?\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Extract returns the src values of all <img> tags in order of appearance.
// Duplicates are kept and values are not validated. The result is never nil.
func Extract(markup string) []string {
	matches := imgSrcPattern.FindAllStringSubmatchIndex(markup, -1)

	links := make([]string, 0, len(matches))
	for _, m := range matches {
		// m[2:4] is the double-quoted value, m[4:6] the single-quoted one
		if m[2] >= 0 {
			links = append(links, markup[m[2]:m[3]])
		} else {
			links = append(links, markup[m[4]:m[5]])
		}
	}
	return links
}

// Resolve makes every link absolute against base, the URL of the page the
// links were extracted from. Links that fail to parse are returned verbatim.
func Resolve(base *url.URL, links []string) []string {
	resolved := make([]string, len(links))
	for i, link := range links {
		ref, err := url.Parse(strings.TrimSpace(link))
		if err != nil || base == nil {
			resolved[i] = link
			continue
		}
		resolved[i] = base.ResolveReference(ref).String()
	}
	return resolved
}
