package wikiutil

import (
	"regexp"
	"strings"
)

var redirectLinkRe = regexp.MustCompile(`^\s*#\s*([^\s\[:]+)\s*[ :]*\[\[([^|\]]+)(?:\|[^\]]*)?\]\]`)

// ReadRedirect matches code against `^#<alias>[ :]*\[\[<target>(\|...)?\]\]`
// using site's redirect aliases. ok is false if code is not a redirect.
func ReadRedirect(site *SiteInfo, code string) (target, anchor string, ok bool) {
	m := redirectLinkRe.FindStringSubmatch(code)
	if m == nil {
		return "", "", false
	}
	word := "#" + strings.ToLower(m[1])
	found := false
	for _, alias := range site.RedirectAliases() {
		if word == alias {
			found = true
			break
		}
	}
	if !found {
		return "", "", false
	}
	rawTarget := strings.TrimSpace(m[2])
	parts := NewTitles(site).ParseTitle(rawTarget, NSMain, PTFLinkTarget)
	return parts.TitleWithoutAnchor(), parts.Anchor(), true
}
