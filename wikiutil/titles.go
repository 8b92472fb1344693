package wikiutil

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseTitleFlags controls ParseTitle's behavior.
type ParseTitleFlags int

const (
	PTFDecodeURIComponent ParseTitleFlags = 1 << iota
	PTFNamespaceOnly
	PTFKeepInitialColon

	PTFDefault    ParseTitleFlags = 0
	PTFLinkTarget                 = PTFDecodeURIComponent
)

// TitleParts carves a single normalized title string into namespace,
// unprefixed title and anchor views.
type TitleParts struct {
	Title                string
	UnprefixedTitleBegin int
	AnchorBegin          int
	NamespaceNumber      NamespaceNumber
}

// Namespace returns the "Namespace:" prefix, including the colon.
func (p TitleParts) Namespace() string { return p.Title[:p.UnprefixedTitleBegin] }

// UnprefixedTitle returns the title without its namespace prefix or anchor.
func (p TitleParts) UnprefixedTitle() string {
	return p.Title[p.UnprefixedTitleBegin:p.AnchorBegin]
}

// Anchor returns the "#anchor" suffix, including the '#'.
func (p TitleParts) Anchor() string { return p.Title[p.AnchorBegin:] }

// TitleWithoutAnchor returns the title with any anchor stripped.
func (p TitleParts) TitleWithoutAnchor() string { return p.Title[:p.AnchorBegin] }

// ClearAnchor truncates off any anchor in place.
func (p *TitleParts) ClearAnchor() { p.Title = p.Title[:p.AnchorBegin] }

// Titles wraps a SiteInfo with title-parsing operations.
type Titles struct {
	site *SiteInfo
}

// NewTitles builds a Titles bound to site.
func NewTitles(site *SiteInfo) *Titles {
	return &Titles{site: site}
}

// ParseTitle parses title by (a) trimming Unicode whitespace and '_', (b)
// decoding URI percent-escapes when PTFDecodeURIComponent is set, (c)
// matching the text before the first ':' case-insensitively against the
// site's namespace names and aliases, (d) recognizing a leading interwiki prefix, recording
// SplitTitleInterwiki, (e) splitting off an anchor on the first '#'.
func (t *Titles) ParseTitle(title string, defaultNamespace NamespaceNumber, flags ParseTitleFlags) TitleParts {
	title = trimTitleWhitespace(title)
	if flags&PTFDecodeURIComponent != 0 {
		if decoded, err := url.QueryUnescape(strings.ReplaceAll(title, "+", "%2B")); err == nil {
			title = decoded
		}
	}

	namespaceNumber := defaultNamespace
	unprefixedBegin := 0

	rest := title
	if flags&PTFKeepInitialColon != 0 && strings.HasPrefix(rest, ":") {
		rest = rest[1:]
	}
	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		prefix := strings.ToLower(strings.TrimSpace(rest[:colon]))
		afterColon := rest[colon+1:]
		skip := len(afterColon) - len(strings.TrimLeft(afterColon, " \t_"))
		if num, ok := t.site.namespaceNumberFromName(prefix); ok {
			namespaceNumber = num
			unprefixedBegin = (len(title) - len(rest)) + colon + 1 + skip
		} else if iw, ok := t.site.interwikis[prefix]; ok {
			_ = iw
			namespaceNumber = SplitTitleInterwiki
			unprefixedBegin = (len(title) - len(rest)) + colon + 1 + skip
		}
	}

	unprefixed := title[unprefixedBegin:]
	anchorBegin := unprefixedBegin
	if hash := strings.IndexByte(unprefixed, '#'); hash >= 0 {
		anchorBegin = unprefixedBegin + hash
	} else {
		anchorBegin = len(title)
	}

	if flags&PTFNamespaceOnly == 0 {
		unprefixedTitle := title[unprefixedBegin:anchorBegin]
		if ns, ok := t.site.namespaces[namespaceNumber]; ok && ns.CaseMode == FirstLetter {
			capitalized := capitalizeFirst(unprefixedTitle)
			title = title[:unprefixedBegin] + capitalized + title[anchorBegin:]
		}
	}

	return TitleParts{
		Title:                strings.ReplaceAll(title, " ", "_"),
		UnprefixedTitleBegin: unprefixedBegin,
		AnchorBegin:          anchorBegin,
		NamespaceNumber:      namespaceNumber,
	}
}

// GetTitleNamespace is a convenience wrapper returning just the namespace
// number ParseTitle would compute.
func (t *Titles) GetTitleNamespace(title string) NamespaceNumber {
	return t.ParseTitle(title, NSMain, PTFNamespaceOnly).NamespaceNumber
}

// GetTalkPage returns the talk page of title, or title unchanged if it is
// already in a talk namespace or in a namespace without an associated talk
// page (NSSpecial, NSMediaWiki's edge cases aside).
func (t *Titles) GetTalkPage(title string) string {
	return t.getSubjectOrTalkPage(title, 1)
}

// GetSubjectPage returns the subject (non-talk) page for title.
func (t *Titles) GetSubjectPage(title string) string {
	return t.getSubjectOrTalkPage(title, 0)
}

func (t *Titles) getSubjectOrTalkPage(title string, lowBit int) string {
	parts := t.ParseTitle(title, NSMain, PTFDefault)
	if parts.NamespaceNumber < 0 {
		return title
	}
	targetNS := (NamespaceNumber(int(parts.NamespaceNumber) &^ 1)) + NamespaceNumber(lowBit)
	if targetNS == parts.NamespaceNumber {
		return title
	}
	targetNamespace, ok := t.site.namespaces[targetNS]
	if !ok {
		return title
	}
	prefix := ""
	if targetNS != NSMain {
		prefix = targetNamespace.Name + ":"
	}
	return prefix + parts.UnprefixedTitle()
}

// MakeLink returns a link to target by adding double square brackets, plus a
// leading colon when the target's namespace would otherwise be
// reinterpreted by MediaWiki (categories, files).
func (t *Titles) MakeLink(target string) string {
	parts := t.ParseTitle(target, NSMain, PTFNamespaceOnly)
	if parts.NamespaceNumber == NSCategory || parts.NamespaceNumber == NSFile {
		return "[[:" + target + "]]"
	}
	return "[[" + target + "]]"
}

func trimTitleWhitespace(s string) string {
	isSep := func(r rune) bool { return unicode.IsSpace(r) || r == '_' }
	return strings.TrimFunc(s, isSep)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
