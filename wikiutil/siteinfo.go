// Package wikiutil implements the parser-dependent utilities layered on top
// of package parser and jsonvalue: site metadata, title parsing, redirect
// detection, bot-exclusion and include-tag handling, and signature-date
// extraction.
package wikiutil

import (
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

// NamespaceNumber identifies a group of pages.
type NamespaceNumber int

const (
	NSMain          NamespaceNumber = 0
	NSTalk          NamespaceNumber = 1
	NSUser          NamespaceNumber = 2
	NSUserTalk      NamespaceNumber = 3
	NSProject       NamespaceNumber = 4
	NSProjectTalk   NamespaceNumber = 5
	NSFile          NamespaceNumber = 6
	NSFileTalk      NamespaceNumber = 7
	NSMediaWiki     NamespaceNumber = 8
	NSMediaWikiTalk NamespaceNumber = 9
	NSTemplate      NamespaceNumber = 10
	NSTemplateTalk  NamespaceNumber = 11
	NSHelp          NamespaceNumber = 12
	NSHelpTalk      NamespaceNumber = 13
	NSCategory      NamespaceNumber = 14
	NSCategoryTalk  NamespaceNumber = 15

	NSSpecial NamespaceNumber = -1

	// SplitTitleInterwiki is the namespace value TitleParts carries for a
	// title recognized as starting with an interwiki prefix.
	SplitTitleInterwiki NamespaceNumber = -99
)

// IsTalkNamespace reports whether ns is a talk namespace (every odd
// namespace number is a talk namespace by MediaWiki convention).
func IsTalkNamespace(ns NamespaceNumber) bool {
	return ns >= 0 && ns%2 != 0
}

// CaseMode controls whether a namespace's first letter is forced to
// uppercase when parsing titles.
type CaseMode int

const (
	CaseSensitive CaseMode = 0
	FirstLetter   CaseMode = 1
)

// Namespace is one entry of SiteInfo's namespace table.
type Namespace struct {
	Name     string // does not end with ':'
	CaseMode CaseMode
}

// InterwikiSpec is one entry of SiteInfo's interwiki table.
type InterwikiSpec struct {
	UnnormalizedPrefix string
	Language           string
}

// SiteInfo holds the metadata a wiki session needs to parse and normalize
// titles.
type SiteInfo struct {
	namespaces      map[NamespaceNumber]Namespace
	namespacesByName []namespaceByName // sorted pairs of (lower name, number)
	aliases         map[string]NamespaceNumber
	interwikis      map[string]InterwikiSpec
	redirectAliases []string
}

type namespaceByName struct {
	name string
	num  NamespaceNumber
}

// StubSiteInfo returns an empty SiteInfo with only the main namespace
// defined, used by tests and by code that has not yet loaded a real site.
func StubSiteInfo() *SiteInfo {
	return &SiteInfo{
		namespaces: map[NamespaceNumber]Namespace{NSMain: {}},
		aliases:    map[string]NamespaceNumber{},
		interwikis: map[string]InterwikiSpec{},
	}
}

// Namespaces returns the namespace table keyed by number.
func (s *SiteInfo) Namespaces() map[NamespaceNumber]Namespace { return s.namespaces }

// Aliases returns the lower-cased-name to namespace-number alias map.
func (s *SiteInfo) Aliases() map[string]NamespaceNumber { return s.aliases }

// Interwikis returns the lower-cased-prefix to interwiki-spec map.
func (s *SiteInfo) Interwikis() map[string]InterwikiSpec { return s.interwikis }

// RedirectAliases returns the lower-cased words that can start a redirect
// (e.g. "#redirect", "#redirection").
func (s *SiteInfo) RedirectAliases() []string { return s.redirectAliases }

// MainNamespace returns the main (0) namespace's metadata.
func (s *SiteInfo) MainNamespace() Namespace {
	if ns, ok := s.namespaces[NSMain]; ok {
		return ns
	}
	return Namespace{}
}

// namespaceNumberFromName finds the namespace whose alias matches lowerName,
// via a binary search over namespacesByName (sorted pairs) as well as the
// plain alias map.
func (s *SiteInfo) namespaceNumberFromName(lowerName string) (NamespaceNumber, bool) {
	if num, ok := s.aliases[lowerName]; ok {
		return num, true
	}
	i := sort.Search(len(s.namespacesByName), func(i int) bool {
		return s.namespacesByName[i].name >= lowerName
	})
	if i < len(s.namespacesByName) && s.namespacesByName[i].name == lowerName {
		return s.namespacesByName[i].num, true
	}
	return 0, false
}

func (s *SiteInfo) initNamespacesByName() {
	s.namespacesByName = s.namespacesByName[:0]
	for num, ns := range s.namespaces {
		s.namespacesByName = append(s.namespacesByName, namespaceByName{name: strings.ToLower(ns.Name), num: num})
	}
	sort.Slice(s.namespacesByName, func(i, j int) bool { return s.namespacesByName[i].name < s.namespacesByName[j].name })
}

// ToJSONValue serializes s into the "siteinfo_version":1 shape expected by
// SiteInfoFromJSONValue.
func (s *SiteInfo) ToJSONValue() jsonvalue.Value {
	result := jsonvalue.NewObject()

	namespaces := jsonvalue.NewObject()
	for num, ns := range s.namespaces {
		nsObj := jsonvalue.NewObject()
		nsObj.Set("number", jsonvalue.NewInt(int64(num)))
		nsObj.Set("casemode", jsonvalue.NewInt(int64(ns.CaseMode)))
		namespaces.Set(ns.Name, nsObj)
	}

	aliases := jsonvalue.NewObject()
	for alias, num := range s.aliases {
		aliases.Set(alias, jsonvalue.NewInt(int64(num)))
	}

	interwikis := jsonvalue.NewObject()
	for _, iw := range s.interwikis {
		iwObj := jsonvalue.NewObject()
		if iw.Language != "" {
			iwObj.Set("lang", jsonvalue.NewString(iw.Language))
		}
		interwikis.Set(iw.UnnormalizedPrefix, iwObj)
	}

	var redirectAliases jsonvalue.Value
	for _, alias := range s.redirectAliases {
		redirectAliases.Append(jsonvalue.NewString(alias))
	}

	result.Set("siteinfo_version", jsonvalue.NewInt(1))
	result.Set("namespaces", namespaces)
	result.Set("aliases", aliases)
	result.Set("interwikis", interwikis)
	result.Set("redirect-aliases", redirectAliases)
	return result
}

// SiteInfoFromJSONValue rebuilds a SiteInfo from the shape produced by
// ToJSONValue.
func SiteInfoFromJSONValue(value jsonvalue.Value) (*SiteInfo, errors.E) {
	if n, ok := value.Get("siteinfo_version").Int(); !ok || n != 1 {
		return nil, errors.WrapWith(errors.New("invalid value passed to SiteInfoFromJSONValue"), errs.Parse)
	}
	s := &SiteInfo{
		namespaces: map[NamespaceNumber]Namespace{},
		aliases:    map[string]NamespaceNumber{},
		interwikis: map[string]InterwikiSpec{},
	}
	namespaces := value.Get("namespaces")
	for _, name := range namespaces.Keys() {
		nsObj := namespaces.Get(name)
		num, _ := nsObj.Get("number").Int()
		caseMode, _ := nsObj.Get("casemode").Int()
		s.namespaces[NamespaceNumber(num)] = Namespace{Name: name, CaseMode: CaseMode(caseMode)}
	}
	if _, ok := s.namespaces[NSMain]; !ok {
		return nil, errors.WrapWith(errors.New("invalid value passed to SiteInfoFromJSONValue (missing main namespace)"), errs.Parse)
	}
	aliases := value.Get("aliases")
	for _, alias := range aliases.Keys() {
		num, _ := aliases.Get(alias).Int()
		s.aliases[alias] = NamespaceNumber(num)
	}
	interwikis := value.Get("interwikis")
	for _, prefix := range interwikis.Keys() {
		iwObj := interwikis.Get(prefix)
		lang := iwObj.Get("lang").String()
		s.interwikis[strings.ToLower(prefix)] = InterwikiSpec{UnnormalizedPrefix: prefix, Language: lang}
	}
	for _, item := range value.Get("redirect-aliases").Array() {
		if item.IsString() {
			s.redirectAliases = append(s.redirectAliases, item.String())
		}
	}
	s.initNamespacesByName()
	return s, nil
}

// SiteInfoFromAPIResponse builds a SiteInfo from a raw meta=siteinfo API
// response.
func SiteInfoFromAPIResponse(value jsonvalue.Value) (*SiteInfo, errors.E) {
	namespacesNode := value.Get("namespaces")
	aliasesNode := value.Get("namespacealiases")
	iwmapNode := value.Get("interwikimap")
	magicWords := value.Get("magicwords")
	if !namespacesNode.IsObject() || !aliasesNode.IsArray() || !iwmapNode.IsArray() || !magicWords.IsArray() {
		return nil, errors.WrapWith(errors.New("missing element in 'query' node"), errs.Parse)
	}

	s := &SiteInfo{
		namespaces: map[NamespaceNumber]Namespace{},
		aliases:    map[string]NamespaceNumber{},
		interwikis: map[string]InterwikiSpec{},
	}
	for _, key := range namespacesNode.Keys() {
		nsNode := namespacesNode.Get(key)
		id, _ := nsNode.Get("id").Int()
		name := nsNode.Get("*").String()
		caseStr := nsNode.Get("case").String()
		caseMode, ok := caseModeFromString(caseStr)
		if !ok {
			return nil, errors.WrapWith(errors.Errorf("cannot parse case mode '%s'", caseStr), errs.Parse)
		}
		num := NamespaceNumber(id)
		s.namespaces[num] = Namespace{Name: name, CaseMode: caseMode}
		s.aliases[strings.ToLower(name)] = num
		if canonical := nsNode.Get("canonical").String(); canonical != "" {
			s.aliases[strings.ToLower(canonical)] = num
		}
	}
	if _, ok := s.namespaces[NSMain]; !ok {
		return nil, errors.WrapWith(errors.New("no main namespace"), errs.Parse)
	}
	for _, aliasNode := range aliasesNode.Array() {
		name := aliasNode.Get("*").String()
		id, _ := aliasNode.Get("id").Int()
		s.aliases[strings.ToLower(name)] = NamespaceNumber(id)
	}
	for _, iwNode := range iwmapNode.Array() {
		prefix := iwNode.Get("prefix").String()
		lang := iwNode.Get("language").String()
		s.interwikis[strings.ToLower(prefix)] = InterwikiSpec{UnnormalizedPrefix: prefix, Language: lang}
	}
	for _, magicWord := range magicWords.Array() {
		if magicWord.Get("name").String() == "redirect" {
			for _, alias := range magicWord.Get("aliases").Array() {
				if alias.IsString() {
					s.redirectAliases = append(s.redirectAliases, strings.ToLower(alias.String()))
				}
			}
		}
	}
	s.initNamespacesByName()
	return s, nil
}

func caseModeFromString(s string) (CaseMode, bool) {
	switch s {
	case "case-sensitive":
		return CaseSensitive, true
	case "first-letter":
		return FirstLetter, true
	default:
		return 0, false
	}
}
