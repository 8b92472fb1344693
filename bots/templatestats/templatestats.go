// Package templatestats walks every template page on the wiki and reports
// parameter usage.
package templatestats

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// docPageSuffix marks a template's documentation subpage.
const docPageSuffix = "/Documentation"

// reModuleInvoke recognizes a Scribunto call: "#invoke" is the keyword
// MediaWiki core supports; "#invoque" is the French-Wikipedia alias.
var reModuleInvoke = regexp.MustCompile(`(?i:#invoke|#invoque)\s*:`)

func containsInvoke(code string) bool {
	return reModuleInvoke.MatchString(code)
}

var (
	reTemplateDataStart = regexp.MustCompile(`(?i)<templatedata(?:\s[^<>]*)?>`)
	reTemplateDataEnd   = regexp.MustCompile(`(?i)</templatedata>`)
)

// collapseSpace merges consecutive whitespace runs into a single space and
// trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseDocPageTitle splits off docPageSuffix.
func parseDocPageTitle(title string) (base string, isDocPage bool) {
	if strings.HasSuffix(title, docPageSuffix) {
		return strings.TrimSuffix(title, docPageSuffix), true
	}
	return title, false
}

// shouldProcessTemplate excludes the generated population/infobox data
// templates, whose parameters are machine-generated and churn constantly.
func shouldProcessTemplate(title string) bool {
	if strings.HasPrefix(title, "Modèle:Données/") &&
		(strings.HasSuffix(title, "/évolution population") || strings.HasSuffix(title, "/informations générales")) {
		return false
	}
	return true
}

// templateSignature renders a template's parameter shape as the ordered
// concatenation of its {{{name}}} variables, plus a module marker if it
// invokes Scribunto. Two templates
// with the same signature accept the same set of positional/named
// parameters, which is what makes the signature useful for spotting
// near-duplicate templates.
func templateSignature(codeWhenTranscluded string) (signature string, params []string, hasInvoke bool) {
	root, _ := parser.Parse(collapseSpace(codeWhenTranscluded), parser.Lenient)
	var b strings.Builder
	seen := map[string]bool{}
	parser.ForEach(root, parser.NTVariable, parser.PrefixDFS, func(n parser.Node) bool {
		v := n.(*parser.Variable)
		name := parser.String(v.NameNode)
		b.WriteString("{{{")
		b.WriteString(name)
		b.WriteString("}}}")
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
		return true
	})
	if containsInvoke(codeWhenTranscluded) {
		b.WriteString("{{#invoke:A}}")
		hasInvoke = true
	}
	return b.String(), params, hasInvoke
}

// extractTemplateDataParams reads the "params" object of a page's first
// <templatedata>...</templatedata> block (one parameter name per key, plus
// its declared aliases). ok is false if the
// page has no templatedata block, the block doesn't parse as JSON, or it
// declares no parameters.
func extractTemplateDataParams(content string) (params []string, ok bool) {
	startLoc := reTemplateDataStart.FindStringIndex(content)
	if startLoc == nil {
		return nil, false
	}
	rest := content[startLoc[1]:]
	endLoc := reTemplateDataEnd.FindStringIndex(rest)
	if endLoc == nil {
		return nil, false
	}
	value, err := jsonvalue.Parse(rest[:endLoc[0]])
	if err != nil {
		return nil, false
	}
	paramsField := value.Get("params")
	if !paramsField.IsObject() || len(paramsField.Keys()) == 0 {
		return nil, false
	}
	seen := map[string]bool{}
	add := func(name string) {
		name = collapseSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		params = append(params, name)
	}
	for _, key := range paramsField.Keys() {
		add(key)
		aliases := paramsField.Get(key).Get("aliases")
		if aliases.IsArray() {
			for _, alias := range aliases.Array() {
				add(alias.String())
			}
		}
	}
	if len(params) == 0 {
		return nil, false
	}
	sort.Strings(params)
	return params, true
}

// suggestedInvocation builds a ready-to-fill template call from its name
// and declared parameters. Parameters containing wikicode-significant characters are
// dropped, since they cannot appear as a bare "param=" field.
func suggestedInvocation(name string, params []string) string {
	var b strings.Builder
	b.WriteString("{{")
	b.WriteString(name)
	for _, p := range params {
		if p == "" || strings.ContainsAny(p, "|{}[]<>\n") {
			continue
		}
		b.WriteString("|")
		b.WriteString(p)
		b.WriteString("=")
	}
	b.WriteString("}}")
	return b.String()
}

// TemplateSignature is one processed template's parameter shape.
type TemplateSignature struct {
	Title     string
	Params    []string
	HasInvoke bool
}

// TemplateDataSkeleton is a suggested invocation built from a module-using
// template's declared TemplateData.
type TemplateDataSkeleton struct {
	Title      string
	Params     []string
	Invocation string
}

// Report is the result of one full pass over the template namespace.
type Report struct {
	Signatures      []TemplateSignature
	Skeletons       []TemplateDataSkeleton
	DuplicateGroups [][]string
}

// Collect reads every template page and builds a Report, fetching the
// full template namespace through GetAllPages and batched ReadPages
// rather than querying pages one at a time.
func Collect(ctx context.Context, wiki *mw.Wiki) (*Report, errors.E) {
	titles, err := wiki.GetAllPages(ctx, int(wikiutil.NSTemplate), "", mw.PagerAll)
	if err != nil {
		return nil, err
	}
	pages, err := wiki.ReadPages(ctx, titles, mw.PropContent)
	if err != nil {
		return nil, err
	}

	invokingTitles := make(map[string]bool, len(pages))
	for title, page := range pages {
		if containsInvoke(page.Content) {
			invokingTitles[title] = true
		}
	}

	siteInfo := wiki.SiteInfo()
	titlesUtil := wiki.Titles()
	unprefix := func(title string) string {
		return titlesUtil.ParseTitle(title, wikiutil.NSTemplate, wikiutil.PTFDefault).UnprefixedTitle()
	}

	bySignature := map[string][]string{}
	seenSkeleton := map[string]bool{}
	report := &Report{}

	for _, title := range titles {
		page, ok := pages[title]
		if !ok || page.Missing {
			continue
		}
		if !shouldProcessTemplate(title) {
			continue
		}
		if _, _, isRedirect := wikiutil.ReadRedirect(siteInfo, page.Content); isRedirect {
			continue
		}

		base, isDocPage := parseDocPageTitle(title)
		_, transcludedCode := wikiutil.ParseIncludeTags(page.Content, nil)
		signature, params, hasInvoke := templateSignature(transcludedCode)
		if !(isDocPage && signature == "") {
			// Documentation pages without parameters of their own add
			// nothing; documentation pages that do carry parameters are
			// kept, since some templates reuse one doc page across several
			// templates by giving it its own {{{...}}} placeholders.
			unprefixedTitle := unprefix(title)
			report.Signatures = append(report.Signatures, TemplateSignature{
				Title: unprefixedTitle, Params: params, HasInvoke: hasInvoke,
			})
			if signature != "" {
				bySignature[signature] = append(bySignature[signature], unprefixedTitle)
			}
		}

		if invokingTitles[base] && !seenSkeleton[base] {
			if tdParams, ok := extractTemplateDataParams(page.Content); ok {
				baseUnprefixed := unprefix(base)
				report.Skeletons = append(report.Skeletons, TemplateDataSkeleton{
					Title:      baseUnprefixed,
					Params:     tdParams,
					Invocation: suggestedInvocation(baseUnprefixed, tdParams),
				})
				seenSkeleton[base] = true
			}
		}
	}

	for _, group := range bySignature {
		if len(group) > 1 {
			sort.Strings(group)
			report.DuplicateGroups = append(report.DuplicateGroups, group)
		}
	}
	sort.Slice(report.DuplicateGroups, func(i, j int) bool { return report.DuplicateGroups[i][0] < report.DuplicateGroups[j][0] })
	sort.Slice(report.Skeletons, func(i, j int) bool { return report.Skeletons[i].Title < report.Skeletons[j].Title })
	sort.Slice(report.Signatures, func(i, j int) bool { return report.Signatures[i].Title < report.Signatures[j].Title })

	return report, nil
}

// Render formats report as a wikitext page: a table of every processed
// template's parameters, a section of near-duplicate parameter shapes, and
// a section of suggested invocations derived from TemplateData.
func Render(report *Report) string {
	var b strings.Builder
	b.WriteString("Rapport généré automatiquement, ne pas modifier à la main.\n\n")

	b.WriteString("== Paramètres par modèle ==\n")
	b.WriteString("{| class=\"wikitable sortable\"\n|-\n! Modèle !! Paramètres !! Module\n")
	for _, sig := range report.Signatures {
		b.WriteString("|-\n| ")
		b.WriteString(sig.Title)
		b.WriteString(" || ")
		b.WriteString(strings.Join(sig.Params, ", "))
		b.WriteString(" || ")
		if sig.HasInvoke {
			b.WriteString("oui")
		}
		b.WriteString("\n")
	}
	b.WriteString("|}\n\n")

	b.WriteString("== Modèles de signature identique ==\n")
	if len(report.DuplicateGroups) == 0 {
		b.WriteString("Aucun.\n\n")
	} else {
		for _, group := range report.DuplicateGroups {
			b.WriteString("* ")
			b.WriteString(strings.Join(group, ", "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("== Squelettes suggérés à partir des TemplateData ==\n")
	if len(report.Skeletons) == 0 {
		b.WriteString("Aucun.\n")
	} else {
		for _, skel := range report.Skeletons {
			b.WriteString("* ")
			b.WriteString(skel.Title)
			b.WriteString(" : <nowiki>")
			b.WriteString(skel.Invocation)
			b.WriteString("</nowiki>\n")
		}
	}

	return b.String()
}

// Reporter drives one full collect-and-publish cycle.
type Reporter struct {
	wiki       *mw.Wiki
	logger     zerolog.Logger
	reportPage string
}

// New returns a Reporter that publishes its findings to reportPage.
func New(logger zerolog.Logger, wiki *mw.Wiki, reportPage string) *Reporter {
	return &Reporter{wiki: wiki, logger: logger, reportPage: reportPage}
}

// Run collects template parameter usage across the wiki and overwrites
// reportPage with the rendered report.
func (r *Reporter) Run(ctx context.Context) errors.E {
	report, err := Collect(ctx, r.wiki)
	if err != nil {
		return err
	}
	r.logger.Info().Int("templates", len(report.Signatures)).Int("duplicate_groups", len(report.DuplicateGroups)).
		Int("skeletons", len(report.Skeletons)).Msg("template stats collected")
	content := Render(report)
	return r.wiki.EditPage(ctx, r.reportPage, func(string) (string, errors.E) {
		return content, nil
	}, "Mise à jour des statistiques de modèles", 0)
}
