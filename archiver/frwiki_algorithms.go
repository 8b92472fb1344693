// Algorithms specific to the French Wikipedia's {{Archivage par bot}}.
package archiver

import (
	"net/url"
	"regexp"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

var newsletterLists = map[string]bool{
	"Global message delivery/Targets/GLAM":                     true,
	"Global message delivery/Targets/Signpost":                 true,
	"Global message delivery/Targets/Tech ambassadors":         true,
	"Global message delivery/Targets/This Month in Education":  true,
	"Global message delivery/Targets/Wikidata":                 true,
	"Global message delivery/Targets/Wikimedia Highlights":     true,
	"User:Johan (WMF)/Tech News target list 3":                 true,
	"VisualEditor/Newsletter":                                  true,
}

// eraseNewslettersAlgorithm erases threads that are mass-message deliveries
// from a known newsletter list.
type eraseNewslettersAlgorithm struct{}

func (eraseNewslettersAlgorithm) Name() string { return "erasenewsletters" }

func (eraseNewslettersAlgorithm) Run(_ *mw.Wiki, threadContent string) RunResult {
	isNewsletter := false
	for _, line := range strings.Split(threadContent, "\n") {
		if line == "" {
			continue
		}
		isNewsletter = false
		switch {
		case strings.HasPrefix(line, "<!-- Message envoyé par "):
			titleParam := strings.Index(line, "title=")
			if titleParam < 0 {
				continue
			}
			valueStart := titleParam + len("title=")
			valueEnd := strings.IndexAny(line[valueStart:], "& ")
			if valueEnd < 0 {
				continue
			}
			raw := line[valueStart : valueStart+valueEnd]
			decoded, err := url.QueryUnescape(raw)
			if err != nil {
				decoded = raw
			}
			title := strings.ReplaceAll(decoded, "_", " ")
			if newsletterLists[title] {
				isNewsletter = true
			}
		case strings.HasPrefix(line, "{{RAW/PdD|"), strings.HasPrefix(line, "{{Wikimag message|"):
			isNewsletter = true
		}
	}
	action := ActionKeep
	if isNewsletter {
		action = ActionErase
	}
	return RunResult{Action: action}
}

var fdnTemplates = map[string]bool{
	"Modèle:Répondu":                          true,
	"Modèle:Publication":                      true,
	"Modèle:Forum des nouveaux hors-sujet":    true,
	"Modèle:FdNHS":                            true,
	"Modèle:FDNHS":                            true,
	"Modèle:Forum des nouveaux brouillon":     true,
	"Modèle:FdNBrouillon":                     true,
	"Modèle:Forum des nouveaux déjà publié":  true,
	"Modèle:FdNDP":                            true,
	"Modèle:Forum des nouveaux copyvio":       true,
	"Modèle:CopyvioFdN":                       true,
	"Modèle:FdNadm":                           true,
	"Modèle:Réponse wikicode":                 true,
}

var fdnNonFinalStates = map[string]bool{
	"non":        true,
	"autre avis": true,
	"autre":      true,
	"en cours":   true,
	"encours":    true,
}

// fdNAlgorithm archives threads carrying a "Forum des nouveaux" resolution
// template.
type fdNAlgorithm struct{}

func (fdNAlgorithm) Name() string { return "fdn" }

func (fdNAlgorithm) Run(wiki *mw.Wiki, threadContent string) RunResult {
	tree, err := parser.Parse(threadContent, parser.Lenient)
	if err != nil {
		return RunResult{Action: ActionKeep}
	}
	found := false
	parser.ForEach(tree, parser.NTTemplate, parser.PrefixDFS, func(n parser.Node) bool {
		if found {
			return false
		}
		tmpl := n.(*parser.Template)
		name, ok := tmpl.Name()
		if !ok {
			return true
		}
		templateName := normalizeTemplateTitle(wiki, name)
		switch templateName {
		case "Modèle:Réponse wikicode", "Modèle:Réponse FdN":
			value := tmpl.GetParsedFields(parser.TrimValue).Get("1")
			if value != "" && !fdnNonFinalStates[value] {
				found = true
			}
		default:
			if fdnTemplates[templateName] {
				found = true
			}
		}
		return true
	})
	action := ActionKeep
	if found {
		action = ActionArchive
	}
	return RunResult{Action: action}
}

// reChecked matches a handful of "{{Fait}}"-style templates (including the
// two-word "Suppression immédiate" and "Pas fait") used to mark a thread
// resolved.
var reChecked = regexp.MustCompile(`\{\{\s*(?:[Ff]ait|[Nn]on|[Oo]ui|[Dd]éplacée|[Ss]uppression +immédiate|[Hh][Cc]|[Cc]roix3|[Pp]as +fait|[Aa]F)\s*[|}]`)

// checkInTitleAlgorithm archives threads whose heading itself carries one of
// the resolution templates reChecked matches.
type checkInTitleAlgorithm struct{}

func (checkInTitleAlgorithm) Name() string { return "checked+old" }

func (checkInTitleAlgorithm) Run(_ *mw.Wiki, threadContent string) RunResult {
	title := parser.StripComments(wikiutil.ExtractThreadTitle(threadContent))
	action := ActionKeep
	if reChecked.MatchString(title) {
		action = ActionArchive
	}
	return RunResult{Action: action}
}

// oldTitleAlgorithm archives threads whose heading spells out a date
// directly (e.g. "== 2 mars 2000 =="), used for pages where threads are
// dated in the title instead of via a standard signature. clock is injected
// rather than calling wikidate.RealClock{} directly, so a Frozen clock in tests governs
// this algorithm's "current year" inference the same way it governs
// Thread.ComputeState's own age threshold.
type oldTitleAlgorithm struct {
	clock wikidate.Clock
}

func (oldTitleAlgorithm) Name() string { return "oldtitle" }

func (a oldTitleAlgorithm) Run(_ *mw.Wiki, threadContent string) RunResult {
	dateInTitle := wikiutil.ComputeDateInTitle(threadContent, true, a.clock)
	if dateInTitle.IsNull() {
		return RunResult{Action: ActionKeep}
	}
	dateInContent := wikiutil.ExtractMaxSignatureDate(threadContent, a.clock).UTCDate
	forced := dateInTitle
	if dateInContent.After(forced) {
		forced = dateInContent
	}
	return RunResult{Action: ActionArchive, ForcedDate: wikiutil.SignatureDate{UTCDate: forced}}
}

func normalizeTemplateTitle(wiki *mw.Wiki, name string) string {
	parts := wiki.Titles().ParseTitle(name, wikiutil.NSTemplate, wikiutil.PTFDefault)
	unprefixed := strings.ReplaceAll(parts.UnprefixedTitle(), "_", " ")
	ns, ok := wiki.SiteInfo().Namespaces()[parts.NamespaceNumber]
	if !ok || ns.Name == "" {
		return unprefixed
	}
	return ns.Name + ":" + unprefixed
}

// GetFrwikiAlgorithms returns the algorithm registry for
// {{Archivage par bot}} on the French Wikipedia. The order matters: a thread
// matching more than one algorithm (e.g. a newsletter old enough to also
// match "old") is handled by whichever algorithm runs first. clock backs
// oldTitleAlgorithm's date inference; pass wikidate.RealClock{} in
// production and a Frozen clock in tests.
func GetFrwikiAlgorithms(clock wikidate.Clock) *Algorithms {
	algorithms := NewAlgorithms()
	algorithms.Add(eraseNewslettersAlgorithm{})
	algorithms.Add(fdNAlgorithm{})
	algorithms.Add(checkInTitleAlgorithm{})
	algorithms.Add(oldTitleAlgorithm{clock: clock})
	algorithms.Add(archiveOldSectionsAlgorithm{})
	algorithms.Add(eraseOldSectionsAlgorithm{})
	return algorithms
}
