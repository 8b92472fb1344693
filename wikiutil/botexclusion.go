package wikiutil

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"gitlab.com/orlodrimbot/mwbot/parser"
)

// TestBotExclusion parses {{nobots}} and {{bots}} per the fr-wiki
// convention and reports whether botName (optionally restricted to taskID)
// may edit the page. It fails safe to "excluded" on malformed input: an unparsed page, or a
// {{bots}} template whose allow/deny lists cannot be read, blocks editing.
func TestBotExclusion(wikitext, botName, taskID string) bool {
	tree, err := parser.Parse(wikitext, parser.Lenient)
	if err != nil {
		return false
	}
	allowed := true
	parser.ForEach(tree, parser.NTTemplate, parser.PrefixDFS, func(n parser.Node) bool {
		tmpl, ok := n.(*parser.Template)
		if !ok {
			return true
		}
		name, ok := tmpl.Name()
		if !ok {
			return true
		}
		lowerName := strings.ToLower(strings.TrimSpace(name))
		switch lowerName {
		case "nobots":
			fields := tmpl.GetParsedFields(parser.TrimAndCollapseSpaceInValue)
			if !fields.Contains("1") {
				// Bare {{nobots}} excludes every bot.
				allowed = false
			} else if botExclusionMatchesList(fields.Get("1"), botName, taskID, true) {
				allowed = false
			}
		case "bots":
			fields := tmpl.GetParsedFields(parser.TrimAndCollapseSpaceInValue)
			if fields.Contains("deny") && botExclusionMatchesList(fields.Get("deny"), botName, taskID, true) {
				allowed = false
			}
			if fields.Contains("allow") && !botExclusionMatchesList(fields.Get("allow"), botName, taskID, true) {
				allowed = false
			}
			if fields.Contains("optout") && botExclusionMatchesList(fields.Get("optout"), botName, taskID, false) {
				allowed = false
			}
		}
		return true
	})
	return allowed
}

// botExclusionMatchesList reports whether botName (or "all"/"none",
// matched per matchAllMeansMatch) appears in a comma-separated allow/deny
// list, tolerating a trailing ".taskID" suffix on any entry.
func botExclusionMatchesList(list, botName, taskID string, matchAllMeansMatch bool) bool {
	list = strings.TrimSpace(list)
	if list == "" {
		return false
	}
	lowerList := strings.ToLower(list)
	if lowerList == "all" {
		return matchAllMeansMatch
	}
	if lowerList == "none" {
		return !matchAllMeansMatch
	}
	entries := mapset.NewThreadUnsafeSet[string]()
	for _, entry := range strings.Split(list, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			entries.Add(entry)
		}
	}
	lowerBot := strings.ToLower(botName)
	if entries.Contains(lowerBot) {
		return true
	}
	if taskID != "" && entries.Contains(lowerBot+"."+strings.ToLower(taskID)) {
		return true
	}
	return false
}

