package archiver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

const (
	archiveTemplateName = "Archivage par bot"

	// ArchiveParamNotSet marks an integer ArchiveParams field the template's
	// author left unset.
	ArchiveParamNotSet = -1

	// DefMinThreadsLeft is the minthreadsleft default applied when the
	// template omits it.
	DefMinThreadsLeft = 5
	// DefMinThreadsToArchive is the minthreadstoarchive default applied
	// when the template omits it.
	DefMinThreadsToArchive = 2

	maxArchiveSizeCapKB = 1950
)

// FindArchiveTemplate returns the first {{Archivage par bot}} call in tree,
// or ok=false.
func FindArchiveTemplate(wiki *mw.Wiki, tree parser.Node) (*parser.Template, bool) {
	var found *parser.Template
	parser.ForEach(tree, parser.NTTemplate, parser.PrefixDFS, func(n parser.Node) bool {
		if found != nil {
			return false
		}
		tmpl := n.(*parser.Template)
		name, ok := tmpl.Name()
		if ok && normalizeTemplateTitle(wiki, name) == "Modèle:"+archiveTemplateName {
			found = tmpl
			return false
		}
		return true
	})
	return found, found != nil
}

// ContainsArchiveTemplate reports whether code (parsed in lenient mode)
// contains {{Archivage par bot}}.
func ContainsArchiveTemplate(wiki *mw.Wiki, code string) bool {
	tree, err := parser.Parse(code, parser.Lenient)
	if err != nil {
		return false
	}
	_, ok := FindArchiveTemplate(wiki, tree)
	return ok
}

// ArchiveParams holds a talk page's archiving configuration, parsed out of
// its {{Archivage par bot}} call. Integer fields left unset by the template hold
// ArchiveParamNotSet; callers apply the relevant default themselves (e.g.
// DefMinThreadsLeft).
type ArchiveParams struct {
	// Archive is the normalized name of the archive page, with "%(counter)d"
	// still present if the template uses it.
	Archive string
	// RawArchive is the "archive" parameter exactly as written.
	RawArchive string
	// Algorithms lists the parsed "algo" entries, reordered to match
	// registration order (most specific first).
	Algorithms          []ParameterizedAlgorithm
	Counter             int
	MaxArchiveSize      int
	MinThreadsLeft      int
	MinThreadsToArchive int
	ArchiveHeader       string
	Key                 string
}

var (
	reAlgoDescription = regexp.MustCompile(`^([A-Za-z+ ]*)\( *([0-9]+) *d\)$`)
	reMaxArchiveSize   = regexp.MustCompile(`^(\d+) *[Kk]$`)
)

// NewArchiveParams locates title's {{Archivage par bot}} call in tree and
// parses its parameters. Returns an errs.Parse-based error if the template
// is missing or any parameter is malformed.
func NewArchiveParams(wiki *mw.Wiki, algorithms *Algorithms, title string, tree parser.Node) (ArchiveParams, errors.E) {
	tmpl, ok := FindArchiveTemplate(wiki, tree)
	if !ok {
		return ArchiveParams{}, errors.WrapWith(errors.Errorf("template {{%s}} not found", archiveTemplateName), errs.Parse)
	}
	fields := tmpl.GetParsedFields(parser.TrimAndCollapseSpaceInValue)

	var params ArchiveParams
	params.RawArchive = fields.Get("archive")
	archive := ""
	if params.RawArchive != "" {
		parts := wiki.Titles().ParseTitle(params.RawArchive, wikiutil.NSMain, wikiutil.PTFDefault)
		archive = strings.ReplaceAll(parts.Title, "_", " ")
	}
	switch {
	case strings.HasPrefix(archive, "/"):
		archive = title + archive
	case archive == "":
		archive = title + "/Archive %(counter)d"
	}
	params.Archive = archive

	algoSpecs, err := parseAlgorithms(algorithms, fields.Get("algo"))
	if err != nil {
		return ArchiveParams{}, err
	}
	if len(algoSpecs) == 0 {
		old, _ := algorithms.Find("old")
		algoSpecs = []ParameterizedAlgorithm{{Algorithm: old, MaxAgeInDays: 15}}
	}
	params.Algorithms = algoSpecs

	params.Counter, err = parseIntParam(fields, "counter", 1, 1000000, false)
	if err != nil {
		return ArchiveParams{}, err
	}
	params.MinThreadsLeft, err = parseIntParam(fields, "minthreadsleft", 0, 1000000, true)
	if err != nil {
		return ArchiveParams{}, err
	}
	params.MinThreadsToArchive, err = parseIntParam(fields, "minthreadstoarchive", 0, 1000000, true)
	if err != nil {
		return ArchiveParams{}, err
	}

	maxArchiveSizeStr := fields.Get("maxarchivesize")
	if maxArchiveSizeStr == "" {
		params.MaxArchiveSize = ArchiveParamNotSet
	} else {
		m := reMaxArchiveSize.FindStringSubmatch(maxArchiveSizeStr)
		if m == nil {
			return ArchiveParams{}, errors.WrapWith(errors.Errorf("invalid value for parameter maxarchivesize: %q", maxArchiveSizeStr), errs.Parse)
		}
		size, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			return ArchiveParams{}, errors.WrapWith(errors.Errorf("invalid value for parameter maxarchivesize: %q", maxArchiveSizeStr), errs.Parse)
		}
		if size > maxArchiveSizeCapKB {
			size = maxArchiveSizeCapKB
		}
		params.MaxArchiveSize = size
	}

	params.ArchiveHeader = fields.Get("archiveheader")
	if params.ArchiveHeader == "" {
		prefix := title + "/"
		directSubpage := strings.HasPrefix(archive, prefix) && !strings.Contains(archive[len(prefix):], "/")
		if directSubpage {
			params.ArchiveHeader = "{{Archive de discussion}}"
		} else {
			params.ArchiveHeader = "{{Archive de discussion|Discussion=" + title + "}}"
		}
	}

	params.Key = fields.Get("key")
	return params, nil
}

// parseAlgorithms parses a comma-separated "algo" parameter (e.g.
// "old(15d), fdn(60d)") into the matching registered algorithms, sorted
// back into registration order.
func parseAlgorithms(algorithms *Algorithms, spec string) ([]ParameterizedAlgorithm, errors.E) {
	specs := splitIgnoringTrailingEmpty(spec, ',')
	result := make([]ParameterizedAlgorithm, 0, len(specs))
	for _, raw := range specs {
		m := reAlgoDescription.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			return nil, errors.WrapWith(errors.Errorf("invalid algorithm specification: %q", raw), errs.Parse)
		}
		algo, ok := algorithms.Find(strings.ToLower(strings.TrimSpace(m[1])))
		if !ok {
			return nil, errors.WrapWith(errors.Errorf("unknown algorithm: %q", m[1]), errs.Parse)
		}
		maxAge, convErr := strconv.Atoi(m[2])
		if convErr != nil {
			return nil, errors.WrapWith(errors.Errorf("invalid algorithm age: %q", raw), errs.Parse)
		}
		result = append(result, ParameterizedAlgorithm{Algorithm: algo, MaxAgeInDays: maxAge})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return algorithms.RankOf(result[i].Algorithm) < algorithms.RankOf(result[j].Algorithm)
	})
	return result, nil
}

// splitIgnoringTrailingEmpty splits s on sep, dropping a trailing empty
// field (so a trailing comma doesn't produce a spurious empty spec) and
// returning nil for an empty s.
func splitIgnoringTrailingEmpty(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, string(sep))
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// parseIntParam parses a template parameter as an integer in
// [minValid, maxValid]. An empty field yields ArchiveParamNotSet.
// clampIfTooLarge, used for minthreadsleft and minthreadstoarchive, clamps
// a too-large value to maxValid instead of rejecting it.
func parseIntParam(fields *parser.ParsedFields, param string, minValid, maxValid int, clampIfTooLarge bool) (int, errors.E) {
	valueStr := fields.Get(param)
	if valueStr == "" {
		return ArchiveParamNotSet, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < minValid {
		return 0, errors.WrapWith(errors.Errorf("invalid value for parameter %s: %q", param, valueStr), errs.Parse)
	}
	if value > maxValid {
		if clampIfTooLarge {
			return maxValid, nil
		}
		return 0, errors.WrapWith(errors.Errorf("invalid value for parameter %s: %q", param, valueStr), errs.Parse)
	}
	return value, nil
}
