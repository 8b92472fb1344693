package archiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// ArchiveOrder selects where new threads are inserted into an archive
// page.
type ArchiveOrder int

const (
	// OldestSectionFirst appends new threads at the end of the page, the
	// layout of an ordinary counter- or date-named archive.
	OldestSectionFirst ArchiveOrder = iota
	// NewestSectionFirst inserts new threads just before the first
	// heading of any level (the first line starting with '='), used for the
	// category-tracking-template pattern where the archive is read
	// newest-first.
	NewestSectionFirst
)

// computePageSize returns title's current content length, or 0 if it does
// not exist.
func computePageSize(ctx context.Context, wiki *mw.Wiki, title string) (int, errors.E) {
	page, err := wiki.ReadPage(ctx, title, mw.PropContent)
	if err != nil {
		return 0, err
	}
	if page.Missing {
		return 0, nil
	}
	return len(page.Content), nil
}

// replaceCounter substitutes the literal "%(counter)d" placeholder in
// format.
func replaceCounter(format string, counter int) string {
	return strings.ReplaceAll(format, "%(counter)d", strconv.Itoa(counter))
}

// padWithZeros left-pads number with '0' up to zeros digits.
func padWithZeros(number, zeros int) string {
	s := strconv.Itoa(number)
	if pad := zeros - len(s); pad > 0 {
		return strings.Repeat("0", pad) + s
	}
	return s
}

// loadStableRevids reads the set of revision ids the previous run left in a
// stable state (no archivable thread). A missing or unreadable file yields
// an empty set: in the worst case, every transcluding page is rechecked
// once more than necessary.
func loadStableRevids(logger zerolog.Logger, path string) map[int64]bool {
	revids := make(map[int64]bool)
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("cannot load stable revision ids")
		}
		return revids
	}
	for _, line := range strings.Split(strings.TrimRight(string(content), "\n"), "\n") {
		if line == "" {
			continue
		}
		revid, convErr := strconv.ParseInt(line, 10, 64)
		if convErr != nil {
			logger.Error().Str("path", path).Str("line", line).Msg("failed to parse stable revision ids")
			return map[int64]bool{}
		}
		revids[revid] = true
	}
	return revids
}

// saveStableRevids writes revids back to path, one per line.
func saveStableRevids(logger zerolog.Logger, path string, revids map[int64]bool) {
	ids := make([]int64, 0, len(revids))
	for id := range revids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d\n", id)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to save stable revision ids")
	}
}

// filterStablePages splits pages into those whose current revision id is
// already known to be stable (skipped) and those that need a fresh
// archiving pass.
func filterStablePages(ctx context.Context, logger zerolog.Logger, wiki *mw.Wiki, pages []string, oldStableRevids map[int64]bool) (pagesToUpdate []string, stableRevids map[int64]bool, errE errors.E) {
	revisions, err := wiki.ReadPages(ctx, pages, mw.PropIDs)
	if err != nil {
		return nil, nil, err
	}
	stableRevids = make(map[int64]bool)
	for _, title := range pages {
		page, ok := revisions[title]
		if !ok {
			continue
		}
		if oldStableRevids[page.RevID] {
			logger.Info().Str("title", title).Msg("skipping stable page")
			stableRevids[page.RevID] = true
		} else {
			pagesToUpdate = append(pagesToUpdate, title)
		}
	}
	return pagesToUpdate, stableRevids, nil
}

// tryToUpdateDatesInHeader fills in the "Début"/"Fin" fields of a leading
// {{Archive de discussion}} template with the date range just added to the
// page.
func tryToUpdateDatesInHeader(wiki *mw.Wiki, content string, oldestAddedThread, newestAddedThread wikidate.Date) string {
	endOfHeader := strings.Index(content, "\n=")
	if endOfHeader < 0 {
		endOfHeader = len(content)
	}
	tree, err := parser.Parse(content[:endOfHeader], parser.Lenient)
	if err != nil {
		return content
	}
	var target *parser.Template
	parser.ForEach(tree, parser.NTTemplate, parser.PrefixDFS, func(n parser.Node) bool {
		tmpl := n.(*parser.Template)
		name, ok := tmpl.Name()
		if ok && normalizeTemplateTitle(wiki, name) == "Modèle:Archive de discussion" {
			target = tmpl
			return false
		}
		return true
	})
	if target == nil {
		return content
	}
	fields := target.GetParsedFields(parser.TrimValue)
	hasStart := fields.Contains("Début")
	if !hasStart && !oldestAddedThread.IsNull() {
		addTemplateField(target, "Début="+wikiutil.FormatDate(oldestAddedThread, wikiutil.DateFormatLong1stTemplate, wikiutil.DatePrecisionDay))
		hasStart = true
		fields = target.GetParsedFields(parser.TrimValue)
	}
	endValue := wikiutil.FormatDate(newestAddedThread, wikiutil.DateFormatLong1stTemplate, wikiutil.DatePrecisionDay)
	if endIndex := fields.IndexOf("Fin"); endIndex != parser.FindParamNone {
		target.SetFieldValue(endIndex, endValue)
	} else if hasStart {
		addTemplateField(target, "Fin="+endValue)
	}
	return parser.String(tree) + content[endOfHeader:]
}

// addTemplateField appends a raw "name=value" field to tmpl, parsed the
// same way wikicode written by hand would be.
func addTemplateField(tmpl *parser.Template, rawField string) {
	field, err := parser.Parse(rawField, parser.Lenient)
	if err != nil {
		field = parser.NewList(parser.NewText(rawField))
	}
	tmpl.AddField(tmpl.Len(), field)
}

const trackingTemplatePlaceholderFormatSections = "format sections"

// trackingTemplateName / trackingTemplateEndName bracket a run of threads
// a tracking category expects removed from its membership once archived.
const (
	trackingTemplateName    = "Utilisateur:OrlodrimBot/Suivi catégorie"
	trackingTemplateEndName = "Utilisateur:OrlodrimBot/Suivi catégorie/fin"
)

// ExtractTrackingTemplate looks for a top-level
// {{Utilisateur:OrlodrimBot/Suivi catégorie}} ... {{.../fin}} bracket in
// code. This only inspects the root list: the bracket is always written
// at the top level of a talk page in practice. ok is false if no complete, non-"-"
// bracket is found. On success, trackingTemplate is detached from the
// tree (PageToArchive.GenerateCode re-adds it), codeInTemplate is the
// wikicode strictly between the two markers, and header/footer are
// everything outside the bracket.
func ExtractTrackingTemplate(wiki *mw.Wiki, code string) (trackingTemplate *parser.Template, codeInTemplate, header, footer string, ok bool) {
	tree, err := parser.Parse(code, parser.Lenient)
	if err != nil {
		return nil, "", "", "", false
	}
	children := tree.Children
	startIndex := -1
	for i, child := range children {
		tmpl, isTmpl := child.(*parser.Template)
		if !isTmpl {
			continue
		}
		name, hasName := tmpl.Name()
		if !hasName {
			continue
		}
		switch normalizeTemplateTitle(wiki, name) {
		case trackingTemplateName:
			if startIndex != -1 {
				return nil, "", "", "", false
			}
			formatSections := tmpl.GetParsedFields(parser.TrimValue).Get(trackingTemplatePlaceholderFormatSections)
			if formatSections != "" && formatSections != "-" {
				startIndex = i
				trackingTemplate = tmpl
			}
		case trackingTemplateEndName:
			if startIndex == -1 {
				continue
			}
			var body, headerB, footerB strings.Builder
			for j := 0; j < startIndex; j++ {
				headerB.WriteString(parser.String(children[j]))
			}
			for j := startIndex + 1; j < i; j++ {
				body.WriteString(parser.String(children[j]))
			}
			for j := i + 1; j < len(children); j++ {
				footerB.WriteString(parser.String(children[j]))
			}
			return trackingTemplate, body.String(), headerB.String(), footerB.String(), true
		}
	}
	return nil, "", "", "", false
}

// PageToArchive is a talk page split into threads and ready to have some of
// them removed.
type PageToArchive struct {
	header           string
	footer           string
	threads          []Thread
	reorderedThreads []*Thread
	trackingTemplate *parser.Template
}

// Load splits code into threads, recognizing the category-tracking-
// template bracket if present.
func (p *PageToArchive) Load(wiki *mw.Wiki, code string) {
	if tmpl, codeInTemplate, header, footer, ok := ExtractTrackingTemplate(wiki, code); ok {
		p.trackingTemplate = tmpl
		p.header = header
		p.footer = footer
		// TODO: prevent the first thread with a title from being archived.
		p.threads = ParseCodeAsThreads(codeInTemplate)
	} else {
		p.trackingTemplate = nil
		p.header = ""
		p.footer = ""
		p.threads = ParseCodeAsThreads(code)
	}
	p.reorderedThreads = make([]*Thread, len(p.threads))
	for i := range p.threads {
		p.reorderedThreads[i] = &p.threads[i]
	}
	if p.trackingTemplate != nil {
		for i, j := 0, len(p.reorderedThreads)-1; i < j; i, j = i+1, j-1 {
			p.reorderedThreads[i], p.reorderedThreads[j] = p.reorderedThreads[j], p.reorderedThreads[i]
		}
	}
}

// ReorderedThreads returns the threads in the order computeState/archiving
// should process them: document order normally, reversed (newest heading
// first) when a tracking template brackets them.
func (p *PageToArchive) ReorderedThreads() []*Thread { return p.reorderedThreads }

// HasTrackingTemplate reports whether Load found a category-tracking
// bracket.
func (p *PageToArchive) HasTrackingTemplate() bool { return p.trackingTemplate != nil }

// GenerateCode reassembles the page's wikicode after archiving/erasing has
// set some threads' state.
func (p *PageToArchive) GenerateCode(wiki *mw.Wiki) string {
	var newCodeInTemplate strings.Builder
	var newMinDate wikidate.Date
	for i := range p.threads {
		thread := &p.threads[i]
		if thread.State != StateArchived && thread.State != StateErased {
			if p.trackingTemplate != nil {
				dateInTitle := wikiutil.ComputeDateInTitle(thread.Text, false, wikidate.RealClock{})
				if !dateInTitle.IsNull() && (newMinDate.IsNull() || newMinDate.After(dateInTitle)) {
					newMinDate = dateInTitle
				}
			}
			newCodeInTemplate.WriteString(thread.Text)
		} else if p.trackingTemplate != nil {
			dateInTitle := wikiutil.ComputeDateInTitle(thread.Text, true, wikidate.RealClock{})
			if !dateInTitle.IsNull() {
				dateInTitle = dateInTitle.Add(wikidate.FromDays(1))
				if newMinDate.IsNull() || newMinDate.Before(dateInTitle) {
					newMinDate = dateInTitle
				}
			}
		}
	}

	var newCode strings.Builder
	newCode.WriteString(p.header)
	if p.trackingTemplate != nil {
		if !newMinDate.IsNull() {
			fields := p.trackingTemplate.GetParsedFields(parser.TrimValue)
			newMinDateStr := wikiutil.FormatDate(newMinDate, wikiutil.DateFormatLong, wikiutil.DatePrecisionDay)
			if dateField := fields.IndexOf("date min"); dateField != parser.FindParamNone {
				p.trackingTemplate.SetFieldValue(dateField, newMinDateStr)
			} else {
				addTemplateField(p.trackingTemplate, "date min = "+newMinDateStr)
			}
		}
		newCode.WriteString(parser.String(p.trackingTemplate))
	}
	newCode.WriteString(newCodeInTemplate.String())
	newCode.WriteString(p.footer)
	return newCode.String()
}

// ArchivePage accumulates the threads bound for one archive page until
// Update flushes them in a single edit.
type ArchivePage struct {
	title             string
	order             ArchiveOrder
	size              int
	newHeader         string
	newThreads        []string
	numThreads        int
	justCreated       bool
	oldestAddedThread wikidate.Date
	newestAddedThread wikidate.Date
}

// NewArchivePage returns an archive page accumulator for title, not yet
// loaded.
func NewArchivePage(title string, order ArchiveOrder) *ArchivePage {
	return &ArchivePage{title: title, order: order, size: -1}
}

// Title returns the archive page's title.
func (a *ArchivePage) Title() string { return a.title }

// Size returns the page's size as of the last Load, or the running total
// once threads have been added.
func (a *ArchivePage) Size() int { return a.size }

// NumThreads returns how many threads have been queued for this page.
func (a *ArchivePage) NumThreads() int { return a.numThreads }

// Load fetches title's current size, warning if it is implausibly large.
func (a *ArchivePage) Load(ctx context.Context, logger zerolog.Logger, wiki *mw.Wiki) errors.E {
	size, err := computePageSize(ctx, wiki, a.title)
	if err != nil {
		return err
	}
	a.size = size
	switch {
	case a.size >= 1900000:
		logger.Error().Str("title", a.title).Msg("very large archive page")
	case a.size >= 1000000:
		logger.Warn().Str("title", a.title).Msg("large archive page")
	}
	return nil
}

// AddThread queues thread for this archive page.
func (a *ArchivePage) AddThread(thread *Thread, archiveHeader string, insertDatesInHeader bool) {
	if a.size == 0 {
		a.newHeader = archiveHeader
		a.size += len(archiveHeader)
		a.justCreated = true
	}
	if len(a.newThreads) == 0 && a.order == OldestSectionFirst {
		a.size += 2 // for the "\n\n" before the first new thread
	}
	a.newThreads = append(a.newThreads, thread.Text)
	a.size += len(thread.Text)
	threadDate := thread.Date.LocalDate()
	if insertDatesInHeader {
		if a.justCreated && (a.oldestAddedThread.IsNull() || a.oldestAddedThread.After(threadDate)) {
			a.oldestAddedThread = threadDate
		}
		if a.newestAddedThread.IsNull() || threadDate.After(a.newestAddedThread) {
			a.newestAddedThread = threadDate
		}
	}
	a.numThreads++
}

// Update flushes the queued threads into a single edit of the archive
// page.
func (a *ArchivePage) Update(ctx context.Context, logger zerolog.Logger, wiki *mw.Wiki, sourcePage string, dryRun bool) errors.E {
	sectionCount := "d'une section"
	if a.numThreads > 1 {
		sectionCount = fmt.Sprintf("de %d sections", a.numThreads)
	}
	editSummary := fmt.Sprintf("Archivage %s provenant de [[%s]]", sectionCount, sourcePage)
	if dryRun {
		logger.Info().Str("title", a.title).Str("summary", editSummary).Msg("[dry run] writing archive page")
		return nil
	}
	return wiki.EditPage(ctx, a.title, func(content string) (string, errors.E) {
		if content == "" {
			content = a.newHeader
		}
		if !a.newestAddedThread.IsNull() {
			content = tryToUpdateDatesInHeader(wiki, content, a.oldestAddedThread, a.newestAddedThread)
		}
		switch a.order {
		case OldestSectionFirst:
			content += "\n\n"
			for _, thread := range a.newThreads {
				content += thread
			}
		case NewestSectionFirst:
			insertionPoint := 0
			if content != "" && !strings.HasPrefix(content, "=") {
				if firstSection := strings.Index(content, "\n="); firstSection >= 0 {
					insertionPoint = firstSection + 1
				} else {
					content += "\n\n"
					insertionPoint = len(content)
				}
			}
			var newContent strings.Builder
			newContent.WriteString(content[:insertionPoint])
			for i := len(a.newThreads) - 1; i >= 0; i-- {
				newContent.WriteString(a.newThreads[i])
			}
			newContent.WriteString(content[insertionPoint:])
			content = newContent.String()
		}
		return content, nil
	}, editSummary, mw.EditMinor|mw.EditBypassNoBots)
}

// ArchivePagesBuffer routes threads to the right archive page (by counter
// or by date pattern) and batches each page's accumulated threads into one
// write.
type ArchivePagesBuffer struct {
	ctx                context.Context
	logger             zerolog.Logger
	wiki               *mw.Wiki
	pattern            string
	counter            int
	order              ArchiveOrder
	counterInitialized bool
	useCounter         bool
	pages              map[string]*ArchivePage
	usedSet            map[string]bool
	used               []*ArchivePage
	loadErr            errors.E
}

// NewArchivePagesBuffer returns a buffer routing to archive pages named
// after pattern, starting from counter (-1 if unknown).
func NewArchivePagesBuffer(ctx context.Context, logger zerolog.Logger, wiki *mw.Wiki, pattern string, counter int, order ArchiveOrder) *ArchivePagesBuffer {
	return &ArchivePagesBuffer{
		ctx: ctx, logger: logger, wiki: wiki, pattern: pattern, counter: counter, order: order,
		useCounter: strings.Contains(pattern, "%(counter)d"),
		pages:      make(map[string]*ArchivePage),
		usedSet:    make(map[string]bool),
	}
}

// Counter returns the current counter value.
func (b *ArchivePagesBuffer) Counter() int { return b.counter }

// UseCounter reports whether the pattern is counter-based.
func (b *ArchivePagesBuffer) UseCounter() bool { return b.useCounter }

// UsedArchivePages returns every archive page a thread was routed to, in
// first-use order.
func (b *ArchivePagesBuffer) UsedArchivePages() []*ArchivePage { return b.used }

// AddThread routes thread to the right archive page and queues it there.
// maxArchiveSizeKB is ArchiveParamNotSet if the template left
// "maxarchivesize" unset; any value <= 0 means a 500 KB limit.
func (b *ArchivePagesBuffer) AddThread(thread *Thread, maxArchiveSizeKB int, archiveHeader string, hasAutoArchiveHeader bool) {
	if b.loadErr != nil {
		return
	}
	var page *ArchivePage
	if b.useCounter {
		b.initializeCounter()
		if b.loadErr != nil {
			return
		}
		maxSize := 500 * 1000
		if maxArchiveSizeKB > 0 {
			maxSize = maxArchiveSizeKB * 1000
		}
		for {
			page = b.loadArchivePageByIndex(b.counter)
			if b.loadErr != nil {
				return
			}
			if page.Size() < maxSize {
				break
			}
			b.counter++
		}
	} else {
		// Computed from the thread's local time, the less surprising
		// behavior: a message signed "1 janvier 2010 à 00:04 (CET)" has a
		// UTC date of 2009-12-31, but the thread belongs in /2010.
		localDate := thread.Date.LocalDate()
		month := int(localDate.Time().Month())
		title := b.pattern
		title = strings.ReplaceAll(title, "%(year)d", strconv.Itoa(localDate.Time().Year()))
		title = strings.ReplaceAll(title, "%(month)d", strconv.Itoa(month))
		title = strings.ReplaceAll(title, "%(month)02d", padWithZeros(month, 2))
		monthName, _ := wikiutil.MonthName(month)
		title = strings.ReplaceAll(title, "%(monthname)s", monthName)
		title = strings.ReplaceAll(title, "%(quarter)d", strconv.Itoa((month-1)/3+1))
		if strings.Contains(title, "%(monthnameshort)s") {
			b.loadErr = errors.WrapWith(errors.New("'%(monthnameshort)s' is not supported"), errs.InvalidParameter)
			return
		}
		page = b.loadArchivePage(title)
		if b.loadErr != nil {
			return
		}
	}
	if !b.usedSet[page.Title()] {
		b.usedSet[page.Title()] = true
		b.used = append(b.used, page)
	}
	page.AddThread(thread, archiveHeader, hasAutoArchiveHeader && b.useCounter)
}

// Err returns the first error encountered while loading an archive page,
// if any.
func (b *ArchivePagesBuffer) Err() errors.E { return b.loadErr }

func (b *ArchivePagesBuffer) loadArchivePage(title string) *ArchivePage {
	if page, ok := b.pages[title]; ok {
		return page
	}
	page := NewArchivePage(title, b.order)
	if err := page.Load(b.ctx, b.logger, b.wiki); err != nil {
		b.loadErr = err
		return page
	}
	b.pages[title] = page
	return page
}

func (b *ArchivePagesBuffer) loadArchivePageByIndex(index int) *ArchivePage {
	title := replaceCounter(b.pattern, index)
	if title == b.pattern {
		b.loadErr = errors.WrapWith(errors.New("archive pattern does not depend on a counter"), errs.InvalidState)
		return NewArchivePage(title, b.order)
	}
	return b.loadArchivePage(title)
}

// goToLastArchive binary-searches for the last non-empty archive page
// matching the counter pattern.
func (b *ArchivePagesBuffer) goToLastArchive() {
	b.logger.Info().Str("pattern", b.pattern).Msg("computing the last archive")
	searchMin, searchMax := 1, -1 // searchMax == -1 means "unbounded" (INT_MAX)
	for searchMax == -1 || searchMin < searchMax {
		var index int
		if searchMax == -1 {
			index = searchMin * 2
		} else {
			index = (searchMin + searchMax + 1) / 2
		}
		page := b.loadArchivePageByIndex(index)
		if b.loadErr != nil {
			return
		}
		if page.Size() == 0 {
			searchMax = index - 1
		} else {
			searchMin = index
		}
	}
	b.counter = searchMin
	b.logger.Info().Int("counter", b.counter).Msg("last archive")
}

func (b *ArchivePagesBuffer) initializeCounter() {
	if b.counterInitialized || !b.useCounter {
		return
	}
	switch {
	case b.counter < 1:
		// Undefined (or invalid): go straight to the last non-empty archive,
		// since manual archiving may already have extended the sequence.
		b.logger.Info().Msg("counter is undefined")
		b.goToLastArchive()
	case b.counter > 1:
		page := b.loadArchivePageByIndex(b.counter)
		if b.loadErr != nil {
			return
		}
		if page.Size() == 0 {
			previous := b.loadArchivePageByIndex(b.counter - 1)
			if b.loadErr != nil {
				return
			}
			if previous.Size() == 0 {
				// Probably a copy-pasted template from a different page.
				b.logger.Info().Msg("the counter is past the last existing archive")
				b.goToLastArchive()
			}
		}
	}
	b.counterInitialized = true
}

// generateEditSummary describes what was archived/erased and where.
func generateEditSummary(threads []*Thread, usedArchivePages []*ArchivePage) string {
	numArchived, numErased := 0, 0
	ageLowerBound, ageUpperBound := -1, 0
	for _, thread := range threads {
		switch thread.State {
		case StateArchived:
			numArchived++
		case StateErased:
			numErased++
		default:
			continue
		}
		if ageLowerBound == -1 || thread.AlgoMaxAgeInDays < ageLowerBound {
			ageLowerBound = thread.AlgoMaxAgeInDays
		}
		if thread.AlgoMaxAgeInDays > ageUpperBound {
			ageUpperBound = thread.AlgoMaxAgeInDays
		}
	}
	numArchivedOrErased := numArchived + numErased

	sourcePart := "d'une section"
	if numArchivedOrErased > 1 {
		sourcePart = fmt.Sprintf("de %d sections", numArchivedOrErased)
	}
	if ageUpperBound > 0 {
		if numArchivedOrErased > 1 {
			sourcePart += " non modifiées depuis "
		} else {
			sourcePart += " non modifiée depuis "
		}
		if ageLowerBound < ageUpperBound {
			sourcePart += strconv.Itoa(ageLowerBound) + " à "
		}
		sourcePart += strconv.Itoa(ageUpperBound)
		if ageUpperBound > 1 {
			sourcePart += " jours"
		} else {
			sourcePart += " jour"
		}
	}

	targetPart := ""
	if len(usedArchivePages) > 0 {
		targetPart = "vers [[" + usedArchivePages[0].Title() + "]]"
		switch {
		case len(usedArchivePages) == 2:
			targetPart += " et [[" + usedArchivePages[1].Title() + "]]"
		case len(usedArchivePages) > 2:
			targetPart += fmt.Sprintf(" et %d autres pages", len(usedArchivePages)-1)
		}
	}

	switch {
	case numErased == 0:
		return strings.TrimRight(fmt.Sprintf("Archivage %s %s", sourcePart, targetPart), " ")
	case numArchived == 0:
		return "Effacement " + sourcePart
	default:
		return strings.TrimRight(fmt.Sprintf("Effacement ou archivage %s %s", targetPart, sourcePart), " ")
	}
}

// Archiver drives the whole {{Archivage par bot}} archiving process.
type Archiver struct {
	wiki         *mw.Wiki
	dataDir      string
	keyPrefix    string
	dryRun       bool
	algorithms   *Algorithms
	stableRevids map[int64]bool
	logger       zerolog.Logger
}

// NewArchiver returns an Archiver persisting its stable-page cache under
// dataDir. keyPrefixFile, if non-empty, names a file whose trimmed content
// is stored as the key prefix for {{Archivage par bot|key=...}} templates;
// nothing consults the stored prefix.
func NewArchiver(logger zerolog.Logger, wiki *mw.Wiki, dataDir, keyPrefixFile string, dryRun bool) (*Archiver, errors.E) {
	a := &Archiver{
		wiki: wiki, dataDir: dataDir, dryRun: dryRun,
		algorithms:   GetFrwikiAlgorithms(wiki.Clock()),
		stableRevids: make(map[int64]bool),
		logger:       logger,
	}
	if keyPrefixFile != "" {
		content, err := os.ReadFile(keyPrefixFile)
		if err != nil {
			return nil, errors.WrapWith(errors.Wrap(err, "reading key prefix file"), errs.FileNotFound)
		}
		a.keyPrefix = strings.TrimSpace(string(content))
	}
	return a, nil
}

var reArchiveInName = func() func(string) bool {
	// "/.*[Aa]rchiv", applied as a partial match anywhere in the title.
	return func(title string) bool {
		slash := strings.IndexByte(title, '/')
		if slash < 0 {
			return false
		}
		rest := title[slash:]
		return strings.Contains(rest, "archiv") || strings.Contains(rest, "Archiv")
	}
}()

// checkArchiveName rejects pages that should never be auto-archived.
func (a *Archiver) checkArchiveName(title, archive string) errors.E {
	titleParts := a.wiki.Titles().ParseTitle(title, wikiutil.NSMain, wikiutil.PTFDefault)
	archiveParts := a.wiki.Titles().ParseTitle(archive, wikiutil.NSMain, wikiutil.PTFDefault)

	switch titleParts.NamespaceNumber {
	case wikiutil.NSMain, wikiutil.NSFile, wikiutil.NSTemplate, wikiutil.NSHelp, wikiutil.NSCategory:
		return errors.WrapWith(errors.Errorf("page %q is in a namespace where archiving is disabled", title), errs.InvalidParameter)
	}

	isSubpage := titleParts.NamespaceNumber == archiveParts.NamespaceNumber &&
		strings.HasPrefix(archiveParts.UnprefixedTitle(), titleParts.UnprefixedTitle()+"/")
	if !isSubpage {
		return errors.WrapWith(errors.Errorf("the archive page %q is not a subpage of %q", archive, title), errs.InvalidParameter)
	}
	if reArchiveInName(title) {
		return errors.WrapWith(errors.Errorf("page %q cannot be archived because its name indicates that it is an archive", title), errs.InvalidParameter)
	}
	return nil
}

// updateCounterInCode rewrites the "counter" parameter of wcode's
// {{Archivage par bot}} call in place.
func (a *Archiver) updateCounterInCode(wcode string, newValue int) string {
	tree, err := parser.Parse(wcode, parser.Lenient)
	if err != nil {
		return wcode
	}
	tmpl, ok := FindArchiveTemplate(a.wiki, tree)
	if !ok {
		a.logger.Error().Msg("cannot update counter after archiving because the template was not found")
		return wcode
	}
	fields := tmpl.GetParsedFields(parser.TrimValue)
	if idx := fields.IndexOf("counter"); idx != parser.FindParamNone {
		tmpl.SetFieldValue(idx, strconv.Itoa(newValue))
	} else {
		suffix := ""
		if strings.Contains(parser.String(tmpl), "\n") {
			suffix = "\n"
		}
		addTemplateField(tmpl, fmt.Sprintf("counter=%d%s", newValue, suffix))
	}
	return parser.String(tree)
}

// archivePageWithCode runs one archiving pass over a page's already-read
// content. inStableState reports whether nothing needed to be archived
// yet, letting the caller cache this revision as stable.
func (a *Archiver) archivePageWithCode(ctx context.Context, title string, params ArchiveParams, token mw.WriteToken, wcode string) (inStableState bool, errE errors.E) {
	if err := a.checkArchiveName(title, params.Archive); err != nil {
		return false, err
	}

	var pageToArchive PageToArchive
	pageToArchive.Load(a.wiki, wcode)
	if pageToArchive.HasTrackingTemplate() {
		if len(params.Algorithms) != 1 || params.Algorithms[0].Algorithm.Name() != "oldtitle" {
			return false, errors.WrapWith(errors.New("archiving a page with a tracking template requires the 'oldtitle' algorithm alone"), errs.InvalidParameter)
		}
	}

	// HistoryCache's thread-matching only understands plain threads; a page
	// using the category tracking template never needs it, since every
	// thread there is dated by computeDateInTitle instead of a signature.
	var historyCache *HistoryCache
	if !pageToArchive.HasTrackingTemplate() {
		historyCache = NewHistoryCache(a.wiki, title)
	}
	clock := a.wiki.Clock()
	for _, thread := range pageToArchive.ReorderedThreads() {
		thread.ComputeState(ctx, a.wiki, clock, params.Algorithms, historyCache)
	}

	numThreadsToArchiveOrDelete, numThreadsLeft := 0, 0
	for _, thread := range pageToArchive.ReorderedThreads() {
		if thread.State == StateArchivable || thread.State == StateErasable {
			numThreadsToArchiveOrDelete++
		}
		if thread.State != StateNeverArchivableTitleLevel {
			numThreadsLeft++
		}
	}

	minThreadsLeft := params.MinThreadsLeft
	if minThreadsLeft == ArchiveParamNotSet {
		minThreadsLeft = DefMinThreadsLeft
		if pageToArchive.HasTrackingTemplate() {
			minThreadsLeft = 1
		}
	}
	minThreadsToArchive := params.MinThreadsToArchive
	if minThreadsToArchive == ArchiveParamNotSet {
		minThreadsToArchive = DefMinThreadsToArchive
		if pageToArchive.HasTrackingTemplate() {
			minThreadsToArchive = 1
		}
	}
	if minThreadsToArchive < 1 {
		minThreadsToArchive = 1
	}

	if numThreadsLeft < minThreadsLeft+minThreadsToArchive {
		a.logger.Info().Int("left", numThreadsLeft).Int("minLeft", minThreadsLeft).Int("minArchive", minThreadsToArchive).Msg("not enough threads on the page")
		return true, nil
	}
	if numThreadsToArchiveOrDelete == 0 {
		a.logger.Info().Msg("no thread to archive")
		return true, nil
	}
	if numThreadsToArchiveOrDelete < minThreadsToArchive {
		a.logger.Info().Int("count", numThreadsToArchiveOrDelete).Int("min", minThreadsToArchive).Msg("not enough threads to archive")
		return true, nil
	}

	order := OldestSectionFirst
	if pageToArchive.HasTrackingTemplate() {
		order = NewestSectionFirst
	}
	archivePagesBuffer := NewArchivePagesBuffer(ctx, a.logger, a.wiki, params.Archive, params.Counter, order)
	changeDone := false
	for _, thread := range pageToArchive.ReorderedThreads() {
		if numThreadsLeft <= minThreadsLeft {
			break
		}
		switch thread.State {
		case StateArchivable:
			archivePagesBuffer.AddThread(thread, params.MaxArchiveSize, params.ArchiveHeader, params.ArchiveHeader != "")
			if archivePagesBuffer.Err() != nil {
				return false, archivePagesBuffer.Err()
			}
			thread.State = StateArchived
		case StateErasable:
			thread.State = StateErased
		}
		if thread.State == StateArchived || thread.State == StateErased {
			numThreadsLeft--
			changeDone = true
		}
	}
	newCode := pageToArchive.GenerateCode(a.wiki)
	if !changeDone {
		return false, errors.WrapWith(errors.New("expected to find at least one thread to archive or delete, but none was found"), errs.InvalidState)
	}

	usedArchivePages := archivePagesBuffer.UsedArchivePages()
	for _, archivePage := range usedArchivePages {
		if err := archivePage.Update(ctx, a.logger, a.wiki, title, a.dryRun); err != nil {
			return false, err
		}
	}

	editSummary := generateEditSummary(pageToArchive.ReorderedThreads(), usedArchivePages)
	if archivePagesBuffer.UseCounter() && archivePagesBuffer.Counter() != -1 {
		newCode = a.updateCounterInCode(newCode, archivePagesBuffer.Counter())
	}
	if a.dryRun {
		a.logger.Info().Str("title", title).Str("summary", editSummary).Msg("[dry run] writing page")
	} else {
		if err := a.wiki.WritePage(ctx, title, newCode, editSummary, mw.EditMinor|mw.EditBypassNoBots, token); err != nil {
			return false, err
		}
	}

	if strings.HasPrefix(title, params.Archive+"/") {
		a.logger.Info().Str("title", params.Archive).Msg("purging")
		if !a.dryRun {
			if err := a.wiki.PurgePage(ctx, params.Archive); err != nil {
				a.logger.Warn().Err(err).Msg("purge failed")
			}
		}
	}
	return false, nil
}

// ArchivePage reads title, parses its archiving configuration and runs one
// archiving pass.
func (a *Archiver) ArchivePage(ctx context.Context, title string) errors.E {
	a.logger.Info().Str("title", title).Msg("archiving")
	page, err := a.wiki.ReadPage(ctx, title, mw.PropContent|mw.PropTimestamp|mw.PropIDs)
	if err != nil {
		return err
	}
	token := mw.NewEditTokenFromPage(page, a.wiki.InternalUserName(), "")
	tree, parseErr := parser.Parse(page.Content, parser.Lenient)
	if parseErr != nil {
		return parseErr
	}
	params, paramsErr := NewArchiveParams(a.wiki, a.algorithms, title, tree)
	if paramsErr != nil {
		return paramsErr
	}
	inStableState, archiveErr := a.archivePageWithCode(ctx, title, params, token, page.Content)
	if archiveErr != nil {
		return archiveErr
	}
	if inStableState {
		a.stableRevids[page.RevID] = true
	}
	return nil
}

// ArchivePages runs ArchivePage over every page, logging (and continuing
// past) per-page failures instead of aborting the whole batch.
func (a *Archiver) ArchivePages(ctx context.Context, pages []string) {
	for _, page := range pages {
		if err := a.ArchivePage(ctx, page); err != nil {
			a.logger.Error().Err(err).Str("title", page).Msg("failed to archive")
		}
	}
}

// ArchiveAll fetches every transcluder of {{Archivage par bot}}, skips the
// ones already known to be stable, archives the rest, and persists the
// updated stable set.
func (a *Archiver) ArchiveAll(ctx context.Context) errors.E {
	revidsFile := filepath.Join(a.dataDir, "stable_revids.txt")
	oldStableRevids := loadStableRevids(a.logger, revidsFile)

	a.logger.Info().Str("template", archiveTemplateName).Msg("reading transclusions")
	pages, err := a.wiki.GetTransclusions(ctx, "Template:"+archiveTemplateName, 0)
	if err != nil {
		return err
	}
	pagesToUpdate, stableRevids, err := filterStablePages(ctx, a.logger, a.wiki, pages, oldStableRevids)
	if err != nil {
		return err
	}
	a.stableRevids = stableRevids
	a.ArchivePages(ctx, pagesToUpdate)

	if !a.dryRun {
		saveStableRevids(a.logger, revidsFile, a.stableRevids)
	}
	return nil
}
