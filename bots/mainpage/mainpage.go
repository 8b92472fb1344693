// Package mainpage keeps the home page's transcluded sections (picture of
// the day, anniversaries, featured articles, current-events box) in sync
// with their source pages.
package mainpage

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/rcreplica"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

const (
	PictureOfTheDayPrefix  = "Wikipédia:Image du jour/"
	AnniversariesPrefix    = "Wikipédia:Éphéméride/"
	FeaturedArticlePrefix  = "Wikipédia:Lumière sur/"
	SpecialBlankSourcePage = "Special:BLANK_PAGE"
	StatusPage             = "Utilisateur:OrlodrimBot/Statut page d'accueil"

	maxSourceSizeToExpand = 25000
	editGracePeriod       = 120 // seconds
	templateStalePeriod   = 3600
	trustedFastEditor     = "GhosterBot"
)

// retryLater and reportable classify updateTargetPage failures.
var (
	retryLater = errors.Base("retry later")
	reportable = errors.Base("reportable error")
)

func getDisplayedDay(clock wikidate.Clock) wikidate.Date {
	local := wikiutil.FrWikiLocalTime(clock.Now())
	y, m, d := local.Time().Date()
	day, err := wikidate.ParseYMDHMS(y, int(m), d, 0, 0, 0)
	if err != nil {
		return local
	}
	return day
}

// GetPictureOfTheDayPage returns the source page holding day's picture of
// the day.
func GetPictureOfTheDayPage(day wikidate.Date) string {
	return PictureOfTheDayPrefix + wikiutil.FormatDate(day, wikiutil.DateFormatLong, wikiutil.DatePrecisionDay)
}

// GetAnniversariesPage returns the source page holding day's anniversaries.
func GetAnniversariesPage(day wikidate.Date) string {
	formatted := wikiutil.FormatDate(day, wikiutil.DateFormatLong1st, wikiutil.DatePrecisionDay)
	lastSpace := strings.LastIndex(formatted, " ")
	if lastSpace < 0 {
		return AnniversariesPrefix + formatted
	}
	return AnniversariesPrefix + formatted[:lastSpace]
}

// sourceTargetMap is the fixed correspondence between a source page (the
// picture of the day, today's anniversaries, the featured articles...) and
// the stripped-down copy transcluded on the home page.
type sourceTargetMap struct {
	sourceToTarget map[string]string
	targetToSource map[string]string
}

func newSourceTargetMap(featuredArticles []string, displayedDay wikidate.Date) *sourceTargetMap {
	m := &sourceTargetMap{sourceToTarget: map[string]string{}, targetToSource: map[string]string{}}
	add := func(source, target string) {
		m.sourceToTarget[source] = target
		m.targetToSource[target] = source
	}
	add("Modèle:Accueil actualité", "Modèle:Accueil actualité/Copie sans modèles")
	add("Wikipédia:Le saviez-vous ?/Anecdotes sur l'accueil",
		"Wikipédia:Le saviez-vous ?/Anecdotes sur l'accueil/Copie sans modèles")
	add(GetPictureOfTheDayPage(displayedDay), "Wikipédia:Accueil principal/Image du jour (copie sans modèles)")
	add(GetAnniversariesPage(displayedDay), "Wikipédia:Accueil principal/Éphéméride (copie sans modèles)")
	if len(featuredArticles) > 0 {
		add(FeaturedArticlePrefix+featuredArticles[0], "Wikipédia:Accueil principal/Lumière sur (copie sans modèles)")
		second := SpecialBlankSourcePage
		if len(featuredArticles) >= 2 {
			second = FeaturedArticlePrefix + featuredArticles[1]
		}
		add(second, "Wikipédia:Accueil principal/Lumière sur 2 (copie sans modèles)")
	}
	return m
}

func (m *sourceTargetMap) targetFromSource(source string) (string, bool) {
	t, ok := m.sourceToTarget[source]
	return t, ok
}

func (m *sourceTargetMap) sourceFromTarget(target string) (string, bool) {
	s, ok := m.targetToSource[target]
	return s, ok
}

// pageStack is an insertion-deduplicated stack of pending pages, processing
// the most recently queued page first; pages marked as failed are moved to
// the bottom so a single broken page does not block the rest of the queue.
type pageStack struct {
	pages  []string
	failed []string
	set    map[string]bool
}

func newPageStack(initial []string) *pageStack {
	s := &pageStack{set: map[string]bool{}}
	for _, p := range initial {
		s.push(p)
	}
	return s
}

func (s *pageStack) empty() bool { return len(s.pages) == 0 }
func (s *pageStack) top() string { return s.pages[len(s.pages)-1] }

func (s *pageStack) push(page string) {
	if !s.set[page] {
		s.set[page] = true
		s.pages = append(s.pages, page)
	}
}

func (s *pageStack) pop() {
	top := s.pages[len(s.pages)-1]
	delete(s.set, top)
	s.pages = s.pages[:len(s.pages)-1]
}

func (s *pageStack) markTopAsFailed() { s.failed = append(s.failed, s.top()) }

func (s *pageStack) toSlice() []string {
	return append(append([]string{}, s.failed...), s.pages...)
}

func stringsToJSON(strs []string) jsonvalue.Value {
	items := make([]jsonvalue.Value, len(strs))
	for i, s := range strs {
		items[i] = jsonvalue.NewString(s)
	}
	return jsonvalue.NewArray(items...)
}

func jsonToStrings(v jsonvalue.Value) []string {
	arr := v.Array()
	strs := make([]string, len(arr))
	for i, item := range arr {
		strs[i] = item.String()
	}
	return strs
}

var reTemplateStylesSource = regexp.MustCompile(`<templatestyles[^>]*\bsrc\s*=\s*"([^"]*)"`)

// getStylesheets returns the deduplicated, sorted list of <templatestyles>
// source pages referenced in code.
func getStylesheets(titles *wikiutil.Titles, code string) []string {
	seen := map[string]bool{}
	var stylesheets []string
	for _, m := range reTemplateStylesSource.FindAllStringSubmatch(code, -1) {
		parts := titles.ParseTitle(m[1], wikiutil.NSTemplate, wikiutil.PTFDefault)
		if !seen[parts.Title] {
			seen[parts.Title] = true
			stylesheets = append(stylesheets, parts.Title)
		}
	}
	sort.Strings(stylesheets)
	return stylesheets
}

// checkStylesheetsProtection requires every stylesheet referenced by code to
// carry at least semi-protection-étendue (autopatrolled) with more than 3
// days left before expiry.
func checkStylesheetsProtection(ctx context.Context, wiki *mw.Wiki, code string) errors.E {
	stylesheets := getStylesheets(wiki.Titles(), code)
	if len(stylesheets) == 0 {
		return nil
	}
	protections, err := wiki.GetPageProtections(ctx, stylesheets)
	if err != nil {
		return err
	}
	now := wiki.Clock().Now()
	var problems []string
	for _, title := range stylesheets {
		prot, ok := protections[title]
		if !ok {
			problems = append(problems, "impossible de vérifier la protection de [["+title+"]]")
			continue
		}
		var edit *mw.PageProtection
		for i := range prot {
			if prot[i].Type == "edit" {
				edit = &prot[i]
				break
			}
		}
		switch {
		case edit == nil:
			problems = append(problems, "la feuille de style [["+title+"]] n'est pas protégée")
		case edit.Level != "sysop" && edit.Level != "autopatrolled":
			problems = append(problems, "la feuille de style [["+title+"]] a un niveau de protection inférieur à « semi-protection étendue »")
		case edit.Expiry != "infinity":
			if expiry, parseErr := wikidate.FromISO8601(edit.Expiry); parseErr == nil && expiry.Before(now.Add(wikidate.FromDays(3))) {
				problems = append(problems, "la protection de la feuille de style [["+title+"]] expire dans moins de 3 jours")
			}
		}
	}
	if len(problems) > 0 {
		return errors.WithMessage(reportable, strings.Join(problems, ", "))
	}
	return nil
}

func joinErrors(messages []string) string {
	var b strings.Builder
	for _, e := range messages {
		b.WriteString("* " + e + "\n")
	}
	return b.String()
}

// state is the progress persisted between runs.
type state struct {
	UpdateTimestamp     wikidate.Date
	FeaturedArticlesDay wikidate.Date
	FeaturedArticles    []string
	TargetsToUpdate     []string
	ReportedErrors      string
}

func loadState(logger zerolog.Logger, path string) state {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("cannot load state")
		}
		return state{}
	}
	content := string(raw)
	if content == "" {
		return state{}
	}
	value, parseErr := jsonvalue.Parse(content)
	if parseErr != nil {
		logger.Error().Err(parseErr).Str("path", path).Msg("cannot parse state")
		return state{}
	}
	updateTimestamp, _ := wikidate.FromISO8601(value.Get("update_timestamp").String())
	featuredDay, _ := wikidate.FromISO8601(value.Get("featured_articles_day").String())
	return state{
		UpdateTimestamp:     updateTimestamp,
		FeaturedArticlesDay: featuredDay,
		FeaturedArticles:    jsonToStrings(value.Get("featured_articles")),
		TargetsToUpdate:     jsonToStrings(value.Get("targets_to_update")),
		ReportedErrors:      value.Get("reported_errors").String(),
	}
}

func saveState(logger zerolog.Logger, path string, st state) {
	value := jsonvalue.NewObject()
	value.Set("update_timestamp", jsonvalue.NewString(st.UpdateTimestamp.ToISO8601()))
	value.Set("featured_articles_day", jsonvalue.NewString(st.FeaturedArticlesDay.ToISO8601()))
	value.Set("featured_articles", stringsToJSON(st.FeaturedArticles))
	value.Set("targets_to_update", stringsToJSON(st.TargetsToUpdate))
	value.Set("reported_errors", jsonvalue.NewString(st.ReportedErrors))
	b, _ := value.MarshalJSON()
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to save state")
	}
}

// Updater refreshes the home page's transcluded sections.
type Updater struct {
	wiki      *mw.Wiki
	logger    zerolog.Logger
	reader    rcreplica.Reader
	stateFile string
}

// New returns an Updater persisting its progress to stateFile.
func New(logger zerolog.Logger, wiki *mw.Wiki, reader rcreplica.Reader, stateFile string) *Updater {
	return &Updater{wiki: wiki, logger: logger, reader: reader, stateFile: stateFile}
}

// readFeaturedArticles extracts the day's featured article(s) from the
// month's {{Lumière sur/Accueil}} schedule.
func (u *Updater) readFeaturedArticles(ctx context.Context, day wikidate.Date) ([]string, errors.E) {
	monthName, _ := wikiutil.MonthName(int(day.Time().Month()))
	month := strings.ToUpper(monthName[:1]) + monthName[1:]
	sourcePage := "Wikipédia:Lumière sur/" + month + " " + strconv.Itoa(day.Time().Year())

	page, err := u.wiki.ReadPage(ctx, sourcePage, mw.PropContent)
	if err != nil {
		return nil, err
	}
	if page.Missing {
		return nil, errors.WithMessage(reportable, "la page n'existe pas : "+sourcePage)
	}
	tree, parseErr := parser.Parse(page.Content, parser.Lenient)
	if parseErr != nil {
		return nil, errors.WithMessage(reportable, "impossible d'analyser "+sourcePage)
	}
	templates := parser.IndexTemplatesByName(tree)["Lumière sur/Accueil"]
	if len(templates) == 0 {
		return nil, errors.WithMessage(reportable, "le modèle {{Lumière sur/Accueil}} n'a pas été trouvé dans "+sourcePage)
	}
	fields := templates[0].GetParsedFields(parser.TrimValue)
	dayOfMonth := strconv.Itoa(day.Time().Day())
	if day.Time().Day() < 10 {
		dayOfMonth = "0" + dayOfMonth
	}
	var featured []string
	for _, suffix := range []string{"a", "b"} {
		article := fields.Get(dayOfMonth + suffix)
		if article == "" {
			continue
		}
		if u.wiki.Titles().GetTitleNamespace(article) != wikiutil.NSMain {
			return nil, errors.WithMessage(reportable, "[["+article+"]] n'est pas une page de l'espace principal")
		}
		featured = append(featured, article)
	}
	if len(featured) == 0 {
		return nil, errors.WithMessage(reportable, "aucun article n'est renseigné pour aujourd'hui dans "+sourcePage)
	}
	return featured, nil
}

// recentlyChangedTranscludedTemplate returns the title of a template
// transcluded by code that changed more recently than sourceTimestamp and
// the last hour, or "" if none did.
func (u *Updater) recentlyChangedTranscludedTemplate(ctx context.Context, code string, sourceTimestamp wikidate.Date) (string, errors.E) {
	tree, parseErr := parser.Parse(code, parser.Lenient)
	if parseErr != nil {
		return "", nil
	}
	byName := parser.IndexTemplatesByName(tree)
	if len(byName) == 0 {
		return "", nil
	}
	titles := u.wiki.Titles()
	names := make([]string, 0, len(byName))
	for name := range byName {
		parts := titles.ParseTitle(name, wikiutil.NSTemplate, wikiutil.PTFDefault)
		names = append(names, parts.Title)
	}
	pages, err := u.wiki.ReadPages(ctx, names, mw.PropTimestamp)
	if err != nil {
		return "", err
	}
	now := u.wiki.Clock().Now()
	threshold := sourceTimestamp
	if cutoff := now.Add(wikidate.DateDiff(-templateStalePeriod)); cutoff.After(threshold) {
		threshold = cutoff
	}
	for _, title := range names {
		page := pages[title]
		if !page.Missing && !page.Timestamp.Before(threshold) {
			return title, nil
		}
	}
	return "", nil
}

// updateTargetPage refreshes one home-page subsection from its source.
func (u *Updater) updateTargetPage(ctx context.Context, targetPage string, stm *sourceTargetMap, displayedDay wikidate.Date) (string, errors.E) {
	sourcePage, ok := stm.sourceFromTarget(targetPage)
	if !ok {
		return "", nil
	}

	var newCode string
	if sourcePage == SpecialBlankSourcePage {
		newCode = "<!-- Pas de second article mis en lumière aujourd'hui -->"
	} else {
		page, err := u.wiki.ReadPage(ctx, sourcePage, mw.PropContent|mw.PropTimestamp|mw.PropIDs)
		if err != nil {
			return "", err
		}
		if page.Missing {
			return "", errors.WithMessage(reportable, "la page source n'existe pas : "+sourcePage)
		}
		if _, _, isRedirect := wikiutil.ReadRedirect(u.wiki.SiteInfo(), page.Content); isRedirect {
			return "", errors.WithMessage(reportable, "la page source est une redirection : "+sourcePage)
		}
		now := u.wiki.Clock().Now()
		_, transcludedCode := wikiutil.ParseIncludeTags(page.Content, nil)
		if len(transcludedCode) > maxSourceSizeToExpand {
			return "", errors.WithMessage(reportable, "la page source est trop longue (plus de 25 Ko)")
		}
		if now.Unix()-page.Timestamp.Unix() < editGracePeriod {
			if rev, revErr := u.wiki.ReadRevision(ctx, page.RevID); revErr == nil && rev.User != trustedFastEditor {
				return "", errors.WithMessage(retryLater, "la page '"+sourcePage+"' a été modifiée il y a moins de deux minutes")
			}
		}
		if staleTemplate, staleErr := u.recentlyChangedTranscludedTemplate(ctx, transcludedCode, page.Timestamp); staleErr != nil {
			return "", staleErr
		} else if staleTemplate != "" {
			return "", errors.WithMessage(reportable, "le modèle récemment modifié [["+staleTemplate+"]] est inclus dans [["+sourcePage+"]]")
		}

		expanded, expErr := u.wiki.ExpandTemplates(ctx, sourcePage, transcludedCode)
		if expErr != nil {
			return "", expErr
		}
		newCode = expanded
		if protErr := checkStylesheetsProtection(ctx, u.wiki, newCode); protErr != nil {
			return "", protErr
		}

		if targetPage == "Wikipédia:Accueil principal/Éphéméride (copie sans modèles)" {
			monthName, _ := wikiutil.MonthName(int(displayedDay.Time().Month()))
			frameSource := "{{Wikipédia:Accueil principal/Cadre éphéméride|jour=" + strconv.Itoa(displayedDay.Time().Day()) +
				"|mois=" + monthName + "|contenu=PLACEHOLDER}}"
			frame, frameErr := u.wiki.ExpandTemplates(ctx, targetPage, frameSource)
			if frameErr != nil {
				return "", frameErr
			}
			newCode = strings.Replace(frame, "PLACEHOLDER", newCode, 1)
		}
	}

	current, err := u.wiki.ReadPage(ctx, targetPage, mw.PropContent)
	if err != nil {
		return "", err
	}
	if !strings.Contains(current.Content, wikiutil.BotSectionBegin) || !strings.Contains(current.Content, wikiutil.BotSectionEnd) {
		return "", errors.WithMessage(reportable, "section de bot non trouvée sur [["+targetPage+"]]")
	}
	newPageContent := wikiutil.ReplaceBotSection(current.Content, newCode)
	editSummary := "Mise à jour à partir de [[" + sourcePage + "]]"
	if editErr := u.wiki.EditPage(ctx, targetPage, func(string) (string, errors.E) { return newPageContent, nil }, editSummary, 0); editErr != nil {
		return "", editErr
	}
	return sourcePage, nil
}

// Run executes one refresh cycle.
func (u *Updater) Run(ctx context.Context) errors.E {
	st := loadState(u.logger, u.stateFile)
	defer saveState(u.logger, u.stateFile, st)

	now := u.wiki.Clock().Now()
	displayedDay := getDisplayedDay(u.wiki.Clock())

	var reportedErrors []string
	featuredArticlesUpdated := false
	if !st.FeaturedArticlesDay.Equal(displayedDay) {
		if featured, err := u.readFeaturedArticles(ctx, displayedDay); err != nil {
			reportedErrors = append(reportedErrors, "Impossible de lire les articles mis en lumière du jour : "+err.Error())
			u.logger.Error().Err(err).Msg("failed to read featured articles")
		} else {
			st.FeaturedArticles = featured
			st.FeaturedArticlesDay = displayedDay
			featuredArticlesUpdated = true
		}
	}

	stm := newSourceTargetMap(st.FeaturedArticles, displayedDay)
	targets := newPageStack(st.TargetsToUpdate)

	if u.reader != nil && !st.UpdateTimestamp.IsNull() {
		changed, err := u.reader.GetRecentlyUpdatedPages(ctx, st.UpdateTimestamp, now, u.wiki.InternalUserName())
		if err != nil {
			u.logger.Error().Err(err).Msg("failed to read recent changes")
		} else {
			for source := range changed.Iter() {
				if target, ok := stm.targetFromSource(source); ok {
					targets.push(target)
				}
			}
		}
	}

	if !st.UpdateTimestamp.IsNull() && !getDisplayedDay2(st.UpdateTimestamp).Equal(displayedDay) {
		targets.push("Wikipédia:Accueil principal/Image du jour (copie sans modèles)")
		targets.push("Wikipédia:Accueil principal/Éphéméride (copie sans modèles)")
	}
	st.UpdateTimestamp = now
	if featuredArticlesUpdated {
		targets.push("Wikipédia:Accueil principal/Lumière sur (copie sans modèles)")
		targets.push("Wikipédia:Accueil principal/Lumière sur 2 (copie sans modèles)")
	}

	canClearErrorLog := true
	for !targets.empty() {
		target := targets.top()
		if _, err := u.updateTargetPage(ctx, target, stm, displayedDay); err != nil {
			if errors.Is(err, retryLater) {
				u.logger.Info().Str("target", target).Err(err).Msg("retrying later")
				canClearErrorLog = false
			} else {
				reportedErrors = append(reportedErrors, "Erreur lors de la copie vers [["+target+"]] : "+err.Error())
				u.logger.Error().Str("target", target).Err(err).Msg("failed to update target page")
			}
			targets.markTopAsFailed()
		}
		targets.pop()
	}
	st.TargetsToUpdate = targets.toSlice()

	joined := joinErrors(reportedErrors)
	if joined != st.ReportedErrors && (canClearErrorLog || len(reportedErrors) > 0) {
		report := joined
		if report == "" {
			report = "<!-- Aucune erreur -->"
		}
		if err := u.wiki.EditPage(ctx, StatusPage, func(string) (string, errors.E) { return report, nil }, "Rapport d'erreur", 0); err != nil {
			u.logger.Error().Err(err).Msg("failed to report main page update errors")
		} else {
			st.ReportedErrors = joined
		}
	}
	return nil
}

func getDisplayedDay2(d wikidate.Date) wikidate.Date {
	y, m, day := d.Time().Date()
	result, err := wikidate.ParseYMDHMS(y, int(m), day, 0, 0, 0)
	if err != nil {
		return d
	}
	return result
}
